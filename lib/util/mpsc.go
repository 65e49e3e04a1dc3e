// This file provides a lock-free multi-producer single-consumer queue.
//
// The minkv node receives events on one goroutine per peer connection while
// the merge loop is a single logical writer. The queue decouples the two: any
// number of goroutines may Push concurrently; exactly one consumer drains the
// Recv channel.
//
// Guarantees:
//
//   - Non-blocking writes: the list append is pure CAS; producers only
//     touch the mutex for the wakeup handshake with the pump, never while
//     the pump is delivering
//   - Unbounded: limited only by available memory (the node core applies its
//     own capacity policy before events reach long-lived buffers)
//   - Items already queued are still delivered after Close
//   - No strict FIFO across producers: ordering between concurrent pushes is
//     decided by which CAS wins, which is fine for the merge loop since the
//     DAG imposes its own causal order
package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// mpscNode is a single element of the queue's linked list.
type mpscNode[T any] struct {
	value *T
	next  atomic.Pointer[mpscNode[T]]
}

// MPSC is a lock-free multi-producer single-consumer queue.
type MPSC[T any] struct {
	head   atomic.Pointer[mpscNode[T]]
	tail   atomic.Pointer[mpscNode[T]]
	out    chan *T
	closed atomic.Bool

	mu   sync.Mutex
	cond *sync.Cond
}

// NewMPSC creates the queue and starts its consumer pump.
func NewMPSC[T any]() *MPSC[T] {
	sentinel := &mpscNode[T]{}

	q := &MPSC[T]{out: make(chan *T)}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.pump()

	return q
}

// Push appends an item. It returns false if the queue is closed or the item
// is nil.
//
// Thread-safety: safe for concurrent use by any number of producers.
func (q *MPSC[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	n := &mpscNode[T]{value: value}

	var backoff uint8
	for {
		tail := q.tail.Load()
		next := tail.next.Load()

		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				// The tail CAS may lose to a helping producer; the tail
				// still converges.
				q.tail.CompareAndSwap(tail, n)
				q.wake()
				return true
			}
		} else {
			// Help a stalled producer complete its tail update.
			q.tail.CompareAndSwap(tail, next)
		}

		// Exponential backoff under contention; spin first, then yield.
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// pump moves items from the linked list to the output channel.
func (q *MPSC[T]) pump() {
	defer close(q.out)

	for {
		drained := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			drained = true

			value := next.value
			q.head.Store(next)
			q.out <- value
			next.value = nil
		}

		if !drained && q.closed.Load() {
			return
		}

		if !drained {
			q.mu.Lock()
			if q.head.Load().next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns the consumption channel. The channel is closed once Close has
// been called and all queued items were delivered.
func (q *MPSC[T]) Recv() <-chan *T {
	return q.out
}

// wake signals the pump. The mutex is held across the signal so a wakeup
// cannot fall between the pump's emptiness check and its Wait.
func (q *MPSC[T]) wake() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// Close prevents further writes. Queued items are still delivered.
func (q *MPSC[T]) Close() {
	q.closed.Store(true)
	q.wake()
}

// IsClosed reports whether Close has been called.
func (q *MPSC[T]) IsClosed() bool {
	return q.closed.Load()
}
