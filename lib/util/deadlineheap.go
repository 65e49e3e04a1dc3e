// This file provides a deadline-ordered priority queue with key-based access.
//
// The implementation combines a binary heap with a hash map so that both
// access patterns stay cheap:
//
//   - O(log n) for deadline operations (push, pop, update)
//   - O(1) for key-based lookups and existence checks
//   - O(log n) for key-based removal
//
// Entries with equal deadlines are ordered by the caller-supplied tie-break
// function, so pop order is fully deterministic.
//
// The heap is not thread-safe; callers serialize access externally.
package util

import (
	"container/heap"
)

// entry is a single element of the heap.
type entry[K comparable] struct {
	key      K
	deadline uint64
	index    int // position in the heap slice, maintained by heap package
}

// DeadlineHeap is a min-heap ordered by (deadline, tie-break) with O(1)
// key-based access.
type DeadlineHeap[K comparable] struct {
	items    []*entry[K]
	itemsMap map[K]*entry[K]
	tieBreak func(a, b K) bool
}

// NewDeadlineHeap creates an empty heap. tieBreak orders keys whose deadlines
// are equal; it must define a strict total order over keys.
func NewDeadlineHeap[K comparable](tieBreak func(a, b K) bool) *DeadlineHeap[K] {
	return &DeadlineHeap[K]{
		itemsMap: make(map[K]*entry[K]),
		tieBreak: tieBreak,
	}
}

// --------------------------------------------------------------------------
// heap.Interface
// --------------------------------------------------------------------------

func (h *DeadlineHeap[K]) Len() int { return len(h.items) }

func (h *DeadlineHeap[K]) Less(i, j int) bool {
	if h.items[i].deadline != h.items[j].deadline {
		return h.items[i].deadline < h.items[j].deadline
	}
	return h.tieBreak(h.items[i].key, h.items[j].key)
}

func (h *DeadlineHeap[K]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *DeadlineHeap[K]) Push(x interface{}) {
	e := x.(*entry[K])
	e.index = len(h.items)
	h.items = append(h.items, e)
	h.itemsMap[e.key] = e
}

func (h *DeadlineHeap[K]) Pop() interface{} {
	old := h.items
	n := len(old)
	e := old[n-1]
	old[n-1] = nil // avoid memory leak
	e.index = -1
	h.items = old[:n-1]
	delete(h.itemsMap, e.key)
	return e
}

// --------------------------------------------------------------------------
// Public API
// --------------------------------------------------------------------------

// Add inserts a key with the given deadline, or updates the deadline if the
// key is already present.
func (h *DeadlineHeap[K]) Add(key K, deadline uint64) {
	if e, exists := h.itemsMap[key]; exists {
		e.deadline = deadline
		heap.Fix(h, e.index)
		return
	}
	heap.Push(h, &entry[K]{key: key, deadline: deadline})
}

// PopMin removes and returns the entry with the earliest deadline.
func (h *DeadlineHeap[K]) PopMin() (K, uint64, bool) {
	if len(h.items) == 0 {
		var zero K
		return zero, 0, false
	}
	e := heap.Pop(h).(*entry[K])
	return e.key, e.deadline, true
}

// PeekMin returns the earliest entry without removing it.
func (h *DeadlineHeap[K]) PeekMin() (K, uint64, bool) {
	if len(h.items) == 0 {
		var zero K
		return zero, 0, false
	}
	return h.items[0].key, h.items[0].deadline, true
}

// Max returns the entry with the latest deadline without removing it.
// Ties are broken by the tie-break function (the greater key wins). This is
// an O(n) scan over the leaves; it is only used on the shedding path.
func (h *DeadlineHeap[K]) Max() (K, uint64, bool) {
	if len(h.items) == 0 {
		var zero K
		return zero, 0, false
	}
	best := h.items[0]
	for _, e := range h.items[1:] {
		if e.deadline > best.deadline ||
			(e.deadline == best.deadline && h.tieBreak(best.key, e.key)) {
			best = e
		}
	}
	return best.key, best.deadline, true
}

// Remove deletes an entry by its key, returning its deadline.
func (h *DeadlineHeap[K]) Remove(key K) (uint64, bool) {
	e, exists := h.itemsMap[key]
	if !exists {
		return 0, false
	}
	heap.Remove(h, e.index)
	return e.deadline, true
}

// Contains checks whether a key is queued.
func (h *DeadlineHeap[K]) Contains(key K) bool {
	_, exists := h.itemsMap[key]
	return exists
}
