package node

import (
	"fmt"
	"sync"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/minkv/minkv/lib/event"
)

// --------------------------------------------------------------------------
// Transition Notifications
// --------------------------------------------------------------------------

// Transition enumerates the observable state transitions of the core.
type Transition int

const (
	TransitionAdmit          Transition = iota // event passed the causal gate
	TransitionDelay                            // event parked until its light-cone deadline
	TransitionReject                           // event rejected (clock skew)
	TransitionCommit                           // event entered the DAG
	TransitionBufferOverflow                   // pending/blocked capacity exceeded, entry shed
)

func (t Transition) String() string {
	switch t {
	case TransitionAdmit:
		return "admit"
	case TransitionDelay:
		return "delay"
	case TransitionReject:
		return "reject"
	case TransitionCommit:
		return "commit"
	case TransitionBufferOverflow:
		return "buffer_overflow"
	default:
		return "unknown"
	}
}

// Notification is one observable transition, published to subscribers for
// display and audit purposes.
type Notification struct {
	Transition Transition
	Event      event.ID
	// ReleaseAt is set for delay transitions: the local coordinate time at
	// which the event becomes admissible.
	ReleaseAt uint64
}

// --------------------------------------------------------------------------
// Notifier
// --------------------------------------------------------------------------

// subscriberBuffer is the per-subscriber channel capacity. A slow consumer
// loses notifications rather than slowing the core down.
const subscriberBuffer = 128

// notifier fans transitions out to subscribers and mirrors them into the
// process metrics set. Publishing never blocks: notifications to a full
// subscriber are dropped.
type notifier struct {
	mu     sync.Mutex
	subs   []chan Notification
	closed bool

	admitted    *vm.Counter
	delayed     *vm.Counter
	rejected    *vm.Counter
	committed   *vm.Counter
	overflowed  *vm.Counter
	dropped     *vm.Counter // notifications lost to slow subscribers
}

// newNotifier creates the notifier for one node; nodeID labels the metrics
// so simulated multi-node processes stay distinguishable.
func newNotifier(nodeID string) *notifier {
	counter := func(name string) *vm.Counter {
		return vm.GetOrCreateCounter(fmt.Sprintf(`minkv_core_transitions_total{transition=%q,node=%q}`, name, nodeID))
	}
	return &notifier{
		admitted:   counter("admit"),
		delayed:    counter("delay"),
		rejected:   counter("reject"),
		committed:  counter("commit"),
		overflowed: counter("buffer_overflow"),
		dropped:    vm.GetOrCreateCounter(fmt.Sprintf(`minkv_telemetry_dropped_total{node=%q}`, nodeID)),
	}
}

// publish records the transition and offers it to every subscriber,
// dropping on full buffers.
func (n *notifier) publish(note Notification) {
	switch note.Transition {
	case TransitionAdmit:
		n.admitted.Inc()
	case TransitionDelay:
		n.delayed.Inc()
	case TransitionReject:
		n.rejected.Inc()
	case TransitionCommit:
		n.committed.Inc()
	case TransitionBufferOverflow:
		n.overflowed.Inc()
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	for _, sub := range n.subs {
		select {
		case sub <- note:
		default:
			n.dropped.Inc()
		}
	}
}

// subscribe registers a new consumer.
func (n *notifier) subscribe() <-chan Notification {
	ch := make(chan Notification, subscriberBuffer)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		close(ch)
		return ch
	}
	n.subs = append(n.subs, ch)
	return ch
}

// close terminates all subscriber channels.
func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for _, sub := range n.subs {
		close(sub)
	}
	n.subs = nil
}
