package gate

import (
	"github.com/minkv/minkv/lib/event"
	"github.com/minkv/minkv/lib/util"
)

// Scheduler is the time-ordered pending queue for physically-delayed events.
//
// One heap serves all buffered events; the owning node runs a single timer
// loop that wakes for the nearest deadline, so a delayed event never pins a
// goroutine. Pop order is (deadline, event ID) — deterministic even when
// multiple events share an exact release time.
//
// The queue is capacity-bounded. When full, the entry with the furthest
// release deadline — which may be the newly arriving event — is shed. The
// shed event is reported so the node can surface the overflow; this is the
// only path on which a causally-valid event is permanently lost.
//
// Thread-safety: none. The owning node serializes all access.
type Scheduler struct {
	heap   *util.DeadlineHeap[event.ID]
	parked map[event.ID]event.Event
	cap    int
}

// NewScheduler creates a pending queue bounded to capacity entries.
// Zero or negative means unbounded.
func NewScheduler(capacity int) *Scheduler {
	return &Scheduler{
		heap:   util.NewDeadlineHeap[event.ID](func(a, b event.ID) bool { return a.Less(b) }),
		parked: make(map[event.ID]event.Event),
		cap:    capacity,
	}
}

// Len returns the number of buffered events.
func (s *Scheduler) Len() int {
	return len(s.parked)
}

// Contains reports whether an event is currently buffered.
func (s *Scheduler) Contains(id event.ID) bool {
	return s.heap.Contains(id)
}

// Add buffers an event until releaseAt. Re-adding a buffered event updates
// its deadline.
//
// When the queue is full the furthest-deadline entry is shed: either the
// incoming event itself (if its deadline is the furthest) or the previous
// maximum, which makes room for the newcomer. The returned event is the shed
// one; the boolean reports whether shedding happened.
func (s *Scheduler) Add(ev event.Event, releaseAt uint64) (event.Event, bool) {
	if s.heap.Contains(ev.ID) {
		s.heap.Add(ev.ID, releaseAt)
		return event.Event{}, false
	}

	if s.cap > 0 && len(s.parked) >= s.cap {
		maxID, maxAt, _ := s.heap.Max()

		// The newcomer is the furthest pending entry: shed it outright.
		if releaseAt > maxAt || (releaseAt == maxAt && maxID.Less(ev.ID)) {
			return ev, true
		}

		// Otherwise evict the current maximum to make room.
		s.heap.Remove(maxID)
		shed := s.parked[maxID]
		delete(s.parked, maxID)

		s.heap.Add(ev.ID, releaseAt)
		s.parked[ev.ID] = ev
		return shed, true
	}

	s.heap.Add(ev.ID, releaseAt)
	s.parked[ev.ID] = ev
	return event.Event{}, false
}

// Due pops every event whose deadline is at or before now, in deterministic
// (deadline, ID) order. Re-evaluation of a popped event always admits: the
// monotonic clock guarantees the mandated delay has elapsed.
func (s *Scheduler) Due(now uint64) []event.Event {
	var due []event.Event
	for {
		id, at, ok := s.heap.PeekMin()
		if !ok || at > now {
			break
		}
		s.heap.PopMin()
		due = append(due, s.parked[id])
		delete(s.parked, id)
	}
	return due
}

// NextDeadline returns the earliest pending release time.
func (s *Scheduler) NextDeadline() (uint64, bool) {
	_, at, ok := s.heap.PeekMin()
	return at, ok
}
