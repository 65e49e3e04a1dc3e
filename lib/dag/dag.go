package dag

import (
	"fmt"

	"github.com/minkv/minkv/lib/event"
)

// --------------------------------------------------------------------------
// Admission results
// --------------------------------------------------------------------------

// AdmitResult describes the outcome of handing an event to the merge engine.
type AdmitResult int

const (
	// Committed: the event and possibly events blocked on it entered the DAG.
	Committed AdmitResult = iota
	// Blocked: one or more parents are missing; the event is parked until
	// they arrive.
	Blocked
	// Duplicate: the event was already known. Merging is idempotent, so this
	// is a no-op, not an error.
	Duplicate
	// Overflow: the blocked set is at capacity and the event was shed.
	Overflow
)

func (r AdmitResult) String() string {
	switch r {
	case Committed:
		return "committed"
	case Blocked:
		return "blocked"
	case Duplicate:
		return "duplicate"
	case Overflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// blockedEvent is an event waiting for missing parents.
type blockedEvent struct {
	ev      event.Event
	missing map[event.ID]struct{}
}

// --------------------------------------------------------------------------
// DAG
// --------------------------------------------------------------------------

// DAG is the append-only causal event graph of a single node.
//
// Events are held in an arena-style map from content ID to record; parent
// references are IDs rather than pointers, so arbitrary fan-in and fan-out
// never create ownership cycles. The graph only grows for the lifetime of
// the node.
//
// Thread-safety: none. The owning node serializes all access.
type DAG struct {
	events map[event.ID]event.Event
	heads  map[event.ID]struct{}

	// Dependency-blocked events, indexed both ways: by the blocked event's
	// own ID and by each missing parent that would unblock it.
	blocked    map[event.ID]*blockedEvent
	waiters    map[event.ID][]event.ID // missing parent -> blocked event IDs
	blockedCap int

	genesis event.ID
}

// New creates a DAG anchored at the shared deterministic genesis event.
// blockedCap bounds the dependency-blocked set; zero or negative means
// unbounded.
func New(blockedCap int) *DAG {
	g := event.Genesis()

	d := &DAG{
		events:     map[event.ID]event.Event{g.ID: g},
		heads:      map[event.ID]struct{}{g.ID: {}},
		blocked:    make(map[event.ID]*blockedEvent),
		waiters:    make(map[event.ID][]event.ID),
		blockedCap: blockedCap,
		genesis:    g.ID,
	}
	return d
}

// Genesis returns the ID of the anchoring event.
func (d *DAG) Genesis() event.ID {
	return d.genesis
}

// Len returns the number of committed events, genesis included.
func (d *DAG) Len() int {
	return len(d.events)
}

// BlockedLen returns the number of dependency-blocked events.
func (d *DAG) BlockedLen() int {
	return len(d.blocked)
}

// Contains reports whether an event is committed.
func (d *DAG) Contains(id event.ID) bool {
	_, ok := d.events[id]
	return ok
}

// Get returns a committed event by ID.
func (d *DAG) Get(id event.ID) (event.Event, bool) {
	ev, ok := d.events[id]
	return ev, ok
}

// Heads returns the current causal frontier in canonical (sorted) order.
// These are the parents of the node's next local write.
func (d *DAG) Heads() []event.ID {
	out := make([]event.ID, 0, len(d.heads))
	for id := range d.heads {
		out = append(out, id)
	}
	return event.SortIDs(out)
}

// Admit inserts an event whose parents may or may not be present yet.
//
// If every parent is committed, the event commits immediately and all events
// blocked on it are re-checked; the returned slice holds every event that
// committed in this call, in commit order (a topological order). If parents
// are missing, the event is parked and the missing IDs are returned so the
// caller can request them from peers.
//
// Admitting a known ID is a no-op: events are content-addressed, so a
// duplicate carries no new information.
func (d *DAG) Admit(ev event.Event) (AdmitResult, []event.Event, []event.ID) {
	if d.Contains(ev.ID) {
		return Duplicate, nil, nil
	}
	if _, parked := d.blocked[ev.ID]; parked {
		return Duplicate, nil, nil
	}

	missing := d.missingParents(ev)
	if len(missing) > 0 {
		if d.blockedCap > 0 && len(d.blocked) >= d.blockedCap {
			return Overflow, nil, missing
		}
		d.park(ev, missing)
		return Blocked, nil, missing
	}

	committed := d.commit(ev)
	return Committed, committed, nil
}

// missingParents returns the parents of ev not yet committed, in canonical
// order.
func (d *DAG) missingParents(ev event.Event) []event.ID {
	var missing []event.ID
	for _, p := range ev.Parents {
		if !d.Contains(p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// park moves an event to the blocked set, indexed by each missing parent.
func (d *DAG) park(ev event.Event, missing []event.ID) {
	be := &blockedEvent{
		ev:      ev,
		missing: make(map[event.ID]struct{}, len(missing)),
	}
	for _, p := range missing {
		be.missing[p] = struct{}{}
		d.waiters[p] = append(d.waiters[p], ev.ID)
	}
	d.blocked[ev.ID] = be
}

// commit inserts an event with all parents present, updates the frontier and
// cascades into events that were blocked on it.
func (d *DAG) commit(ev event.Event) []event.Event {
	committed := []event.Event{}

	// Work queue of ready events; each commit may ready further waiters.
	ready := []event.Event{ev}

	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]

		d.events[next.ID] = next

		// A parent with a known successor is no longer a head.
		for _, p := range next.Parents {
			delete(d.heads, p)
		}
		d.heads[next.ID] = struct{}{}

		committed = append(committed, next)

		// Re-check events blocked on the event that just landed.
		for _, waiterID := range d.waiters[next.ID] {
			be, ok := d.blocked[waiterID]
			if !ok {
				continue
			}
			delete(be.missing, next.ID)
			if len(be.missing) == 0 {
				delete(d.blocked, waiterID)
				ready = append(ready, be.ev)
			}
		}
		delete(d.waiters, next.ID)
	}

	return committed
}

// IsAncestor reports whether a is an ancestor of b (a is reachable from b by
// following parent links). An event is not its own ancestor.
func (d *DAG) IsAncestor(a, b event.ID) bool {
	if a == b {
		return false
	}

	visited := make(map[event.ID]struct{})
	stack := []event.ID{b}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		ev, ok := d.events[id]
		if !ok {
			continue
		}
		for _, p := range ev.Parents {
			if p == a {
				return true
			}
			if _, seen := visited[p]; !seen {
				visited[p] = struct{}{}
				stack = append(stack, p)
			}
		}
	}
	return false
}

// Ancestry returns ev plus its ancestors up to depth generations back, in
// parent-before-child order. It backs the gossip payload: shipping recent
// ancestors alongside a new event lets receivers commit without blocking on
// missing parents.
func (d *DAG) Ancestry(id event.ID, depth int) []event.Event {
	type frame struct {
		id    event.ID
		depth int
	}

	collected := map[event.ID]event.Event{}

	stack := []frame{{id, depth}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := collected[f.id]; seen {
			continue
		}
		ev, ok := d.events[f.id]
		if !ok {
			continue
		}
		collected[f.id] = ev

		if f.depth > 0 {
			for _, p := range ev.Parents {
				stack = append(stack, frame{p, f.depth - 1})
			}
		}
	}

	return topoOrder(collected)
}

// topoOrder arranges a set of events parent-before-child. Events whose
// parents lie outside the set are treated as roots. Ties are broken by ID so
// the order is deterministic.
func topoOrder(set map[event.ID]event.Event) []event.Event {
	pending := make(map[event.ID]int, len(set)) // unemitted in-set parents
	var ready []event.ID

	for id, ev := range set {
		n := 0
		for _, p := range ev.Parents {
			if _, ok := set[p]; ok {
				n++
			}
		}
		pending[id] = n
		if n == 0 {
			ready = append(ready, id)
		}
	}
	event.SortIDs(ready)

	order := make([]event.Event, 0, len(set))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, set[id])

		var unlocked []event.ID
		for cid, cev := range set {
			if pending[cid] == 0 {
				continue
			}
			for _, p := range cev.Parents {
				if p == id {
					pending[cid]--
					if pending[cid] == 0 {
						unlocked = append(unlocked, cid)
					}
					break
				}
			}
		}
		event.SortIDs(unlocked)
		ready = append(ready, unlocked...)
	}
	return order
}

// CheckInvariants walks the committed graph and verifies that no admitted
// event references an unknown parent. It is meant for tests and debug
// assertions, not the hot path.
func (d *DAG) CheckInvariants() error {
	for id, ev := range d.events {
		for _, p := range ev.Parents {
			if !d.Contains(p) {
				return fmt.Errorf("event %s has dangling parent %s", id.Short(), p.Short())
			}
		}
	}
	for id := range d.heads {
		if !d.Contains(id) {
			return fmt.Errorf("head %s not committed", id.Short())
		}
	}
	return nil
}
