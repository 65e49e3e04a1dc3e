package dag

import (
	"github.com/minkv/minkv/lib/event"
	"github.com/puzpuzpuz/xsync/v3"
)

// keyState tracks the materialization of a single key.
//
// frontier holds the IDs of the key's frontier writes: committed Set/Delete
// events for the key that no other committed write to the same key descends
// from. The winner is the frontier write with the lexicographically greatest
// ID — a deterministic, arrival-order-independent choice among concurrent
// branches. A write on only one branch of the DAG can never oust a
// descendant write on another key path, because descendants evict their
// ancestors from the frontier first.
type keyState struct {
	frontier []event.ID
	winner   event.ID
	value    []byte
	present  bool // false when the winning write is a Delete
}

// Materializer folds committed events into the key-value snapshot.
//
// Writes (Apply) happen only on the merge path and are serialized by the
// owning node together with all other DAG mutation. Reads go through a
// concurrent map and never block the merge path.
type Materializer struct {
	state *xsync.MapOf[string, keyState]
}

// NewMaterializer creates an empty snapshot.
func NewMaterializer() *Materializer {
	return &Materializer{
		state: xsync.NewMapOf[string, keyState](),
	}
}

// Apply folds one committed event into the snapshot. Events must be applied
// in commit order, which the merge engine guarantees is a topological order:
// every event is applied after all of its ancestors.
//
// Applying is what makes replicas converge: for each key the set of frontier
// writes is a pure function of the committed event set, and the winner is a
// pure function of the frontier.
func (m *Materializer) Apply(d *DAG, ev event.Event) {
	switch ev.Op.Kind {
	case event.OpSet, event.OpDelete:
	default:
		// Genesis and heartbeats carry no key-value effect.
		return
	}

	st, _ := m.state.Load(ev.Op.Key)

	// The new write descends from every frontier entry it knows about;
	// those entries are superseded. Entries on concurrent branches stay.
	frontier := st.frontier[:0:0]
	for _, id := range st.frontier {
		if !d.IsAncestor(id, ev.ID) {
			frontier = append(frontier, id)
		}
	}
	frontier = append(frontier, ev.ID)
	event.SortIDs(frontier)

	// Winner: greatest ID on the frontier. The sort above makes this the
	// last element.
	winnerID := frontier[len(frontier)-1]
	winner, ok := d.Get(winnerID)
	if !ok {
		// Frontier entries are always committed; this would be a merge
		// engine bug.
		panic("materializer: frontier event missing from DAG")
	}

	m.state.Store(ev.Op.Key, keyState{
		frontier: frontier,
		winner:   winnerID,
		value:    winner.Op.Value,
		present:  winner.Op.Kind == event.OpSet,
	})
}

// Read returns the materialized value for a key. The boolean is false if the
// key was never written or its winning write is a Delete.
//
// Thread-safety: safe for concurrent use; never blocks the merge path.
func (m *Materializer) Read(key string) ([]byte, bool) {
	st, ok := m.state.Load(key)
	if !ok || !st.present {
		return nil, false
	}
	return st.value, true
}

// Winner returns the ID of the event whose write currently materializes the
// key. Used by telemetry and tests.
func (m *Materializer) Winner(key string) (event.ID, bool) {
	st, ok := m.state.Load(key)
	if !ok {
		return event.ID{}, false
	}
	return st.winner, true
}

// Keys returns every key that has a materialized state, tombstones included.
func (m *Materializer) Keys() []string {
	var keys []string
	m.state.Range(func(k string, _ keyState) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}
