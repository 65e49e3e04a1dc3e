package dag

import (
	"bytes"
	"testing"

	"github.com/minkv/minkv/lib/event"
	"github.com/minkv/minkv/lib/spacetime"
)

// replica couples a DAG with its materializer the way a node does.
type replica struct {
	d *DAG
	m *Materializer
}

func newReplica() *replica {
	return &replica{d: New(0), m: NewMaterializer()}
}

func (r *replica) admit(t *testing.T, ev event.Event) {
	t.Helper()
	res, committed, _ := r.d.Admit(ev)
	if res != Committed && res != Blocked && res != Duplicate {
		t.Fatalf("unexpected admit result %s", res)
	}
	for _, c := range committed {
		r.m.Apply(r.d, c)
	}
}

func TestMaterializeSingleWriter(t *testing.T) {
	r := newReplica()

	ev := event.New("n1", spacetime.Coord{T: 1}, r.d.Heads(), setOp("city", "berlin"))
	r.admit(t, ev)

	v, ok := r.m.Read("city")
	if !ok || string(v) != "berlin" {
		t.Errorf("Read = (%q,%t), want (berlin,true)", v, ok)
	}
	if _, ok := r.m.Read("unknown"); ok {
		t.Error("unwritten key must be absent")
	}
}

func TestCausalOverwrite(t *testing.T) {
	r := newReplica()

	first := event.New("n1", spacetime.Coord{T: 1}, r.d.Heads(), setOp("k", "old"))
	r.admit(t, first)
	second := event.New("n1", spacetime.Coord{T: 2}, r.d.Heads(), setOp("k", "new"))
	r.admit(t, second)

	v, _ := r.m.Read("k")
	if string(v) != "new" {
		t.Errorf("causal successor must win regardless of ids, got %q", v)
	}
	if w, _ := r.m.Winner("k"); w != second.ID {
		t.Errorf("winner must be the descendant write")
	}
}

func TestDeleteTombstone(t *testing.T) {
	r := newReplica()

	set := event.New("n1", spacetime.Coord{T: 1}, r.d.Heads(), setOp("k", "v"))
	r.admit(t, set)
	del := event.New("n1", spacetime.Coord{T: 2}, r.d.Heads(),
		event.Operation{Kind: event.OpDelete, Key: "k"})
	r.admit(t, del)

	if _, ok := r.m.Read("k"); ok {
		t.Error("deleted key must read as absent")
	}
	if w, ok := r.m.Winner("k"); !ok || w != del.ID {
		t.Error("tombstone must remain the winner")
	}
}

func TestConcurrentWritesDeterministicWinner(t *testing.T) {
	// Two concurrent writes to the same key, fed to two replicas in
	// opposite orders. Both must converge on the write with the greater id.
	r1 := newReplica()
	r2 := newReplica()
	genesis := r1.d.Heads()

	a := event.New("earth", spacetime.Coord{T: 1}, genesis, setOp("k", "earth"))
	b := event.New("mars", spacetime.Coord{T: 1, X: 5.4e10}, genesis, setOp("k", "mars"))

	r1.admit(t, a)
	r1.admit(t, b)

	r2.admit(t, b)
	r2.admit(t, a)

	v1, _ := r1.m.Read("k")
	v2, _ := r2.m.Read("k")
	if !bytes.Equal(v1, v2) {
		t.Fatalf("replicas diverged: %q vs %q", v1, v2)
	}

	want := a
	if want.ID.Less(b.ID) {
		want = b
	}
	if !bytes.Equal(v1, want.Op.Value) {
		t.Errorf("winner must be the lexicographically greater id, got %q want %q", v1, want.Op.Value)
	}
}

func TestDescendantBeatsGreaterConcurrentID(t *testing.T) {
	// Regression against naive last-writer-wins: a descendant write
	// supersedes its ancestor even if a concurrent branch carries a
	// greater id than the descendant. The winner is chosen among the
	// per-key frontier only.
	//
	// Topology (all writes to key k):
	//
	//	genesis ── a ── b      (b descends from a)
	//	       └── c           (concurrent with both)
	//
	// Feed two replicas in different orders and require identical results.
	genesis := New(0).Heads()

	a := event.New("n1", spacetime.Coord{T: 1}, genesis, setOp("k", "a"))
	b := event.New("n1", spacetime.Coord{T: 2}, []event.ID{a.ID}, setOp("k", "b"))
	c := event.New("n2", spacetime.Coord{T: 1, X: 1e12}, genesis, setOp("k", "c"))

	orders := [][]event.Event{
		{a, b, c},
		{a, c, b},
		{c, a, b},
		{b, a, c}, // b blocks until a arrives
	}

	var results [][]byte
	for _, order := range orders {
		r := newReplica()
		for _, ev := range order {
			r.admit(t, ev)
		}
		v, ok := r.m.Read("k")
		if !ok {
			t.Fatal("key must be present")
		}
		results = append(results, v)
	}

	for i := 1; i < len(results); i++ {
		if !bytes.Equal(results[0], results[i]) {
			t.Fatalf("admission order changed the result: %q vs %q", results[0], results[i])
		}
	}

	// The frontier is {b, c}; the winner is whichever of the two has the
	// greater id — never a, which is superseded by b.
	want := b
	if want.ID.Less(c.ID) {
		want = c
	}
	if !bytes.Equal(results[0], want.Op.Value) {
		t.Errorf("expected frontier winner %q, got %q", want.Op.Value, results[0])
	}
}

func TestConvergenceAcrossKeysAndBranches(t *testing.T) {
	// A deeper exchange: two origins write interleaved keys on forked
	// branches; replicas receiving the full set in different orders must
	// materialize identical state for every key.
	base := newReplica()
	genesis := base.d.Heads()

	a1 := event.New("n1", spacetime.Coord{T: 1}, genesis, setOp("x", "a1"))
	b1 := event.New("n2", spacetime.Coord{T: 1, X: 7e11}, genesis, setOp("y", "b1"))
	a2 := event.New("n1", spacetime.Coord{T: 2}, []event.ID{a1.ID}, setOp("y", "a2"))
	b2 := event.New("n2", spacetime.Coord{T: 2, X: 7e11}, []event.ID{b1.ID}, setOp("x", "b2"))
	join := event.New("n1", spacetime.Coord{T: 9}, []event.ID{a2.ID, b2.ID}, setOp("z", "join"))

	all := []event.Event{a1, b1, a2, b2, join}
	orders := [][]event.Event{
		{a1, b1, a2, b2, join},
		{b1, b2, a1, a2, join},
		{join, b2, a2, b1, a1}, // heavy reordering via the blocked set
	}

	var replicas []*replica
	for _, order := range orders {
		r := newReplica()
		for _, ev := range order {
			r.admit(t, ev)
		}
		if r.d.Len() != len(all)+1 {
			t.Fatalf("replica did not commit the full set: %d events", r.d.Len())
		}
		replicas = append(replicas, r)
	}

	for _, key := range []string{"x", "y", "z"} {
		v0, ok0 := replicas[0].m.Read(key)
		for _, r := range replicas[1:] {
			v, ok := r.m.Read(key)
			if ok != ok0 || !bytes.Equal(v, v0) {
				t.Errorf("key %q diverged: (%q,%t) vs (%q,%t)", key, v0, ok0, v, ok)
			}
		}
	}
}
