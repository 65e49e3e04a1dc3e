package testing

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/minkv/minkv/lib/event"
	"github.com/minkv/minkv/lib/node"
	"github.com/minkv/minkv/lib/spacetime"
)

const second = uint64(time.Second)

// NodeFactory builds a fresh replica with the given identity, propagation
// constant and time source. The suite closes every node it creates.
type NodeFactory func(id string, c float64, clk node.Clock) (*node.Node, error)

// RunNodeCoreTests runs the behavioral test suite every replica core must
// pass: convergence under reordering, idempotent delivery, light-cone
// buffering, clock-skew rejection and deterministic conflict resolution.
func RunNodeCoreTests(t *testing.T, name string, factory NodeFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Convergence", func(t *testing.T) {
			testConvergence(t, factory)
		})

		t.Run("Idempotence", func(t *testing.T) {
			testIdempotence(t, factory)
		})

		t.Run("LightConeHold", func(t *testing.T) {
			testLightConeHold(t, factory)
		})

		t.Run("ClockSkewRejection", func(t *testing.T) {
			testClockSkewRejection(t, factory)
		})

		t.Run("TamperRejection", func(t *testing.T) {
			testTamperRejection(t, factory)
		})

		t.Run("DeterministicTieBreak", func(t *testing.T) {
			testDeterministicTieBreak(t, factory)
		})

		t.Run("DeleteSupersedes", func(t *testing.T) {
			testDeleteSupersedes(t, factory)
		})

		t.Run("HeartbeatJoinsFrontier", func(t *testing.T) {
			testHeartbeatJoinsFrontier(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// newNode invokes the factory and registers the node for cleanup.
func newNode(t *testing.T, factory NodeFactory, id string, c float64, clk node.Clock) *node.Node {
	t.Helper()
	n, err := factory(id, c, clk)
	if err != nil {
		t.Fatalf("factory(%s): %v", id, err)
	}
	t.Cleanup(n.Close)
	return n
}

// remoteEvent builds a valid event as a peer at position x would have
// created it, parented on the shared genesis.
func remoteEvent(origin string, tm uint64, x float64, op event.Operation) event.Event {
	coord := spacetime.Coord{T: tm, X: x}
	return event.New(origin, coord, []event.ID{event.Genesis().ID}, op)
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testConvergence(t *testing.T, factory NodeFactory) {
	clk := node.NewManualClock(1000 * second)
	a := newNode(t, factory, "conv-a", spacetime.DefaultC, clk)
	b := newNode(t, factory, "conv-b", spacetime.DefaultC, clk)

	var events []event.Event
	for i := 0; i < 16; i++ {
		origin := fmt.Sprintf("peer-%d", i)
		events = append(events, remoteEvent(origin, uint64(i+1)*second, 0,
			event.Operation{Kind: event.OpSet, Key: "contested", Value: []byte(fmt.Sprintf("w%d", i))}))
		events = append(events, remoteEvent(origin, uint64(i+1)*second, 0,
			event.Operation{Kind: event.OpSet, Key: fmt.Sprintf("own-%d", i), Value: []byte("x")}))
	}

	for _, ev := range events {
		if err := a.Ingest(ev); err != nil {
			t.Fatalf("a ingest: %v", err)
		}
	}
	for i := len(events) - 1; i >= 0; i-- {
		if err := b.Ingest(events[i]); err != nil {
			t.Fatalf("b ingest: %v", err)
		}
	}

	keys := []string{"contested"}
	for i := 0; i < 16; i++ {
		keys = append(keys, fmt.Sprintf("own-%d", i))
	}
	for _, key := range keys {
		va, oka := a.Get(key)
		vb, okb := b.Get(key)
		if oka != okb || !bytes.Equal(va, vb) {
			t.Errorf("replicas diverge on %q: a=(%q,%v) b=(%q,%v)", key, va, oka, vb, okb)
		}
	}
}

func testIdempotence(t *testing.T, factory NodeFactory) {
	clk := node.NewManualClock(1000 * second)
	n := newNode(t, factory, "idem", spacetime.DefaultC, clk)

	ev := remoteEvent("peer", 10*second, 0,
		event.Operation{Kind: event.OpSet, Key: "k", Value: []byte("v")})
	for i := 0; i < 5; i++ {
		if err := n.Ingest(ev); err != nil {
			t.Fatalf("ingest #%d: %v", i, err)
		}
	}

	// Genesis plus exactly one copy, however often it was delivered.
	if got := n.Stats().Events; got != 2 {
		t.Errorf("events = %d after redundant delivery, want 2", got)
	}
	if got, ok := n.Get("k"); !ok || !bytes.Equal(got, []byte("v")) {
		t.Errorf("get = (%q, %v)", got, ok)
	}
}

func testLightConeHold(t *testing.T, factory NodeFactory) {
	clk := node.NewManualClock(second)
	n := newNode(t, factory, "cone", 100, clk)

	// 300 meters away under c = 100 m/s: three seconds outside the cone.
	spacelike := remoteEvent("far-peer", second, 300,
		event.Operation{Kind: event.OpSet, Key: "far", Value: []byte("v")})
	if err := n.Ingest(spacelike); err != nil {
		t.Fatalf("ingest spacelike: %v", err)
	}
	if _, ok := n.Get("far"); ok {
		t.Error("spacelike event visible before light arrival")
	}
	if p := n.Stats().Pending; p != 1 {
		t.Errorf("pending = %d, want 1", p)
	}

	// The same distance with enough elapsed coordinate time is timelike and
	// commits immediately.
	clk.SetNow(10 * second)
	timelike := remoteEvent("far-peer", 2*second, 300,
		event.Operation{Kind: event.OpSet, Key: "near", Value: []byte("v")})
	if err := n.Ingest(timelike); err != nil {
		t.Fatalf("ingest timelike: %v", err)
	}
	if _, ok := n.Get("near"); !ok {
		t.Error("timelike event not visible immediately")
	}
}

func testClockSkewRejection(t *testing.T, factory NodeFactory) {
	clk := node.NewManualClock(10 * second)
	n := newNode(t, factory, "skew", spacetime.DefaultC, clk)

	future := remoteEvent("peer", 20*second, 0,
		event.Operation{Kind: event.OpSet, Key: "k", Value: []byte("v")})
	err := n.Ingest(future)
	if node.CodeOf(err) != node.RetCClockSkew {
		t.Fatalf("code = %s, want ClockSkew", node.CodeOf(err))
	}
	if _, ok := n.Get("k"); ok {
		t.Error("rejected event became visible")
	}
}

func testTamperRejection(t *testing.T, factory NodeFactory) {
	clk := node.NewManualClock(1000 * second)
	n := newNode(t, factory, "tamper", spacetime.DefaultC, clk)

	ev := remoteEvent("peer", 10*second, 0,
		event.Operation{Kind: event.OpSet, Key: "k", Value: []byte("v")})
	ev.Op.Value = []byte("forged")
	if node.CodeOf(n.Ingest(ev)) != node.RetCMalformedEvent {
		t.Fatal("event with mismatched identity passed the boundary")
	}
}

func testDeterministicTieBreak(t *testing.T, factory NodeFactory) {
	clk := node.NewManualClock(1000 * second)
	a := newNode(t, factory, "tie-a", spacetime.DefaultC, clk)
	b := newNode(t, factory, "tie-b", spacetime.DefaultC, clk)

	// Two concurrent writes to the same key on the same frontier. The winner
	// is fixed by event identity, so delivery order must not matter.
	w1 := remoteEvent("p1", 10*second, 0,
		event.Operation{Kind: event.OpSet, Key: "k", Value: []byte("one")})
	w2 := remoteEvent("p2", 10*second, 0,
		event.Operation{Kind: event.OpSet, Key: "k", Value: []byte("two")})

	want := []byte("one")
	if w2.ID.Hex() > w1.ID.Hex() {
		want = []byte("two")
	}

	for _, ev := range []event.Event{w1, w2} {
		if err := a.Ingest(ev); err != nil {
			t.Fatalf("a ingest: %v", err)
		}
	}
	for _, ev := range []event.Event{w2, w1} {
		if err := b.Ingest(ev); err != nil {
			t.Fatalf("b ingest: %v", err)
		}
	}

	va, oka := a.Get("k")
	vb, okb := b.Get("k")
	if !oka || !okb {
		t.Fatalf("tie not materialized: a=%v b=%v", oka, okb)
	}
	if !bytes.Equal(va, want) || !bytes.Equal(vb, want) {
		t.Errorf("tie-break not deterministic: a=%q b=%q want=%q", va, vb, want)
	}
}

func testDeleteSupersedes(t *testing.T, factory NodeFactory) {
	clk := node.NewManualClock(1000 * second)
	n := newNode(t, factory, "del", spacetime.DefaultC, clk)

	if _, err := n.Set("k", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := n.Delete("k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := n.Get("k"); ok {
		t.Error("key visible after delete")
	}

	// A later write on the tombstone's frontier resurrects the key.
	if _, err := n.Set("k", []byte("again")); err != nil {
		t.Fatalf("set after delete: %v", err)
	}
	if got, ok := n.Get("k"); !ok || !bytes.Equal(got, []byte("again")) {
		t.Errorf("get after rewrite = (%q, %v)", got, ok)
	}
}

func testHeartbeatJoinsFrontier(t *testing.T, factory NodeFactory) {
	clk := node.NewManualClock(1000 * second)
	n := newNode(t, factory, "hb", spacetime.DefaultC, clk)

	a := remoteEvent("pa", 10*second, 0, event.Operation{Kind: event.OpSet, Key: "a", Value: []byte("1")})
	b := remoteEvent("pb", 10*second, 0, event.Operation{Kind: event.OpSet, Key: "b", Value: []byte("2")})
	if err := n.Ingest(a); err != nil {
		t.Fatal(err)
	}
	if err := n.Ingest(b); err != nil {
		t.Fatal(err)
	}
	if h := len(n.Heads()); h != 2 {
		t.Fatalf("heads = %d before heartbeat, want 2", h)
	}

	hb, err := n.Heartbeat()
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	heads := n.Heads()
	if len(heads) != 1 || heads[0] != hb.ID {
		t.Errorf("heads = %v after heartbeat, want [%s]", heads, hb.ID.Short())
	}
}
