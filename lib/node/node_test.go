package node

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/minkv/minkv/lib/event"
	"github.com/minkv/minkv/lib/spacetime"
)

const second = uint64(time.Second)

// testNode builds a node with a manual clock so tests control time
// explicitly. Broadcast is nil unless a test wires one.
func testNode(t *testing.T, id string, pos [3]float64, c float64, clk *ManualClock) *Node {
	t.Helper()
	n, err := NewNode(Config{
		ID:       id,
		Position: pos,
		C:        c,
		Clock:    clk,
	}, nil)
	if err != nil {
		t.Fatalf("NewNode(%s): %v", id, err)
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

func TestSetGetDelete(t *testing.T) {
	clk := NewManualClock(1000 * second)
	n := testNode(t, "n1", [3]float64{}, spacetime.DefaultC, clk)

	if _, err := n.Set("answer", []byte("42")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := n.Get("answer")
	if !ok || !bytes.Equal(got, []byte("42")) {
		t.Fatalf("get after set = (%q, %v)", got, ok)
	}

	if _, err := n.Delete("answer"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := n.Get("answer"); ok {
		t.Fatal("key still visible after delete")
	}
	if _, ok := n.Get("missing"); ok {
		t.Fatal("unknown key reported as present")
	}
}

func TestSetRejectsEmptyKey(t *testing.T) {
	n := testNode(t, "n1", [3]float64{}, spacetime.DefaultC, NewManualClock(second))
	_, err := n.Set("", []byte("v"))
	if CodeOf(err) != RetCMalformedEvent {
		t.Fatalf("code = %s, want MalformedEvent", CodeOf(err))
	}
}

func TestIngestIdempotent(t *testing.T) {
	clk := NewManualClock(1000 * second)
	n := testNode(t, "n1", [3]float64{}, spacetime.DefaultC, clk)

	ev := remoteEvent("peer", 10*second, 0, event.Operation{Kind: event.OpSet, Key: "k", Value: []byte("v")})
	for i := 0; i < 3; i++ {
		if err := n.Ingest(ev); err != nil {
			t.Fatalf("ingest #%d: %v", i, err)
		}
	}

	// Genesis plus exactly one copy.
	if got := n.Stats().Events; got != 2 {
		t.Fatalf("events = %d, want 2", got)
	}
}

func TestIngestRejectsClockSkew(t *testing.T) {
	clk := NewManualClock(10 * second)
	n := testNode(t, "n1", [3]float64{}, spacetime.DefaultC, clk)

	ev := remoteEvent("peer", 20*second, 0, event.Operation{Kind: event.OpSet, Key: "k", Value: []byte("v")})
	err := n.Ingest(ev)
	if CodeOf(err) != RetCClockSkew {
		t.Fatalf("code = %s, want ClockSkew", CodeOf(err))
	}
	if _, ok := n.Get("k"); ok {
		t.Fatal("rejected event became visible")
	}
}

func TestIngestRejectsMalformed(t *testing.T) {
	n := testNode(t, "n1", [3]float64{}, spacetime.DefaultC, NewManualClock(10*second))

	ev := remoteEvent("peer", second, 0, event.Operation{Kind: event.OpSet, Key: "k", Value: []byte("v")})
	ev.Op.Value = []byte("tampered")
	if CodeOf(n.Ingest(ev)) != RetCMalformedEvent {
		t.Fatal("tampered event passed the boundary")
	}
}

// An event from 300 meters away under c = 100 m/s must stay invisible until
// three seconds of coordinate time have passed at the receiver.
func TestSpacelikeEventHeldUntilLightArrival(t *testing.T) {
	clk := NewManualClock(0)
	clk.SetNow(second) // receiver local time 1s
	n := testNode(t, "n1", [3]float64{}, 100, clk)

	sub := n.Subscribe()
	ev := remoteEvent("peer", second, 300, event.Operation{Kind: event.OpSet, Key: "k", Value: []byte("v")})
	if err := n.Ingest(ev); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	note := <-sub
	if note.Transition != TransitionDelay {
		t.Fatalf("transition = %s, want delay", note.Transition)
	}
	if want := 4 * second; note.ReleaseAt != want {
		t.Fatalf("releaseAt = %d, want %d (origin + 3s light delay)", note.ReleaseAt, want)
	}

	if _, ok := n.Get("k"); ok {
		t.Fatal("spacelike event visible before light arrival")
	}

	// Just before the deadline nothing is released.
	clk.SetNow(4*second - 1)
	n.releaseDue()
	if _, ok := n.Get("k"); ok {
		t.Fatal("event released before its deadline")
	}

	clk.SetNow(4 * second)
	n.releaseDue()
	got, ok := n.Get("k")
	if !ok || !bytes.Equal(got, []byte("v")) {
		t.Fatalf("get after release = (%q, %v)", got, ok)
	}
	if p := n.Stats().Pending; p != 0 {
		t.Fatalf("pending = %d after release, want 0", p)
	}
}

func TestDependencyBlockedUntilParentArrives(t *testing.T) {
	clk := NewManualClock(1000 * second)
	n := testNode(t, "n1", [3]float64{}, spacetime.DefaultC, clk)

	parent := remoteEvent("peer", 10*second, 0, event.Operation{Kind: event.OpSet, Key: "k", Value: []byte("old")})
	child := event.New("peer", spacetime.Coord{T: 20 * second}, []event.ID{parent.ID},
		event.Operation{Kind: event.OpSet, Key: "k", Value: []byte("new")})

	if err := n.Ingest(child); err != nil {
		t.Fatalf("ingest child: %v", err)
	}
	if _, ok := n.Get("k"); ok {
		t.Fatal("blocked event visible before its parent")
	}
	if b := n.Stats().Blocked; b != 1 {
		t.Fatalf("blocked = %d, want 1", b)
	}

	if err := n.Ingest(parent); err != nil {
		t.Fatalf("ingest parent: %v", err)
	}
	got, ok := n.Get("k")
	if !ok || !bytes.Equal(got, []byte("new")) {
		t.Fatalf("get after cascade = (%q, %v), want descendant value", got, ok)
	}
	if b := n.Stats().Blocked; b != 0 {
		t.Fatalf("blocked = %d after cascade, want 0", b)
	}
}

func TestPendingOverflowShedsFurthestDeadline(t *testing.T) {
	clk := NewManualClock(10 * second)
	n, err := NewNode(Config{
		ID:         "n1",
		C:          100,
		PendingCap: 2,
		Clock:      clk,
	}, nil)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	defer n.Close()

	park := func(x float64) error {
		return n.Ingest(remoteEvent("peer", 10*second, x,
			event.Operation{Kind: event.OpSet, Key: fmt.Sprintf("k%.0f", x), Value: []byte("v")}))
	}

	if err := park(1000); err != nil { // due at +10s
		t.Fatalf("park 1000m: %v", err)
	}
	if err := park(2000); err != nil { // due at +20s
		t.Fatalf("park 2000m: %v", err)
	}

	// The newcomer holds the furthest deadline: it is shed itself.
	if code := CodeOf(park(3000)); code != RetCBufferOverflow {
		t.Fatalf("code = %s, want BufferOverflow", code)
	}

	// A nearer deadline displaces the current furthest instead.
	if err := park(500); err != nil {
		t.Fatalf("park 500m: %v", err)
	}
	if p := n.Stats().Pending; p != 2 {
		t.Fatalf("pending = %d, want 2", p)
	}

	clk.SetNow(30 * second)
	n.releaseDue()
	if _, ok := n.Get("k500"); !ok {
		t.Fatal("retained near event not released")
	}
	if _, ok := n.Get("k2000"); ok {
		t.Fatal("shed event was released")
	}
}

func TestHeartbeatJoinsConcurrentBranches(t *testing.T) {
	clk := NewManualClock(1000 * second)
	n := testNode(t, "n1", [3]float64{}, spacetime.DefaultC, clk)

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
		t.Fatalf("heads = %v after heartbeat, want [%s]", heads, hb.ID.Short())
	}
}

// Two replicas that exchange their full event sets in opposite orders must
// materialize identical state for every key.
func TestReplicasConvergeUnderReordering(t *testing.T) {
	clk := NewManualClock(1000 * second)
	a := testNode(t, "a", [3]float64{}, spacetime.DefaultC, clk)
	b := testNode(t, "b", [3]float64{}, spacetime.DefaultC, clk)

	// Concurrent writes to the same key plus independent keys.
	var events []event.Event
	for i := 0; i < 8; i++ {
		ev := remoteEvent(fmt.Sprintf("p%d", i), uint64(i+1)*second, 0,
			event.Operation{Kind: event.OpSet, Key: "shared", Value: []byte(fmt.Sprintf("w%d", i))})
		events = append(events, ev)
		events = append(events, remoteEvent(fmt.Sprintf("p%d", i), uint64(i+1)*second, 0,
			event.Operation{Kind: event.OpSet, Key: fmt.Sprintf("own%d", i), Value: []byte("x")}))
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

	for _, key := range append([]string{"shared"}, "own0", "own3", "own7") {
		va, oka := a.Get(key)
		vb, okb := b.Get(key)
		if oka != okb || !bytes.Equal(va, vb) {
			t.Fatalf("replicas diverge on %q: a=(%q,%v) b=(%q,%v)", key, va, oka, vb, okb)
		}
	}
}

// End-to-end exchange through the broadcast hook: each node's local writes,
// shipped with their ancestry, reach the other node and both converge.
func TestBroadcastExchangeConverges(t *testing.T) {
	clk := NewManualClock(1000 * second)

	chA := make(chan []event.Event, 16)
	chB := make(chan []event.Event, 16)

	a, err := NewNode(Config{ID: "a", C: spacetime.DefaultC, Clock: clk},
		func(batch []event.Event) { chA <- batch })
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := NewNode(Config{ID: "b", C: spacetime.DefaultC, Clock: clk},
		func(batch []event.Event) { chB <- batch })
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if _, err := a.Set("k", []byte("from-a")); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Set("k", []byte("from-b")); err != nil {
		t.Fatal(err)
	}

	// Deliver each side's batch to the other, parent-before-child.
	deliver := func(dst *Node, batch []event.Event) {
		for _, ev := range batch {
			if err := dst.Ingest(ev); err != nil {
				t.Fatalf("deliver to %s: %v", dst.ID(), err)
			}
		}
	}
	deliver(b, <-chA)
	deliver(a, <-chB)

	va, oka := a.Get("k")
	vb, okb := b.Get("k")
	if !oka || !okb || !bytes.Equal(va, vb) {
		t.Fatalf("replicas diverge: a=(%q,%v) b=(%q,%v)", va, oka, vb, okb)
	}
}

func TestBroadcastBatchIsParentBeforeChild(t *testing.T) {
	clk := NewManualClock(1000 * second)
	ch := make(chan []event.Event, 16)
	n, err := NewNode(Config{ID: "n1", C: spacetime.DefaultC, Clock: clk},
		func(batch []event.Event) { ch <- batch })
	if err != nil {
		t.Fatal(err)
	}
	defer n.Close()

	if _, err := n.Set("k", []byte("1")); err != nil {
		t.Fatal(err)
	}
	ev2, err := n.Set("k", []byte("2"))
	if err != nil {
		t.Fatal(err)
	}
	<-ch
	batch := <-ch

	seen := map[event.ID]bool{event.Genesis().ID: true}
	var last event.ID
	for _, ev := range batch {
		for _, p := range ev.Parents {
			if !seen[p] && containsID(batch, p) {
				t.Fatalf("batch not parent-before-child: %s precedes its parent %s",
					ev.ID.Short(), p.Short())
			}
		}
		seen[ev.ID] = true
		last = ev.ID
	}
	if last != ev2.ID {
		t.Fatalf("batch does not end with the new write")
	}
}

func containsID(batch []event.Event, id event.ID) bool {
	for _, ev := range batch {
		if ev.ID == id {
			return true
		}
	}
	return false
}

func TestIngestAsyncDelivers(t *testing.T) {
	clk := NewManualClock(1000 * second)
	n := testNode(t, "n1", [3]float64{}, spacetime.DefaultC, clk)

	ev := remoteEvent("peer", 10*second, 0, event.Operation{Kind: event.OpSet, Key: "k", Value: []byte("v")})
	if !n.IngestAsync(ev) {
		t.Fatal("push to open queue refused")
	}

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := n.Get("k"); ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("async ingest never committed")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
