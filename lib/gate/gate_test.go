package gate

import (
	"testing"
	"time"

	"github.com/minkv/minkv/lib/event"
	"github.com/minkv/minkv/lib/spacetime"
)

func testEvent(t uint64, x float64) event.Event {
	g := event.Genesis()
	return event.New("origin", spacetime.Coord{T: t, X: x}, []event.ID{g.ID},
		event.Operation{Kind: event.OpHeartbeat})
}

func TestNewRejectsNonPositiveC(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Error("c=0 must be rejected")
	}
	if _, err := New(-1); err == nil {
		t.Error("negative c must be rejected")
	}
}

func TestEvaluateAdmitsTimelike(t *testing.T) {
	g, _ := New(100)

	// Co-located, created earlier: well inside the light cone.
	ev := testEvent(0, 0)
	receiver := spacetime.Coord{T: uint64(time.Second)}

	d := g.Evaluate(ev, receiver)
	if d.Verdict != Admit {
		t.Errorf("expected admit, got %s", d.Verdict)
	}
	if d.Interval < 0 {
		t.Errorf("timelike admission must have s²≥0, got %g", d.Interval)
	}
}

func TestEvaluateAdmitsLightlike(t *testing.T) {
	g, _ := New(100)

	// 300 m at c=100 m/s: light needs exactly 3 s.
	ev := testEvent(0, 0)
	receiver := spacetime.Coord{T: 3_000_000_000, X: 300}

	if d := g.Evaluate(ev, receiver); d.Verdict != Admit {
		t.Errorf("lightlike events are admissible, got %s", d.Verdict)
	}
}

func TestEvaluateDelaysSpacelike(t *testing.T) {
	g, _ := New(100)

	// c=100, origin (0,0), receiver (300,0), event created at origin
	// time 0. Not visible before local t=3.0 s.
	ev := testEvent(0, 0)
	receiver := spacetime.Coord{T: 1_000_000_000, X: 300}

	d := g.Evaluate(ev, receiver)
	if d.Verdict != Delay {
		t.Fatalf("expected delay, got %s", d.Verdict)
	}
	if want := uint64(3 * time.Second); d.ReleaseAt != want {
		t.Errorf("release deadline %d, want %d", d.ReleaseAt, want)
	}
	if d.Interval >= 0 {
		t.Errorf("spacelike delay must have s²<0, got %g", d.Interval)
	}

	// At the deadline the same event becomes admissible.
	receiver.T = d.ReleaseAt
	if d := g.Evaluate(ev, receiver); d.Verdict != Admit {
		t.Errorf("event must admit once the delay elapsed, got %s", d.Verdict)
	}
}

func TestEvaluateRejectsClockSkew(t *testing.T) {
	g, _ := New(100)

	// Origin timestamp strictly in the receiver's future.
	ev := testEvent(uint64(10*time.Second), 0)
	receiver := spacetime.Coord{T: uint64(5 * time.Second)}

	if d := g.Evaluate(ev, receiver); d.Verdict != Reject {
		t.Errorf("future-dated event must be rejected, got %s", d.Verdict)
	}
}

func TestSchedulerReleaseOrder(t *testing.T) {
	s := NewScheduler(0)

	late := testEvent(0, 500)
	early := testEvent(0, 100)
	s.Add(late, 5_000)
	s.Add(early, 1_000)

	if due := s.Due(500); len(due) != 0 {
		t.Fatalf("nothing is due yet, got %d events", len(due))
	}

	due := s.Due(1_000)
	if len(due) != 1 || due[0].ID != early.ID {
		t.Fatalf("expected only the early event at t=1000")
	}

	due = s.Due(10_000)
	if len(due) != 1 || due[0].ID != late.ID {
		t.Fatalf("expected the late event at t=10000")
	}
	if s.Len() != 0 {
		t.Error("queue must drain")
	}
}

func TestSchedulerDeterministicTieBreak(t *testing.T) {
	a := testEvent(0, 1)
	b := testEvent(0, 2)

	// Same deadline, both orders of insertion: pop order must be by ID.
	for _, order := range [][]event.Event{{a, b}, {b, a}} {
		s := NewScheduler(0)
		for _, ev := range order {
			s.Add(ev, 42)
		}

		due := s.Due(42)
		if len(due) != 2 {
			t.Fatalf("expected both events due, got %d", len(due))
		}
		if !due[0].ID.Less(due[1].ID) {
			t.Error("tied releases must pop in id order")
		}
	}
}

func TestSchedulerNextDeadline(t *testing.T) {
	s := NewScheduler(0)

	if _, ok := s.NextDeadline(); ok {
		t.Error("empty queue has no deadline")
	}

	s.Add(testEvent(0, 1), 900)
	s.Add(testEvent(0, 2), 300)

	if at, ok := s.NextDeadline(); !ok || at != 300 {
		t.Errorf("NextDeadline = (%d,%t), want (300,true)", at, ok)
	}
}

func TestSchedulerShedsFurthestDeadline(t *testing.T) {
	s := NewScheduler(2)

	a := testEvent(0, 1)
	b := testEvent(0, 2)
	s.Add(a, 1_000)
	s.Add(b, 9_000)

	// Newcomer with the furthest deadline is shed itself.
	far := testEvent(0, 3)
	shed, overflow := s.Add(far, 20_000)
	if !overflow || shed.ID != far.ID {
		t.Fatalf("expected the newcomer to be shed, got (%s,%t)", shed.ID.Short(), overflow)
	}
	if s.Len() != 2 {
		t.Fatalf("queue must stay at capacity, has %d", s.Len())
	}

	// Newcomer with a nearer deadline evicts the current furthest entry.
	near := testEvent(0, 4)
	shed, overflow = s.Add(near, 2_000)
	if !overflow || shed.ID != b.ID {
		t.Fatalf("expected %s to be evicted, got %s", b.ID.Short(), shed.ID.Short())
	}
	if !s.Contains(near.ID) || s.Contains(b.ID) {
		t.Error("eviction must swap the entries")
	}
}
