package gate

import (
	"fmt"

	"github.com/minkv/minkv/lib/event"
	"github.com/minkv/minkv/lib/spacetime"
)

// Verdict is the outcome of evaluating an event against the receiver's
// spacetime position.
type Verdict int

const (
	// Admit: the event lies inside (or on) the receiver's past light cone;
	// information could already have arrived physically.
	Admit Verdict = iota
	// Delay: the event is spacelike-separated from the receiver's present;
	// it must be buffered until the light-cone deadline passes.
	Delay
	// Reject: the event's origin timestamp is in the receiver's future.
	// Delaying cannot fix an impossible precondition, so the event is
	// dropped and the condition surfaced as clock skew.
	Reject
)

func (v Verdict) String() string {
	switch v {
	case Admit:
		return "admit"
	case Delay:
		return "delay"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// Decision carries the verdict plus the release deadline for delayed events.
type Decision struct {
	Verdict Verdict
	// ReleaseAt is the earliest local coordinate time (nanoseconds) at
	// which the event becomes admissible. Only set for Delay.
	ReleaseAt uint64
	// Interval is the squared Minkowski interval that produced the
	// verdict, kept for telemetry.
	Interval float64
}

// Gate evaluates the spacetime interval of inbound events for one receiving
// node. It is stateless and safe for concurrent use.
type Gate struct {
	c float64 // propagation constant, meters per second
}

// New creates a gate for the network-wide propagation constant c.
// The constant must be identical on every node or causal classification is
// unsound.
func New(c float64) (*Gate, error) {
	if c <= 0 {
		return nil, fmt.Errorf("propagation constant must be positive, got %g", c)
	}
	return &Gate{c: c}, nil
}

// C returns the configured propagation constant.
func (g *Gate) C() float64 {
	return g.c
}

// Evaluate classifies an inbound event against the receiver's current
// coordinate. receiver.T must be the receiver's local clock value "now";
// the spatial components are the receiver's fixed position.
func (g *Gate) Evaluate(ev event.Event, receiver spacetime.Coord) Decision {
	// An event from the receiver's future cannot be evaluated: Δt < 0
	// breaks the premise of the interval check.
	if receiver.T < ev.Coord.T {
		return Decision{Verdict: Reject}
	}

	s := ev.Coord.IntervalSq(receiver, g.c)
	if s >= 0 {
		return Decision{Verdict: Admit, Interval: s}
	}

	// Spacelike: buffer until local time reaches origin time plus the
	// light travel time for the spatial separation.
	delay := ev.Coord.LightDelay(receiver, g.c)
	return Decision{
		Verdict:   Delay,
		ReleaseAt: ev.Coord.T + uint64(delay),
		Interval:  s,
	}
}
