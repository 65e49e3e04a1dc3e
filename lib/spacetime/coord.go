package spacetime

import (
	"fmt"
	"math"
	"time"
)

// DefaultC is the physical speed of light in meters per second.
// Deployments typically override this with a smaller value so that
// human-scale distances produce observable delays.
const DefaultC = 299_792_458.0

// Relation classifies the causal relationship between two coordinates.
type Relation int

const (
	Timelike  Relation = iota // inside the light cone, causally orderable
	Lightlike                 // exactly on the light cone
	Spacelike                 // outside the light cone, concurrent
)

func (r Relation) String() string {
	switch r {
	case Timelike:
		return "timelike"
	case Lightlike:
		return "lightlike"
	case Spacelike:
		return "spacelike"
	default:
		return "unknown"
	}
}

// Coord is a spacetime coordinate in the shared frame.
//
// T is coordinate time in nanoseconds, the spatial components are meters.
// Coordinates are plain values and safe to copy.
type Coord struct {
	T uint64  `json:"t"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (a Coord) String() string {
	return fmt.Sprintf("(t=%d, x=%.1f, y=%.1f, z=%.1f)", a.T, a.X, a.Y, a.Z)
}

// Distance returns the spatial separation between two coordinates in meters.
// The time components are ignored.
func (a Coord) Distance(b Coord) float64 {
	var (
		dx = b.X - a.X
		dy = b.Y - a.Y
		dz = b.Z - a.Z
	)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// IntervalSq computes the squared Minkowski interval s² between two
// coordinates for the propagation constant c (meters per second).
//
// The squared interval is returned rather than its root: the sign carries the
// causal classification and taking the root would lose it.
func (a Coord) IntervalSq(b Coord, c float64) float64 {
	var (
		dtSec = deltaSeconds(a.T, b.T)
		dx    = b.X - a.X
		dy    = b.Y - a.Y
		dz    = b.Z - a.Z
	)

	ct := c * dtSec
	return ct*ct - (dx*dx + dy*dy + dz*dz)
}

// Classify returns the causal relation between two coordinates for the
// propagation constant c.
func (a Coord) Classify(b Coord, c float64) Relation {
	s := a.IntervalSq(b, c)
	switch {
	case s > 0:
		return Timelike
	case s == 0:
		return Lightlike
	default:
		return Spacelike
	}
}

// LightDelay returns the minimum time information needs to travel between
// the two spatial positions at propagation constant c.
func (a Coord) LightDelay(b Coord, c float64) time.Duration {
	sec := a.Distance(b) / c
	return time.Duration(sec * float64(time.Second))
}

// deltaSeconds returns b−a in seconds, handling the unsigned subtraction.
func deltaSeconds(a, b uint64) float64 {
	if b >= a {
		return float64(b-a) * 1e-9
	}
	return -float64(a-b) * 1e-9
}
