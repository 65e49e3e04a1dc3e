package node

import (
	"sync/atomic"
	"time"
)

// Clock is a node's local time source: monotonically increasing coordinate
// time in nanoseconds. It is the only notion of "now" a node has.
type Clock interface {
	Now() uint64
}

// --------------------------------------------------------------------------
// Wall clock
// --------------------------------------------------------------------------

// wallClock derives coordinate time from the process clock. The reading is
// anchored once and advanced with the monotonic clock, so it never moves
// backwards even if the system wall clock is adjusted.
type wallClock struct {
	base  uint64
	start time.Time
}

// NewWallClock creates the production clock, anchored at the current Unix
// epoch time.
func NewWallClock() Clock {
	return &wallClock{
		base:  uint64(time.Now().UnixNano()),
		start: time.Now(),
	}
}

func (c *wallClock) Now() uint64 {
	return c.base + uint64(time.Since(c.start))
}

// --------------------------------------------------------------------------
// Manual clock
// --------------------------------------------------------------------------

// ManualClock is a test clock advanced explicitly. Multiple simulated nodes
// with independent clocks can coexist in one process.
type ManualClock struct {
	now atomic.Uint64
}

// NewManualClock creates a manual clock starting at now.
func NewManualClock(now uint64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(now)
	return c
}

// Now returns the current reading.
//
// Thread-safety: safe for concurrent use.
func (c *ManualClock) Now() uint64 {
	return c.now.Load()
}

// Advance moves the clock forward by d nanoseconds.
func (c *ManualClock) Advance(d uint64) {
	c.now.Add(d)
}

// SetNow jumps the clock to now. Panics if the move is backwards: the core
// relies on clock monotonicity.
func (c *ManualClock) SetNow(now uint64) {
	if now < c.now.Load() {
		panic("manual clock must not move backwards")
	}
	c.now.Store(now)
}
