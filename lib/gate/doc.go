// Package gate implements the causal admission gate of a minkv node: the
// spacetime interval evaluation that decides whether a received event may be
// shown to the application yet, and the release scheduler that parks
// physically-delayed events until their light-cone deadline passes.
//
// The gate sits between network reception and the merge engine. For an
// inbound event it computes the squared Minkowski interval between the
// event's origin coordinate and the receiver's current coordinate and
// classifies the event as immediately admissible (timelike or lightlike),
// physically delayed (spacelike — information could not yet have reached the
// receiver) or rejected (the event's origin timestamp lies in the receiver's
// future, which indicates desynchronized clocks).
//
// Delayed events carry no goroutine each: they sit in one deadline-ordered
// heap drained by a single timer loop owned by the node. Release ties are
// broken by event ID, so the order in which simultaneous releases reach the
// merge engine is deterministic.
package gate
