// Package spacetime provides the coordinate type and Minkowski interval math
// used by minkv to reason about causality.
//
// Every event carries a spacetime coordinate: a time component T (nanoseconds
// in a shared coordinate frame) and a spatial position X, Y, Z (meters in the
// same frame). The squared Minkowski interval between two coordinates
//
//	s² = c²Δt² − Δx² − Δy² − Δz²
//
// determines their causal relation (sign convention (+,−,−,−)):
//
//   - s² > 0 (timelike):  one coordinate can causally influence the other
//   - s² = 0 (lightlike): the coordinates lie on each other's light cone
//   - s² < 0 (spacelike): no causal order is mandated by physics; minkv
//     treats such events as concurrent
//
// The propagation constant c is a network-wide simulation parameter passed in
// explicitly. It is never global state: multiple simulated deployments with
// different constants can coexist in one process.
package spacetime
