// Package event defines the immutable, content-addressed event record that
// minkv replicates.
//
// An event is the unit of replication: it carries the operation payload (what
// happened), the spacetime coordinate of its creation (when and where), and
// the set of parent event IDs (the causal frontier known to the origin at
// creation time). Parent links form an append-only directed acyclic graph.
//
// Events are never mutated after creation. The ID is a SHA-256 digest over
// the canonical encoding of every field, so two replicas that hold an event
// with the same ID hold the same event, and re-admitting a known ID is a
// no-op by construction.
package event
