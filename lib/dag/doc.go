// Package dag implements the append-only event DAG that forms the replicated
// core of minkv, together with the merge engine and the state materializer.
//
// The DAG is an operation-based CRDT: replicas exchange immutable,
// content-addressed events and merging only ever adds nodes and edges.
// Conflicts are not overwritten; they appear as explicit concurrency — the
// "heads" set is the current causal frontier, the events with no locally
// known successor. Concurrent writes fork the graph and both branches remain
// heads until a later event references them as parents.
//
// Admission is gated on dependency completeness: an event only enters the
// graph once every parent is present, so no admitted event ever has a
// dangling parent link. Events arriving ahead of their parents are parked in
// a capacity-bounded blocked set indexed by the missing parent IDs and are
// re-checked as parents commit.
//
// The materializer folds committed events into a key-value snapshot with a
// deterministic conflict rule, so replicas holding the same event set compute
// the same state regardless of arrival order.
//
// Thread-safety: the DAG and merge engine are a single logically-serialized
// resource; all mutation must come from one goroutine or be externally
// locked. Materialized reads are lock-free and may proceed concurrently.
package dag
