// Package node wires the minkv core together: the local clock, the causal
// gate, the release scheduler, the event DAG with its merge engine and the
// state materializer, behind the application command surface (Set, Delete,
// Get) and the transport-facing ingestion surface.
//
// A node occupies a fixed position in the shared coordinate frame for its
// whole lifetime and owns the only notion of "now" it ever uses — there is
// no cross-node clock synchronization. Inbound events pass the causal gate
// before they may touch the DAG; local writes commit directly and are handed
// to the broadcast hook for the transport layer to fan out.
//
// Concurrency model: any number of goroutines may call the public surface.
// All DAG, head-set and buffer mutation is serialized behind one mutex (the
// single-writer discipline for order-sensitive state), while reads of
// materialized state are lock-free. The release scheduler is driven by a
// single timer goroutine that wakes for the nearest pending deadline.
package node
