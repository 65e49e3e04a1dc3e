// Package testing provides a standardised behavioral test suite for
// replica cores built on the node package.
//
// The suite validates the properties every deployment relies on:
//   - Convergence: replicas that receive the same events in any order
//     materialize identical state
//   - Idempotence: redundant delivery of an event is a no-op
//   - Light-cone buffering: spacelike events stay invisible until their
//     light-arrival deadline
//   - Clock-skew and tamper rejection at the ingestion boundary
//   - Deterministic resolution of concurrent writes to the same key
//
// Example usage:
//
//	// Creating a factory function for your node configuration
//	factory := func(id string, c float64, clk node.Clock) (*node.Node, error) {
//		return node.NewNode(node.Config{ID: id, C: c, Clock: clk}, nil)
//	}
//
//	// Running the standard test suite
//	nodetesting.RunNodeCoreTests(t, "MyNode", factory)
package testing
