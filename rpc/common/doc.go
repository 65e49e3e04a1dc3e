// Package common provides core data structures and utilities shared across
// the minkv RPC system. It defines fundamental types, configuration
// structures, and protocol elements used by other packages.
//
// The package focuses on:
//   - Message protocol definition for client-node and node-node communication
//   - Wire representation of replicated events (EventRecord)
//   - Configuration structures for client and server components
//   - Custom logging implementation built on the Dragonboat logger facade
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication between components,
//     with a flexible structure that adapts to different operation types.
//     Includes factory methods for creating various request and response messages.
//
//   - MessageType: Enumeration defining all supported operation types in the
//     system, categorized into key-value operations, replication, and
//     control messages.
//
//   - EventRecord: Flat wire form of a replicated event, convertible to and
//     from the lib/event type. Gossip batches are slices of records in
//     parent-before-child order.
//
//   - ServerConfig: Comprehensive configuration for a node, including its
//     identity and position, physics parameters, buffer capacities, network
//     configuration and gossip peers.
//
//   - ClientConfig: Configuration for client components, controlling connection
//     parameters, timeouts, and retry behavior.
//
//   - Logger: Custom logging implementation that plugs into the Dragonboat
//     logger facade while providing consistent formatting across the application.
package common
