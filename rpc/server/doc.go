// Package server implements the RPC server of a minkv node. It provides the
// channel adapters that translate wire messages into node operations, along
// with the core server implementation that owns the node, the gossip
// broadcaster and the request routing.
//
// The package focuses on:
//   - Server-side RPC request handling for key-value and replication traffic
//   - Adapter pattern to decouple the node core from RPC mechanisms
//   - Channel-based routing: one endpoint serves both the client API and
//     the node-to-node gossip stream
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against the node.
//
//   - NewKVServerAdapter: Factory function creating the adapter for key-value
//     operations (set, get, delete, info), translating RPC requests to node
//     method calls.
//
//   - NewGossipServerAdapter: Factory function creating the adapter for the
//     replication channel. It decodes event batches and offers them to the
//     node's ingestion surface, reporting the first refusal back to the sender.
//
//   - NewRPCServer: Factory function creating a configured server with the
//     specified transport, serializer and the client-transport factory used
//     for gossip connections to peers.
//
// Usage Example:
//
//	// Create node configuration
//	config := common.ServerConfig{
//	  NodeID:     "node-1",
//	  Position:   [3]float64{0, 0, 0},
//	  LightSpeed: 299792458,
//	  Peers:      []string{"host-b:8080", "host-c:8080"},
//	  Transport:  common.ServerTransportConfig{Endpoint: "0.0.0.0:8080"},
//	  TimeoutSecond: 5,
//	  LogLevel:   "info",
//	}
//
//	// Create and start the server
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPDefaultServerTransport(),
//	  serializer.NewBinarySerializer(),
//	  tcp.NewTCPClientTransport,
//	)
//
//	// Start the server
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	The Listen method is not thread-safe and should be called only once.
package server
