// Package client implements the RPC clients of minkv. It provides the
// key-value client used by applications and tooling, and the gossip
// broadcaster nodes use to fan committed writes out to their peers.
//
// The package focuses on:
//   - Transparent RPC access to a node's key-value API
//   - Best-effort parallel delivery of event batches to all peers
//   - Integration with the transport and serialization layers
//
// Key Components:
//
//   - NewKVClient: Factory function that creates a client implementing the
//     IKVClient interface. This client forwards all operations to a node via
//     the configured transport layer. Set and Delete return the ID of the
//     committed write event, usable as a causal token.
//
//   - NewGossipBroadcaster: Factory function that creates the fan-out side of
//     replication. It holds one dedicated client transport per peer endpoint
//     so that every replica sees every batch.
//
// Usage Example:
//
//	// Configure the client
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:8080"},
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 1,
//	  },
//	}
//
//	// Create a serializer
//	serializer := serializer.NewBinarySerializer()
//
//	// Create the KV client
//	kv, _ := client.NewKVClient(config, tcp.NewTCPClientTransport(), serializer)
//
//	// Use the client
//	eventID, _ := kv.Set("mykey", []byte("myvalue"))
//	value, exists, _ := kv.Get("mykey")
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - For small messages, a single connection per endpoint is often more efficient due to
//     reduced connection overhead.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	All client implementations are thread-safe and can be used concurrently from
//	multiple goroutines without additional synchronization.
package client
