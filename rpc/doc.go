// Package rpc provides a comprehensive framework for remote procedure calls
// in the minkv relativistic key-value store. It acts as the communication
// layer between clients and nodes, and between the nodes themselves, enabling
// operations across network boundaries.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: RPC client implementations for the key-value API and the gossip
//     broadcaster that fans committed writes out to peer nodes.
//
//   - server: RPC server components that handle incoming requests, including
//     the channel adapters for the key-value API and the gossip stream.
package rpc
