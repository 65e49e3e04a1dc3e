// Package cmd implements the command-line interface for the minkv
// relativistic key-value store. It provides a hierarchical command structure
// with operations for running a node and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations (get, set, del, info, perf)
//   - node: Commands for starting and configuring a minkv node
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See minkv -help for a list of all commands.
package cmd
