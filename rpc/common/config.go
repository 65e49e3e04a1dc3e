package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Shared transport tuning structs
// --------------------------------------------------------------------------

// SocketConf holds socket buffer settings shared by stream transports.
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP-specific tuning options.
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerTransportConfig holds the listen-side transport settings.
type ServerTransportConfig struct {
	// Endpoint is the address the API listens on (host:port for tcp/http,
	// a filesystem path for unix sockets)
	Endpoint string
	// WorkersPerConn bounds the concurrent request handlers per connection
	WorkersPerConn int
	// BufferSize is the per-connection read buffer in bytes
	BufferSize int

	SocketConf
	TCPConf
}

// ServerConfig holds all configuration parameters for one node.
type ServerConfig struct {
	// Node identity and physics
	NodeID     string
	Position   [3]float64
	LightSpeed float64 // propagation constant in meters per second

	// Core buffer capacities
	PendingCap    int
	BlockedCap    int
	AncestryDepth int

	// Peers are the gossip endpoints of the other nodes
	Peers []string

	// RPC settings
	TimeoutSecond int64
	Transport     ServerTransportConfig

	// MetricsEndpoint optionally exposes Prometheus metrics over HTTP
	// (empty disables the listener)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Node identity
	addSection("Node Identity")
	addField("Node ID", c.NodeID)
	addField("Position (m)", fmt.Sprintf("(%.1f, %.1f, %.1f)", c.Position[0], c.Position[1], c.Position[2]))

	// Physics
	addSection("Physics")
	addField("Propagation Speed", fmt.Sprintf("%.1f m/s", c.LightSpeed))

	// Core buffers
	addSection("Buffers")
	addField("Pending Capacity", strconv.Itoa(c.PendingCap))
	addField("Blocked Capacity", strconv.Itoa(c.BlockedCap))
	addField("Ancestry Depth", strconv.Itoa(c.AncestryDepth))

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	// Gossip peers
	addSection("Gossip Peers")
	if len(c.Peers) == 0 {
		addField("(none)", "single node deployment")
	}
	for i, peer := range c.Peers {
		addField(strconv.Itoa(i), peer)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the dial-side transport settings.
type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int

	SocketConf
	TCPConf
}

type ClientConfig struct {
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(max(1, c.Transport.ConnectionsPerEndpoint)))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
