package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Channel IDs
// --------------------------------------------------------------------------

// A single RPC endpoint multiplexes two logical channels: the client-facing
// key-value API and the node-to-node gossip stream. The channel ID travels
// in the frame header so the server can route without decoding the payload.
const (
	ChannelKV     uint64 = 100
	ChannelGossip uint64 = 200
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key   string `json:"key,omitempty"`   // Used for: Set, Get, Delete
	Value []byte `json:"value,omitempty"` // Used for: Set (request), Get (response)

	// Response only fields
	Ok      bool   `json:"ok,omitempty"`       // Used for: Get responses
	EventID string `json:"event_id,omitempty"` // Used for: Set, Delete responses (hex ID of the committed write)
	Err     string `json:"err,omitempty"`      // Empty if no error, otherwise contains the error message
	Code    uint64 `json:"code,omitempty"`     // Numeric return code accompanying Err

	// Gossip payload
	Events []EventRecord `json:"events,omitempty"` // Used for: Gossip requests

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Info responses (JSON-encoded NodeInfo)
}

// --------------------------------------------------------------------------
// Node Info
// --------------------------------------------------------------------------

// NodeInfo is the operator-facing snapshot returned by the Info operation.
// It travels JSON-encoded in the Meta field of an Info response.
type NodeInfo struct {
	NodeID     string     `json:"node_id"`
	Position   [3]float64 `json:"position"`
	LightSpeed float64    `json:"light_speed"`
	Events     int        `json:"events"`
	Heads      int        `json:"heads"`
	Pending    int        `json:"pending"`
	Blocked    int        `json:"blocked"`
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewSetRequest creates a new Set request
func NewSetRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTKVSet,
		Key:     key,
		Value:   value,
	}
}

// NewSetResponse creates a new Set response carrying the ID of the
// committed write event
func NewSetResponse(eventID string, code uint64, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVSet,
		EventID: eventID,
	}
	if err != nil {
		msg.Err = err.Error()
		msg.Code = code
	}
	return msg
}

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVGet,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, ok bool) *Message {
	return &Message{
		MsgType: MsgTKVGet,
		Ok:      ok,
		Value:   value,
	}
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVDelete,
		Key:     key,
	}
}

// NewDeleteResponse creates a new Delete response carrying the ID of the
// committed tombstone event
func NewDeleteResponse(eventID string, code uint64, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVDelete,
		EventID: eventID,
	}
	if err != nil {
		msg.Err = err.Error()
		msg.Code = code
	}
	return msg
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{MsgType: MsgTInfo}
}

// NewInfoResponse creates a new Info response with the JSON-encoded info
func NewInfoResponse(info NodeInfo) (*Message, error) {
	meta, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}
	return &Message{
		MsgType: MsgTInfo,
		Meta:    meta,
	}, nil
}

// NewGossipRequest creates a new Gossip request carrying a batch of event
// records, parent-before-child
func NewGossipRequest(events []EventRecord) *Message {
	return &Message{
		MsgType: MsgTGossip,
		Events:  events,
	}
}

// NewGossipResponse creates a new Gossip response. A non-zero code reports
// the first event the receiver refused (clock skew, malformed, overflow).
func NewGossipResponse(code uint64, err error) *Message {
	msg := &Message{
		MsgType: MsgTGossip,
	}
	if err != nil {
		msg.Err = err.Error()
		msg.Code = code
	}
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTKVSet:
		return "set"
	case MsgTKVGet:
		return "get"
	case MsgTKVDelete:
		return "delete"
	case MsgTInfo:
		return "info"
	case MsgTGossip:
		return "gossip"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "set":
		*t = MsgTKVSet
	case "get":
		*t = MsgTKVGet
	case "delete":
		*t = MsgTKVDelete
	case "info":
		*t = MsgTInfo
	case "gossip":
		*t = MsgTGossip
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Key-value operations (ChannelKV)

	MsgTKVSet    // Set a key-value pair
	MsgTKVGet    // Get a value by key
	MsgTKVDelete // Delete a key-value pair
	MsgTInfo     // Snapshot the node's state

	// Replication (ChannelGossip)

	MsgTGossip // Deliver a batch of events to a peer
)
