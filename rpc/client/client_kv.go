package client

import (
	"encoding/json"
	"fmt"

	"github.com/minkv/minkv/rpc/common"
	"github.com/minkv/minkv/rpc/serializer"
	"github.com/minkv/minkv/rpc/transport"
)

// IKVClient is the client-facing surface of a single node. Set and Delete
// return the hex ID of the committed write event, usable as a causal token.
type IKVClient interface {
	// Set stores a value under a key on the connected node
	Set(key string, value []byte) (eventID string, err error)

	// Get returns the value for a key from the node's materialized state.
	// The second return value reports whether the key is currently bound.
	Get(key string) (value []byte, loaded bool, err error)

	// Delete writes a tombstone for a key
	Delete(key string) (eventID string, err error)

	// Info returns an operator snapshot of the node
	Info() (common.NodeInfo, error)

	// Close closes the underlying transport
	Close() error
}

// NewKVClient creates a new RPC client for the key-value API
// The function takes a config, a transport and a serializer as parameters
// It returns an IKVClient and an error
func NewKVClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (IKVClient, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new KV client
	c := kvClient{
		rpcClientAdapter{
			channel:    common.ChannelKV,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	// Return the KV client
	return &c, nil
}

type kvClient struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IKVClient)
// --------------------------------------------------------------------------

func (c *kvClient) Set(key string, value []byte) (string, error) {
	req := common.NewSetRequest(key, value)
	resp, err := invokeRPCRequest(c.channel, req, c.transport, c.serializer)
	if err != nil {
		return "", err
	}
	return resp.EventID, nil
}

func (c *kvClient) Get(key string) ([]byte, bool, error) {
	req := common.NewGetRequest(key)
	resp, err := invokeRPCRequest(c.channel, req, c.transport, c.serializer)
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

func (c *kvClient) Delete(key string) (string, error) {
	req := common.NewDeleteRequest(key)
	resp, err := invokeRPCRequest(c.channel, req, c.transport, c.serializer)
	if err != nil {
		return "", err
	}
	return resp.EventID, nil
}

func (c *kvClient) Info() (common.NodeInfo, error) {
	req := common.NewInfoRequest()
	resp, err := invokeRPCRequest(c.channel, req, c.transport, c.serializer)
	if err != nil {
		return common.NodeInfo{}, err
	}

	// The snapshot travels JSON-encoded in the meta field
	var info common.NodeInfo
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return common.NodeInfo{}, fmt.Errorf("failed to decode node info: %w", err)
	}
	return info, nil
}

func (c *kvClient) Close() error {
	return c.transport.Close()
}
