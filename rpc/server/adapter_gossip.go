package server

import (
	"fmt"

	"github.com/minkv/minkv/lib/node"
	"github.com/minkv/minkv/rpc/common"
)

func NewGossipServerAdapter() IRPCServerAdapter {
	return &gossipServerAdapterImpl{}
}

type gossipServerAdapterImpl struct{}

func (adapter *gossipServerAdapterImpl) Handle(req *common.Message, n *node.Node) *common.Message {
	// Check for nil node
	if n == nil {
		return common.NewErrorResponse("handler: node is nil")
	}

	// Only gossip batches travel on this channel
	if req.MsgType != common.MsgTGossip {
		return common.NewErrorResponse(
			fmt.Sprintf("RPC GossipAdapter - Unsuported message type: %s", req.MsgType),
		)
	}

	// Ingest the batch in order. Batches arrive parent-before-child, so a
	// refusal of one event never invalidates the ones before it. The first
	// refusal is reported to the sender, the rest of the batch is still
	// offered to the node.
	var firstErr error
	for _, record := range req.Events {
		ev, err := record.ToEvent()
		if err != nil {
			err = node.NewError(node.RetCMalformedEvent, err.Error())
		} else {
			err = n.Ingest(ev)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return common.NewGossipResponse(uint64(node.CodeOf(firstErr)), firstErr)
}
