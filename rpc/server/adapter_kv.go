package server

import (
	"fmt"

	"github.com/minkv/minkv/lib/event"
	"github.com/minkv/minkv/lib/node"
	"github.com/minkv/minkv/rpc/common"
)

func NewKVServerAdapter() IRPCServerAdapter {
	return &kvServerAdapterImpl{}
}

type kvServerAdapterImpl struct{}

// committedID returns the hex ID of a committed write, or "" if the write
// never happened
func committedID(id event.ID, err error) string {
	if err != nil {
		return ""
	}
	return id.Hex()
}

func (adapter *kvServerAdapterImpl) Handle(req *common.Message, n *node.Node) *common.Message {
	// Check for nil node
	if n == nil {
		return common.NewErrorResponse("handler: node is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTKVSet:
		ev, err := n.Set(req.Key, req.Value)
		return common.NewSetResponse(committedID(ev.ID, err), uint64(node.CodeOf(err)), err)
	case common.MsgTKVGet:
		val, ok := n.Get(req.Key)
		return common.NewGetResponse(val, ok)
	case common.MsgTKVDelete:
		ev, err := n.Delete(req.Key)
		return common.NewDeleteResponse(committedID(ev.ID, err), uint64(node.CodeOf(err)), err)
	case common.MsgTInfo:
		stats := n.Stats()
		resp, err := common.NewInfoResponse(common.NodeInfo{
			NodeID:     n.ID(),
			Position:   n.Position(),
			LightSpeed: n.LightSpeed(),
			Events:     stats.Events,
			Heads:      stats.Heads,
			Pending:    stats.Pending,
			Blocked:    stats.Blocked,
		})
		if err != nil {
			return common.NewErrorResponse(fmt.Sprintf("failed to encode node info: %v", err))
		}
		return resp
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC KVAdapter - Unsuported message type: %s", req.MsgType),
		)
	}
}
