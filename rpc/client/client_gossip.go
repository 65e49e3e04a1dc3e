package client

import (
	"fmt"
	"sync"

	"github.com/minkv/minkv/lib/event"
	"github.com/minkv/minkv/lib/node"
	"github.com/minkv/minkv/rpc/common"
	"github.com/minkv/minkv/rpc/serializer"
	"github.com/minkv/minkv/rpc/transport"
)

const (
	// Retry count for the per-peer transports. Gossip is best-effort, a
	// batch lost to a dead peer is re-delivered as ancestry of later writes.
	gossipRetryCount = 3

	// One connection per peer is enough, gossip batches are serialized per
	// sender anyway.
	gossipConnsPerPeer = 1
)

// peerLink binds one peer endpoint to its dedicated client transport
type peerLink struct {
	endpoint  string
	transport transport.IRPCClientTransport
}

// GossipBroadcaster fans locally committed writes out to all configured
// peers. It holds one client transport per peer so that every replica sees
// every batch (the shared client transport load-balances round-robin and
// would skip peers).
//
// Thread-safety: Broadcast may be called concurrently, each call sends to
// all peers in parallel.
type GossipBroadcaster struct {
	peers      []peerLink
	serializer serializer.IRPCSerializer
}

// NewGossipBroadcaster connects one client transport per peer endpoint.
// The factory is called once per peer, so the caller chooses the transport
// flavor (tcp, unix, http) without the broadcaster knowing about it.
func NewGossipBroadcaster(
	peers []string,
	factory func() transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
	timeoutSecond int,
) (*GossipBroadcaster, error) {
	links := make([]peerLink, 0, len(peers))
	for _, endpoint := range peers {
		t := factory()
		err := t.Connect(common.ClientConfig{
			TimeoutSecond: timeoutSecond,
			Transport: common.ClientTransportConfig{
				Endpoints:              []string{endpoint},
				RetryCount:             gossipRetryCount,
				ConnectionsPerEndpoint: gossipConnsPerPeer,
			},
		})
		if err != nil {
			// Close the links already established before giving up
			for _, link := range links {
				_ = link.transport.Close()
			}
			return nil, fmt.Errorf("failed to connect to peer %s: %w", endpoint, err)
		}
		links = append(links, peerLink{endpoint: endpoint, transport: t})
	}

	return &GossipBroadcaster{
		peers:      links,
		serializer: serializer,
	}, nil
}

// Broadcast delivers a batch of events, parent-before-child, to every peer
// in parallel. Delivery is best-effort: unreachable peers and refused events
// are logged, never escalated, the ancestry of future batches heals them.
func (b *GossipBroadcaster) Broadcast(batch []event.Event) {
	if len(batch) == 0 || len(b.peers) == 0 {
		return
	}

	// Serialize the batch once, all peers get the same bytes
	msg := common.NewGossipRequest(common.RecordsFromEvents(batch))
	reqBytes, err := b.serializer.Serialize(*msg)
	if err != nil {
		Logger.Errorf("failed to serialize gossip batch: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, link := range b.peers {
		wg.Add(1)
		go func(link peerLink) {
			defer wg.Done()
			b.sendToPeer(link, reqBytes)
		}(link)
	}
	wg.Wait()
}

// Close closes all per-peer transports
func (b *GossipBroadcaster) Close() error {
	var firstErr error
	for _, link := range b.peers {
		if err := link.transport.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// sendToPeer sends a pre-serialized gossip batch to a single peer and logs
// the peer's verdict
func (b *GossipBroadcaster) sendToPeer(link peerLink, reqBytes []byte) {
	respBytes, err := link.transport.Send(common.ChannelGossip, reqBytes)
	if err != nil {
		Logger.Warningf("gossip to %s failed: %v", link.endpoint, err)
		return
	}

	var resp common.Message
	if err := b.serializer.Deserialize(respBytes, &resp); err != nil {
		Logger.Warningf("gossip to %s: undecodable response: %v", link.endpoint, err)
		return
	}

	// A non-zero code reports the first event the peer refused. Clock skew
	// heals once the peer's clock catches up, overflow once its buffers
	// drain, so both are informational here.
	if resp.Code != uint64(node.RetCSuccess) || resp.Err != "" {
		Logger.Warningf("gossip to %s refused (code %s): %s",
			link.endpoint, node.RetCode(resp.Code), resp.Err)
	}
}
