package server

import (
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/minkv/minkv/lib/event"
	"github.com/minkv/minkv/lib/node"
	"github.com/minkv/minkv/rpc/client"
	"github.com/minkv/minkv/rpc/common"
	"github.com/minkv/minkv/rpc/serializer"
	"github.com/minkv/minkv/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"

	_ "net/http/pprof"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new RPC server
// It takes a config, server transport, serializer and a factory for the
// client transports used to gossip to peers
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPDefaultServerTransport(),
//		serializer.NewBinarySerializer(),
//		tcp.NewTCPClientTransport,
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	serverTransport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	peerTransportFactory func() transport.IRPCClientTransport,
) rpcServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	// Create channels map
	channelMap := xsync.NewMapOf[uint64, IRPCServerAdapter]()

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	// Create the RPC server
	return rpcServer{
		config:               config,
		transport:            serverTransport,
		serializer:           serializer,
		peerTransportFactory: peerTransportFactory,
		channels:             channelMap,
	}
}

type rpcServer struct {
	config               common.ServerConfig
	transport            transport.IRPCServerTransport
	serializer           serializer.IRPCSerializer
	peerTransportFactory func() transport.IRPCClientTransport
	channels             *xsync.MapOf[uint64, IRPCServerAdapter]
	node                 *node.Node
	broadcaster          *client.GossipBroadcaster
}

func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(channel uint64, req []byte) []byte {
		var msg common.Message
		var respMsg common.Message

		// Get appropriate adapter for the channel
		adapter, ok := s.channels.Load(channel)

		// Case channel does not exist -> error
		if !ok {
			respMsg = common.Message{
				MsgType: common.MsgTError,
				Err:     "channel not found",
			}
		} else {
			// Decode the request
			err := s.serializer.Deserialize(req, &msg)

			if err != nil {
				respMsg = common.Message{
					MsgType: common.MsgTError,
					Err:     fmt.Sprintf("failed to deserialize request: %s", err),
				}
			} else {
				// Let the adapter handle the request
				respMsg = *adapter.Handle(&msg, s.node)
			}
		}

		// Return result
		val, err := s.serializer.Serialize(respMsg)
		if err != nil {
			respMsg = common.Message{
				MsgType: common.MsgTError,
				Err:     fmt.Sprintf("failed to serialize response: %s", err),
			}
		}
		return val
	})
}

func (s *rpcServer) init() error {

	// Init logger
	common.InitLoggers(s.config)

	// CREATE GOSSIP BROADCASTER

	/*
		Note: Every locally committed write is fanned out to all configured
		peers. The broadcaster keeps one client transport per peer, so the
		round-robin load balancing of the client transport never skips a
		replica.
	*/

	var broadcast node.BroadcastFunc
	if len(s.config.Peers) > 0 {
		b, err := client.NewGossipBroadcaster(
			s.config.Peers,
			s.peerTransportFactory,
			s.serializer,
			int(s.config.TimeoutSecond),
		)
		if err != nil {
			return fmt.Errorf("failed to create gossip broadcaster: %w", err)
		}
		s.broadcaster = b
		broadcast = func(batch []event.Event) { b.Broadcast(batch) }
		Logger.Infof("gossiping to %d peer(s)", len(s.config.Peers))
	} else {
		Logger.Warningf("no gossip peers configured, node runs standalone")
	}

	// CREATE NODE

	n, err := node.NewNode(node.Config{
		ID:            s.config.NodeID,
		Position:      s.config.Position,
		C:             s.config.LightSpeed,
		PendingCap:    s.config.PendingCap,
		BlockedCap:    s.config.BlockedCap,
		AncestryDepth: s.config.AncestryDepth,
	}, broadcast)
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}
	s.node = n

	// REGISTER CHANNELS

	s.channels.Store(common.ChannelKV, NewKVServerAdapter())
	s.channels.Store(common.ChannelGossip, NewGossipServerAdapter())

	// Start the metrics endpoint (also serves pprof via the default mux)
	if s.config.MetricsEndpoint != "" {
		http.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			vm.WritePrometheus(w, true)
		})
		go func() {
			Logger.Infof("Starting metrics server on %s", s.config.MetricsEndpoint)
			Logger.Errorf("metrics server stopped: %v", http.ListenAndServe(s.config.MetricsEndpoint, nil))
		}()
	}

	Logger.Infof("minkv setup completed successfully")

	// Configure the transport layer
	s.registerTransportHandler()

	return nil
}

// Serve starts the RPC server
// This function will also initialize the node plus the gossip broadcaster
// and start the transport layer
func (s *rpcServer) Serve() error {
	err := s.init()
	if err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}
