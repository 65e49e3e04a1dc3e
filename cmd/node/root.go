package node

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	cmdUtil "github.com/minkv/minkv/cmd/util"
	"github.com/minkv/minkv/rpc/common"
	"github.com/minkv/minkv/rpc/serializer"
	"github.com/minkv/minkv/rpc/server"
	"github.com/minkv/minkv/rpc/transport"
	"github.com/minkv/minkv/rpc/transport/http"
	"github.com/minkv/minkv/rpc/transport/tcp"
	"github.com/minkv/minkv/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	nodeCmdConfig = &common.ServerConfig{}
	NodeCmd       = &cobra.Command{
		Use:     "node",
		Short:   "Start a minkv node",
		Long:    `Start a minkv node with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is MINKV_<flag> (e.g. MINKV_LIGHT_SPEED=3e8)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "id"
	NodeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Unique identity of this node within the deployment (e.g. 'node-1'). Required"))

	key = "position"
	NodeCmd.PersistentFlags().String(key, "0,0,0", cmdUtil.WrapString("Fixed position of this node in the shared coordinate frame, in meters. Format: x,y,z"))

	key = "light-speed"
	NodeCmd.PersistentFlags().Float64(key, 299792458, cmdUtil.WrapString("Propagation constant in meters per second. Must be identical on every node of the deployment. Lower values widen the spacelike regime and are useful for testing"))

	key = "peers"
	NodeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated list of peer endpoints to gossip committed writes to (e.g. 'host-b:8080,host-c:8080'). Empty runs the node standalone"))

	key = "pending-cap"
	NodeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Capacity of the buffer holding events that are waiting for their light arrival time. 0 selects the default, negative means unbounded"))

	key = "blocked-cap"
	NodeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Capacity of the buffer holding events whose parents have not arrived yet. 0 selects the default, negative means unbounded"))

	key = "ancestry-depth"
	NodeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("How many generations of parents accompany each write in its gossip batch. 0 selects the default"))

	key = "timeout"
	NodeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for gossip connections to peers"))

	key = "endpoint"
	NodeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/minkv.sock, ...)"))

	key = "workers-per-conn"
	NodeCmd.PersistentFlags().Int(key, 4, cmdUtil.WrapString("Number of concurrent request workers per client connection (ignored for http)"))

	key = "buffer-size"
	NodeCmd.PersistentFlags().Int(key, 64, cmdUtil.WrapString("Size of the per-connection read/write buffers (in KB, ignored for http)"))

	key = "metrics-endpoint"
	NodeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional address to expose Prometheus metrics and pprof on (e.g. 'localhost:9100'). Empty disables the endpoint"))

	key = "log-level"
	NodeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the node configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// node identity is required
	nodeCmdConfig.NodeID = viper.GetString("id")
	if nodeCmdConfig.NodeID == "" {
		return fmt.Errorf("node id is required (--id)")
	}

	// parse position
	parts := strings.Split(viper.GetString("position"), ",")
	if len(parts) != 3 {
		return fmt.Errorf("invalid position format: %s (expected x,y,z)", viper.GetString("position"))
	}
	for i, part := range parts {
		coord, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return fmt.Errorf("invalid position coordinate %s: %v", part, err)
		}
		nodeCmdConfig.Position[i] = coord
	}

	// the propagation constant must be positive
	nodeCmdConfig.LightSpeed = viper.GetFloat64("light-speed")
	if nodeCmdConfig.LightSpeed <= 0 {
		return fmt.Errorf("light speed must be positive, got %v", nodeCmdConfig.LightSpeed)
	}

	// parse peers
	nodeCmdConfig.Peers = nil
	if peers := viper.GetString("peers"); peers != "" {
		for _, peer := range strings.Split(peers, ",") {
			nodeCmdConfig.Peers = append(nodeCmdConfig.Peers, strings.TrimSpace(peer))
		}
	}

	// read the configuration from the command line flags and environment variables
	nodeCmdConfig.PendingCap = viper.GetInt("pending-cap")
	nodeCmdConfig.BlockedCap = viper.GetInt("blocked-cap")
	nodeCmdConfig.AncestryDepth = viper.GetInt("ancestry-depth")
	nodeCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	nodeCmdConfig.Transport.Endpoint = viper.GetString("endpoint")
	nodeCmdConfig.Transport.WorkersPerConn = viper.GetInt("workers-per-conn")
	nodeCmdConfig.Transport.BufferSize = viper.GetInt("buffer-size") * 1024
	nodeCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	nodeCmdConfig.LogLevel = viper.GetString("log-level")

	return nil
}

// run starts the minkv node
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	var s serializer.IRPCSerializer
	switch viper.GetString("serializer") {
	case "json":
		s = serializer.NewJSONSerializer()
	case "gob":
		s = serializer.NewGOBSerializer()
	case "binary":
		s = serializer.NewBinarySerializer()
	default:
		return fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}

	// Parse the transport. The same flavor is used for the server side and
	// for the gossip connections to peers.
	var t transport.IRPCServerTransport
	var peerFactory func() transport.IRPCClientTransport
	switch viper.GetString("transport") {
	case "http":
		t = http.NewHttpServerTransport()
		peerFactory = http.NewHttpClientTransport
	case "tcp":
		t = tcp.NewTCPServerTransport(nodeCmdConfig.Transport.BufferSize, nodeCmdConfig.Transport.WorkersPerConn)
		peerFactory = tcp.NewTCPClientTransport
	case "unix":
		t = unix.NewUnixServerTransport(nodeCmdConfig.Transport.BufferSize, nodeCmdConfig.Transport.WorkersPerConn)
		peerFactory = unix.NewUnixClientTransport
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	serv := server.NewRPCServer(
		*nodeCmdConfig,
		t,
		s,
		peerFactory,
	)

	return serv.Serve()
}

// initConfig reads in nodeCmdConfig file and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("minkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
