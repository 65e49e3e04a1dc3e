package client

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/minkv/minkv/lib/event"
	"github.com/minkv/minkv/lib/spacetime"
	"github.com/minkv/minkv/rpc/common"
	"github.com/minkv/minkv/rpc/serializer"
	"github.com/minkv/minkv/rpc/transport"
)

// fakeClientTransport records sent requests and answers with a canned
// response supplied by the test.
type fakeClientTransport struct {
	mu       sync.Mutex
	config   common.ClientConfig
	sent     [][]byte
	channels []uint64
	respond  func(channel uint64, req []byte) ([]byte, error)
	closed   bool
}

func (f *fakeClientTransport) Connect(config common.ClientConfig) error {
	f.config = config
	return nil
}

func (f *fakeClientTransport) Send(channel uint64, req []byte) ([]byte, error) {
	f.mu.Lock()
	f.sent = append(f.sent, req)
	f.channels = append(f.channels, channel)
	f.mu.Unlock()
	return f.respond(channel, req)
}

func (f *fakeClientTransport) Close() error {
	f.closed = true
	return nil
}

// respondWith serializes a fixed response message
func respondWith(t *testing.T, s serializer.IRPCSerializer, msg *common.Message) func(uint64, []byte) ([]byte, error) {
	t.Helper()
	data, err := s.Serialize(*msg)
	if err != nil {
		t.Fatalf("serialize canned response: %v", err)
	}
	return func(uint64, []byte) ([]byte, error) { return data, nil }
}

func testClientConfig() common.ClientConfig {
	return common.ClientConfig{
		TimeoutSecond: 1,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{"test:0"},
			RetryCount:             1,
			ConnectionsPerEndpoint: 1,
		},
	}
}

func TestKVClientSetReturnsEventID(t *testing.T) {
	s := serializer.NewJSONSerializer()
	ft := &fakeClientTransport{respond: respondWith(t, s, common.NewSetResponse("cafe01", 0, nil))}

	kv, err := NewKVClient(testClientConfig(), ft, s)
	if err != nil {
		t.Fatalf("NewKVClient: %v", err)
	}

	eventID, err := kv.Set("k", []byte("v"))
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if eventID != "cafe01" {
		t.Fatalf("eventID = %s, want cafe01", eventID)
	}
	if len(ft.channels) != 1 || ft.channels[0] != common.ChannelKV {
		t.Fatalf("set traveled on channels %v, want [%d]", ft.channels, common.ChannelKV)
	}
}

func TestKVClientGet(t *testing.T) {
	s := serializer.NewJSONSerializer()
	ft := &fakeClientTransport{respond: respondWith(t, s, common.NewGetResponse([]byte("v"), true))}

	kv, err := NewKVClient(testClientConfig(), ft, s)
	if err != nil {
		t.Fatalf("NewKVClient: %v", err)
	}

	value, ok, err := kv.Get("k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || !bytes.Equal(value, []byte("v")) {
		t.Fatalf("get = (%q, %v)", value, ok)
	}
}

func TestKVClientInfo(t *testing.T) {
	s := serializer.NewJSONSerializer()
	infoResp, err := common.NewInfoResponse(common.NodeInfo{
		NodeID:     "node-1",
		LightSpeed: spacetime.DefaultC,
		Events:     7,
	})
	if err != nil {
		t.Fatalf("NewInfoResponse: %v", err)
	}
	ft := &fakeClientTransport{respond: respondWith(t, s, infoResp)}

	kv, err := NewKVClient(testClientConfig(), ft, s)
	if err != nil {
		t.Fatalf("NewKVClient: %v", err)
	}

	info, err := kv.Info()
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.NodeID != "node-1" || info.Events != 7 {
		t.Fatalf("info = %+v", info)
	}
}

func TestKVClientSurfacesServerError(t *testing.T) {
	s := serializer.NewJSONSerializer()
	ft := &fakeClientTransport{respond: respondWith(t, s, common.NewErrorResponse("boom"))}

	kv, err := NewKVClient(testClientConfig(), ft, s)
	if err != nil {
		t.Fatalf("NewKVClient: %v", err)
	}

	if _, err := kv.Set("k", []byte("v")); err == nil {
		t.Fatal("server error not surfaced")
	}
}

func TestGossipBroadcasterSendsToAllPeers(t *testing.T) {
	s := serializer.NewJSONSerializer()

	// one fake transport per peer, all acknowledging
	var fakes []*fakeClientTransport
	factory := func() transport.IRPCClientTransport {
		ft := &fakeClientTransport{respond: respondWith(t, s, common.NewGossipResponse(0, nil))}
		fakes = append(fakes, ft)
		return ft
	}

	b, err := NewGossipBroadcaster([]string{"peer-a:0", "peer-b:0", "peer-c:0"}, factory, s, 1)
	if err != nil {
		t.Fatalf("NewGossipBroadcaster: %v", err)
	}
	defer b.Close()

	if len(fakes) != 3 {
		t.Fatalf("factory called %d times, want 3", len(fakes))
	}

	ev := event.New("n1", spacetime.Coord{T: uint64(time.Second)}, []event.ID{event.Genesis().ID},
		event.Operation{Kind: event.OpSet, Key: "k", Value: []byte("v")})
	b.Broadcast([]event.Event{ev})

	for i, ft := range fakes {
		if len(ft.sent) != 1 {
			t.Fatalf("peer %d received %d batches, want 1", i, len(ft.sent))
		}
		if ft.channels[0] != common.ChannelGossip {
			t.Fatalf("peer %d received on channel %d, want %d", i, ft.channels[0], common.ChannelGossip)
		}

		var msg common.Message
		if err := s.Deserialize(ft.sent[0], &msg); err != nil {
			t.Fatalf("peer %d: undecodable batch: %v", i, err)
		}
		if msg.MsgType != common.MsgTGossip || len(msg.Events) != 1 {
			t.Fatalf("peer %d received %+v", i, msg)
		}
		if got := msg.Events[0].ID; got != ev.ID.Hex() {
			t.Fatalf("peer %d received event %s, want %s", i, got, ev.ID.Hex())
		}
	}
}

func TestGossipBroadcasterEachPeerOwnEndpoint(t *testing.T) {
	s := serializer.NewJSONSerializer()

	var fakes []*fakeClientTransport
	factory := func() transport.IRPCClientTransport {
		ft := &fakeClientTransport{respond: respondWith(t, s, common.NewGossipResponse(0, nil))}
		fakes = append(fakes, ft)
		return ft
	}

	peers := []string{"peer-a:0", "peer-b:0"}
	b, err := NewGossipBroadcaster(peers, factory, s, 1)
	if err != nil {
		t.Fatalf("NewGossipBroadcaster: %v", err)
	}
	defer b.Close()

	for i, ft := range fakes {
		endpoints := ft.config.Transport.Endpoints
		if len(endpoints) != 1 || endpoints[0] != peers[i] {
			t.Fatalf("peer %d connected to %v, want [%s]", i, endpoints, peers[i])
		}
	}
}

func TestGossipBroadcasterConnectFailureClosesLinks(t *testing.T) {
	s := serializer.NewJSONSerializer()

	var fakes []*fakeClientTransport
	calls := 0
	factory := func() transport.IRPCClientTransport {
		calls++
		if calls == 2 {
			return &failingTransport{}
		}
		ft := &fakeClientTransport{respond: respondWith(t, s, common.NewGossipResponse(0, nil))}
		fakes = append(fakes, ft)
		return ft
	}

	if _, err := NewGossipBroadcaster([]string{"peer-a:0", "peer-b:0"}, factory, s, 1); err == nil {
		t.Fatal("connect failure not surfaced")
	}
	for i, ft := range fakes {
		if !ft.closed {
			t.Fatalf("peer %d transport left open after failed construction", i)
		}
	}
}

type failingTransport struct{}

func (f *failingTransport) Connect(common.ClientConfig) error { return fmt.Errorf("no route") }
func (f *failingTransport) Send(uint64, []byte) ([]byte, error) {
	return nil, fmt.Errorf("not connected")
}
func (f *failingTransport) Close() error { return nil }
