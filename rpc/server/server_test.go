package server

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/minkv/minkv/lib/event"
	"github.com/minkv/minkv/lib/node"
	"github.com/minkv/minkv/lib/spacetime"
	"github.com/minkv/minkv/rpc/common"
	"github.com/minkv/minkv/rpc/serializer"
	"github.com/minkv/minkv/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

const second = uint64(time.Second)

// testNode builds a standalone node with a manual clock set well past the
// test event timestamps, so the causal gate admits everything timelike.
func testNode(t *testing.T, id string) *node.Node {
	t.Helper()
	n, err := node.NewNode(node.Config{
		ID:       id,
		Position: [3]float64{},
		C:        spacetime.DefaultC,
		Clock:    node.NewManualClock(1000 * second),
	}, nil)
	if err != nil {
		t.Fatalf("NewNode(%s): %v", id, err)
	}
	t.Cleanup(n.Close)
	return n
}

func TestKVAdapterSetGetDelete(t *testing.T) {
	n := testNode(t, "adapter-kv")
	adapter := NewKVServerAdapter()

	// Set
	resp := adapter.Handle(common.NewSetRequest("k", []byte("v")), n)
	if resp.MsgType != common.MsgTKVSet || resp.Err != "" {
		t.Fatalf("set response = %+v", resp)
	}
	if resp.EventID == "" {
		t.Fatal("set response carries no event ID")
	}

	// Get
	resp = adapter.Handle(common.NewGetRequest("k"), n)
	if !resp.Ok || !bytes.Equal(resp.Value, []byte("v")) {
		t.Fatalf("get response = (%q, %v)", resp.Value, resp.Ok)
	}

	// Delete
	resp = adapter.Handle(common.NewDeleteRequest("k"), n)
	if resp.MsgType != common.MsgTKVDelete || resp.Err != "" || resp.EventID == "" {
		t.Fatalf("delete response = %+v", resp)
	}
	resp = adapter.Handle(common.NewGetRequest("k"), n)
	if resp.Ok {
		t.Fatal("key still visible after delete")
	}
}

func TestKVAdapterSetEmptyKey(t *testing.T) {
	n := testNode(t, "adapter-empty")
	adapter := NewKVServerAdapter()

	resp := adapter.Handle(common.NewSetRequest("", []byte("v")), n)
	if resp.Err == "" || resp.Code != uint64(node.RetCMalformedEvent) {
		t.Fatalf("empty key set response = %+v", resp)
	}
	if resp.EventID != "" {
		t.Fatalf("refused set still carries event ID %s", resp.EventID)
	}
}

func TestKVAdapterInfo(t *testing.T) {
	n := testNode(t, "adapter-info")
	adapter := NewKVServerAdapter()

	if resp := adapter.Handle(common.NewSetRequest("k", []byte("v")), n); resp.Err != "" {
		t.Fatalf("set: %s", resp.Err)
	}

	resp := adapter.Handle(common.NewInfoRequest(), n)
	if resp.MsgType != common.MsgTInfo {
		t.Fatalf("info response = %+v", resp)
	}

	var info common.NodeInfo
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.NodeID != "adapter-info" {
		t.Fatalf("info.NodeID = %s", info.NodeID)
	}
	if info.LightSpeed != spacetime.DefaultC {
		t.Fatalf("info.LightSpeed = %v", info.LightSpeed)
	}
	// genesis plus one write
	if info.Events != 2 {
		t.Fatalf("info.Events = %d, want 2", info.Events)
	}
}

func TestKVAdapterUnknownType(t *testing.T) {
	n := testNode(t, "adapter-unknown")
	adapter := NewKVServerAdapter()

	resp := adapter.Handle(common.NewGossipRequest(nil), n)
	if resp.MsgType != common.MsgTError {
		t.Fatalf("gossip on kv channel = %+v", resp)
	}
}

func TestGossipAdapterDeliversBatch(t *testing.T) {
	n := testNode(t, "adapter-gossip")
	adapter := NewGossipServerAdapter()

	ev := event.New("peer", spacetime.Coord{T: 10 * second}, []event.ID{event.Genesis().ID},
		event.Operation{Kind: event.OpSet, Key: "remote", Value: []byte("x")})

	resp := adapter.Handle(common.NewGossipRequest(common.RecordsFromEvents([]event.Event{ev})), n)
	if resp.Err != "" || resp.Code != uint64(node.RetCSuccess) {
		t.Fatalf("gossip response = %+v", resp)
	}

	got, ok := n.Get("remote")
	if !ok || !bytes.Equal(got, []byte("x")) {
		t.Fatalf("remote write not applied: (%q, %v)", got, ok)
	}
}

func TestGossipAdapterReportsFirstRefusal(t *testing.T) {
	n := testNode(t, "adapter-refusal")
	adapter := NewGossipServerAdapter()

	good := event.New("peer", spacetime.Coord{T: 10 * second}, []event.ID{event.Genesis().ID},
		event.Operation{Kind: event.OpSet, Key: "good", Value: []byte("1")})
	// origin timestamp in the receiver's future
	skewed := event.New("peer", spacetime.Coord{T: 5000 * second}, []event.ID{event.Genesis().ID},
		event.Operation{Kind: event.OpSet, Key: "bad", Value: []byte("2")})

	records := common.RecordsFromEvents([]event.Event{good, skewed})
	resp := adapter.Handle(common.NewGossipRequest(records), n)

	if resp.Code != uint64(node.RetCClockSkew) {
		t.Fatalf("code = %d, want ClockSkew", resp.Code)
	}
	// the good event before the refusal must still have landed
	if _, ok := n.Get("good"); !ok {
		t.Fatal("event preceding the refusal was not applied")
	}
}

func TestGossipAdapterRejectsTamperedRecord(t *testing.T) {
	n := testNode(t, "adapter-tampered")
	adapter := NewGossipServerAdapter()

	ev := event.New("peer", spacetime.Coord{T: 10 * second}, []event.ID{event.Genesis().ID},
		event.Operation{Kind: event.OpSet, Key: "k", Value: []byte("v")})
	records := common.RecordsFromEvents([]event.Event{ev})
	records[0].Value = []byte("forged")

	resp := adapter.Handle(common.NewGossipRequest(records), n)
	if resp.Code != uint64(node.RetCMalformedEvent) {
		t.Fatalf("code = %d, want MalformedEvent", resp.Code)
	}
	if _, ok := n.Get("k"); ok {
		t.Fatal("tampered event was applied")
	}
}

// fakeTransport hands requests straight to the registered handler, so the
// routing logic can be tested without a network.
type fakeTransport struct {
	handler transport.ServerHandleFunc
}

func (f *fakeTransport) RegisterHandler(h transport.ServerHandleFunc) { f.handler = h }
func (f *fakeTransport) Listen(common.ServerConfig) error            { return nil }

func TestServerRoutesByChannel(t *testing.T) {
	n := testNode(t, "routing")
	ft := &fakeTransport{}
	s := rpcServer{
		config:     common.ServerConfig{NodeID: "routing"},
		transport:  ft,
		serializer: serializer.NewJSONSerializer(),
		channels:   xsync.NewMapOf[uint64, IRPCServerAdapter](),
		node:       n,
	}
	s.channels.Store(common.ChannelKV, NewKVServerAdapter())
	s.channels.Store(common.ChannelGossip, NewGossipServerAdapter())
	s.registerTransportHandler()

	send := func(channel uint64, msg *common.Message) *common.Message {
		t.Helper()
		reqBytes, err := s.serializer.Serialize(*msg)
		if err != nil {
			t.Fatalf("serialize: %v", err)
		}
		respBytes := ft.handler(channel, reqBytes)
		var resp common.Message
		if err := s.serializer.Deserialize(respBytes, &resp); err != nil {
			t.Fatalf("deserialize: %v", err)
		}
		return &resp
	}

	// KV traffic on the KV channel
	if resp := send(common.ChannelKV, common.NewSetRequest("k", []byte("v"))); resp.Err != "" {
		t.Fatalf("set via kv channel: %s", resp.Err)
	}
	if resp := send(common.ChannelKV, common.NewGetRequest("k")); !resp.Ok {
		t.Fatalf("get via kv channel = %+v", resp)
	}

	// Gossip traffic on the gossip channel
	ev := event.New("peer", spacetime.Coord{T: 10 * second}, []event.ID{event.Genesis().ID},
		event.Operation{Kind: event.OpSet, Key: "g", Value: []byte("1")})
	if resp := send(common.ChannelGossip, common.NewGossipRequest(common.RecordsFromEvents([]event.Event{ev}))); resp.Err != "" {
		t.Fatalf("gossip via gossip channel: %s", resp.Err)
	}

	// Unknown channel
	if resp := send(42, common.NewGetRequest("k")); resp.MsgType != common.MsgTError {
		t.Fatalf("unknown channel response = %+v", resp)
	}
}
