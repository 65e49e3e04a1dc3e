package node

import (
	"fmt"
	"sync"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/minkv/minkv/lib/dag"
	"github.com/minkv/minkv/lib/event"
	"github.com/minkv/minkv/lib/gate"
	"github.com/minkv/minkv/lib/spacetime"
	"github.com/minkv/minkv/lib/util"
)

var Logger = logger.GetLogger("node")

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Defaults for the buffer capacities and the gossip ancestry depth.
const (
	DefaultPendingCap    = 4096
	DefaultBlockedCap    = 4096
	DefaultAncestryDepth = 3
)

// BroadcastFunc receives every locally committed write together with its
// recent ancestry, parent-before-child, for fan-out to peers. It is invoked
// on a separate goroutine and must not touch the node's locked state.
type BroadcastFunc func(batch []event.Event)

// Config carries the identity and physics parameters of a node. Position
// and the propagation constant are fixed for the node's lifetime.
type Config struct {
	// ID is the node identity, unique within the deployment.
	ID string
	// Position is the node's fixed location in the shared frame (meters).
	Position [3]float64
	// C is the network-wide propagation constant (meters per second).
	// It must be identical on every node.
	C float64
	// PendingCap bounds the physics-delayed queue, BlockedCap the
	// dependency-blocked set. Zero selects the defaults; negative means
	// unbounded.
	PendingCap int
	BlockedCap int
	// AncestryDepth is how many generations of parents accompany a local
	// write in its broadcast batch. Zero selects the default.
	AncestryDepth int
	// Clock overrides the node's time source; nil selects the wall clock.
	Clock Clock
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.PendingCap == 0 {
		out.PendingCap = DefaultPendingCap
	}
	if out.BlockedCap == 0 {
		out.BlockedCap = DefaultBlockedCap
	}
	if out.AncestryDepth == 0 {
		out.AncestryDepth = DefaultAncestryDepth
	}
	if out.Clock == nil {
		out.Clock = NewWallClock()
	}
	return out
}

// Stats is a point-in-time snapshot of the core's buffer sizes.
type Stats struct {
	Events  int `json:"events"`
	Heads   int `json:"heads"`
	Pending int `json:"pending"`
	Blocked int `json:"blocked"`
}

// --------------------------------------------------------------------------
// Node
// --------------------------------------------------------------------------

// Node is one replica of the store.
//
// Thread-safety: the full public surface is safe for concurrent use. DAG,
// head-set and buffer mutation is serialized behind mu; materialized reads
// bypass the lock entirely.
type Node struct {
	cfg   Config
	clock Clock

	mu    sync.Mutex
	gate  *gate.Gate
	sched *gate.Scheduler
	dag   *dag.DAG
	mat   *dag.Materializer

	ingest    *util.MPSC[event.Event]
	notifier  *notifier
	broadcast BroadcastFunc

	wakeCh chan struct{}
	stopCh chan struct{}
}

// NewNode constructs and starts a node. The release scheduler's timer loop
// and the asynchronous ingestion pump run until Close.
func NewNode(cfg Config, broadcast BroadcastFunc) (*Node, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("node id must not be empty")
	}
	cfg = cfg.withDefaults()

	g, err := gate.New(cfg.C)
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:       cfg,
		clock:     cfg.Clock,
		gate:      g,
		sched:     gate.NewScheduler(cfg.PendingCap),
		dag:       dag.New(cfg.BlockedCap),
		mat:       dag.NewMaterializer(),
		ingest:    util.NewMPSC[event.Event](),
		notifier:  newNotifier(cfg.ID),
		broadcast: broadcast,
		wakeCh:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}

	vm.GetOrCreateGauge(fmt.Sprintf(`minkv_pending_events{node=%q}`, cfg.ID), func() float64 {
		n.mu.Lock()
		defer n.mu.Unlock()
		return float64(n.sched.Len())
	})
	vm.GetOrCreateGauge(fmt.Sprintf(`minkv_blocked_events{node=%q}`, cfg.ID), func() float64 {
		n.mu.Lock()
		defer n.mu.Unlock()
		return float64(n.dag.BlockedLen())
	})

	go n.schedulerLoop()
	go n.ingestLoop()

	Logger.Infof("node %s up at position (%.1f, %.1f, %.1f), c=%.1f m/s",
		cfg.ID, cfg.Position[0], cfg.Position[1], cfg.Position[2], cfg.C)

	return n, nil
}

// ID returns the node identity.
func (n *Node) ID() string {
	return n.cfg.ID
}

// Position returns the node's fixed location in the shared frame.
func (n *Node) Position() [3]float64 {
	return n.cfg.Position
}

// LightSpeed returns the propagation constant the causal gate runs with.
func (n *Node) LightSpeed() float64 {
	return n.gate.C()
}

// here returns the node's fixed position stamped with its current local time.
func (n *Node) here() spacetime.Coord {
	return spacetime.Coord{
		T: n.clock.Now(),
		X: n.cfg.Position[0],
		Y: n.cfg.Position[1],
		Z: n.cfg.Position[2],
	}
}

// Subscribe returns a stream of observable core transitions. The stream is
// best-effort: a slow consumer loses notifications, never slows the core.
func (n *Node) Subscribe() <-chan Notification {
	return n.notifier.subscribe()
}

// Close stops the background loops and terminates subscriber streams.
// Events still parked in the pending or blocked buffers are discarded with
// the process.
func (n *Node) Close() {
	close(n.stopCh)
	n.ingest.Close()
	n.notifier.close()
}

// --------------------------------------------------------------------------
// Application command surface
// --------------------------------------------------------------------------

// Set creates, commits and broadcasts a local write. The write's parents are
// the node's current causal frontier, so it is ordered after every event the
// node has seen. Local writes bypass the causal gate: the node is trivially
// inside its own light cone.
func (n *Node) Set(key string, value []byte) (event.Event, error) {
	if key == "" {
		return event.Event{}, NewError(RetCMalformedEvent, "key must not be empty")
	}
	return n.localWrite(event.Operation{Kind: event.OpSet, Key: key, Value: value})
}

// Delete creates, commits and broadcasts a local tombstone write.
func (n *Node) Delete(key string) (event.Event, error) {
	if key == "" {
		return event.Event{}, NewError(RetCMalformedEvent, "key must not be empty")
	}
	return n.localWrite(event.Operation{Kind: event.OpDelete, Key: key})
}

// Heartbeat commits a no-op event. It advances the causal frontier, which
// joins concurrent branches and keeps idle nodes visible to their peers.
func (n *Node) Heartbeat() (event.Event, error) {
	return n.localWrite(event.Operation{Kind: event.OpHeartbeat})
}

// Get reads the materialized value for a key. It reflects only events
// committed locally: it never waits for in-flight physics delays.
//
// Thread-safety: lock-free; never blocks writers.
func (n *Node) Get(key string) ([]byte, bool) {
	return n.mat.Read(key)
}

// Heads returns the node's current causal frontier.
func (n *Node) Heads() []event.ID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dag.Heads()
}

// Stats snapshots the core's sizes.
func (n *Node) Stats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Stats{
		Events:  n.dag.Len(),
		Heads:   len(n.dag.Heads()),
		Pending: n.sched.Len(),
		Blocked: n.dag.BlockedLen(),
	}
}

// localWrite builds an event on the current frontier and commits it.
func (n *Node) localWrite(op event.Operation) (event.Event, error) {
	n.mu.Lock()

	ev := event.New(n.cfg.ID, n.here(), n.dag.Heads(), op)

	res, committed, _ := n.dag.Admit(ev)
	if res != dag.Committed {
		n.mu.Unlock()
		return event.Event{}, NewError(RetCInternalError,
			fmt.Sprintf("local write %s not committable: %s", ev.ID.Short(), res))
	}
	for _, c := range committed {
		n.mat.Apply(n.dag, c)
		n.notifier.publish(Notification{Transition: TransitionCommit, Event: c.ID})
	}

	// Assemble the gossip batch while still holding the lock, then hand it
	// off. Shipping recent ancestors with the write lets receivers commit
	// without waiting for missing parents.
	var batch []event.Event
	if n.broadcast != nil {
		batch = n.dag.Ancestry(ev.ID, n.cfg.AncestryDepth)
	}
	n.mu.Unlock()

	if n.broadcast != nil {
		go n.broadcast(batch)
	}

	Logger.Debugf("node %s committed local %s as %s", n.cfg.ID, op, ev.ID.Short())
	return ev, nil
}

// --------------------------------------------------------------------------
// Ingestion surface
// --------------------------------------------------------------------------

// Ingest runs one decoded event through validation, the causal gate and the
// merge engine. The error is nil for every normal outcome — admitted,
// physics-delayed, dependency-blocked or duplicate; only clock skew,
// malformed records and overflow of the event's own buffering surface as
// errors.
func (n *Node) Ingest(ev event.Event) error {
	// Validation happens at the boundary; malformed records never reach
	// the gate.
	if err := ev.Validate(); err != nil {
		return NewError(RetCMalformedEvent, err.Error())
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ingestLocked(ev)
}

// IngestAsync queues an event for the ingestion pump and returns
// immediately, reporting only whether the queue accepted it. The gossip
// surface does not use it: its responses carry refusal codes, so it
// ingests synchronously. The pump serves callers that embed the node
// directly and have no use for a per-event outcome, such as simulation
// drivers feeding many replicas from one goroutine.
func (n *Node) IngestAsync(ev event.Event) bool {
	return n.ingest.Push(&ev)
}

func (n *Node) ingestLocked(ev event.Event) error {
	// Duplicate delivery from redundant paths is a no-op, not an error.
	if n.sched.Contains(ev.ID) {
		return nil
	}

	d := n.gate.Evaluate(ev, n.here())
	switch d.Verdict {
	case gate.Reject:
		n.notifier.publish(Notification{Transition: TransitionReject, Event: ev.ID})
		Logger.Warningf("node %s rejected %s: origin timestamp %d is in the local future",
			n.cfg.ID, ev.ID.Short(), ev.Coord.T)
		return NewError(RetCClockSkew,
			fmt.Sprintf("event %s origin timestamp is ahead of local clock", ev.ID.Short()))

	case gate.Delay:
		if n.dag.Contains(ev.ID) {
			return nil
		}
		shed, overflow := n.sched.Add(ev, d.ReleaseAt)
		if overflow {
			n.notifier.publish(Notification{Transition: TransitionBufferOverflow, Event: shed.ID})
			Logger.Warningf("node %s pending queue full, shed %s", n.cfg.ID, shed.ID.Short())
			if shed.ID == ev.ID {
				return NewError(RetCBufferOverflow, "pending queue at capacity")
			}
		}
		if n.sched.Contains(ev.ID) {
			n.notifier.publish(Notification{
				Transition: TransitionDelay,
				Event:      ev.ID,
				ReleaseAt:  d.ReleaseAt,
			})
			n.wake()
		}
		return nil

	default: // Admit
		n.notifier.publish(Notification{Transition: TransitionAdmit, Event: ev.ID})
		return n.mergeLocked(ev)
	}
}

// mergeLocked hands an admitted event to the merge engine and folds every
// resulting commit into the materialized state.
func (n *Node) mergeLocked(ev event.Event) error {
	res, committed, missing := n.dag.Admit(ev)
	switch res {
	case dag.Committed:
		for _, c := range committed {
			n.mat.Apply(n.dag, c)
			n.notifier.publish(Notification{Transition: TransitionCommit, Event: c.ID})
		}
		return nil

	case dag.Blocked:
		// Normal control flow: the event waits for its parents.
		Logger.Debugf("node %s holds %s, missing %d parent(s)", n.cfg.ID, ev.ID.Short(), len(missing))
		return nil

	case dag.Overflow:
		n.notifier.publish(Notification{Transition: TransitionBufferOverflow, Event: ev.ID})
		Logger.Warningf("node %s blocked set full, shed %s", n.cfg.ID, ev.ID.Short())
		return NewError(RetCBufferOverflow, "dependency-blocked set at capacity")

	default: // Duplicate
		return nil
	}
}

// --------------------------------------------------------------------------
// Background loops
// --------------------------------------------------------------------------

// wake nudges the scheduler loop after a new deadline was queued.
func (n *Node) wake() {
	select {
	case n.wakeCh <- struct{}{}:
	default:
	}
}

// idleWait bounds the scheduler loop's sleep when no deadline is pending.
const idleWait = time.Second

// schedulerLoop drives the release scheduler: it sleeps until the nearest
// pending deadline (or a wake signal for a nearer one) and re-submits due
// events to the gate, which at that point always admits them.
func (n *Node) schedulerLoop() {
	for {
		n.mu.Lock()
		next, ok := n.sched.NextDeadline()
		now := n.clock.Now()
		n.mu.Unlock()

		wait := idleWait
		if ok {
			if next <= now {
				n.releaseDue()
				continue
			}
			wait = time.Duration(next - now)
		}

		timer := time.NewTimer(wait)
		select {
		case <-n.stopCh:
			timer.Stop()
			return
		case <-n.wakeCh:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// releaseDue re-submits every due pending event to the gate. Pop order is
// deterministic; the final materialized state does not depend on it.
func (n *Node) releaseDue() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ev := range n.sched.Due(n.clock.Now()) {
		n.notifier.publish(Notification{Transition: TransitionAdmit, Event: ev.ID})
		if err := n.mergeLocked(ev); err != nil {
			Logger.Warningf("node %s dropped released event %s: %v", n.cfg.ID, ev.ID.Short(), err)
		}
	}
}

// ingestLoop is the single consumer of the asynchronous ingestion queue.
func (n *Node) ingestLoop() {
	for ev := range n.ingest.Recv() {
		if err := n.Ingest(*ev); err != nil {
			Logger.Warningf("node %s dropped ingested event %s: %v", n.cfg.ID, ev.ID.Short(), err)
		}
	}
}
