package event

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/minkv/minkv/lib/spacetime"
)

// --------------------------------------------------------------------------
// Event Identifier
// --------------------------------------------------------------------------

// IDSize is the length of an event identifier in bytes (SHA-256 digest).
const IDSize = 32

// ID is the content-derived identifier of an event.
type ID [IDSize]byte

// Hex returns the lowercase hex encoding of the identifier.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

// Short returns an abbreviated hex form for log output.
func (id ID) Short() string {
	return hex.EncodeToString(id[:4])
}

func (id ID) String() string {
	return id.Hex()
}

// Less reports whether id orders lexicographically before other.
// This ordering is the deterministic tie-break for concurrent writes.
func (id ID) Less(other ID) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

// ParseID decodes a 64-character hex string into an ID.
func ParseID(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid event id %q: %v", s, err)
	}
	if len(b) != IDSize {
		return id, fmt.Errorf("invalid event id length %d (expected %d)", len(b), IDSize)
	}
	copy(id[:], b)
	return id, nil
}

// SortIDs sorts a slice of IDs lexicographically in place and returns it.
// Parent sets are always kept in this canonical order so that hashing and
// serialization are deterministic.
func SortIDs(ids []ID) []ID {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// --------------------------------------------------------------------------
// Operation Payload (closed tagged variant)
// --------------------------------------------------------------------------

// OpKind enumerates the payload kinds an event can carry. The set is closed:
// materialization handles every kind exhaustively.
type OpKind uint8

const (
	OpGenesis   OpKind = iota // anchors the DAG, carries no data
	OpSet                     // insert or overwrite a key
	OpDelete                  // remove a key
	OpHeartbeat               // no-op, advances the causal frontier
)

func (k OpKind) String() string {
	switch k {
	case OpGenesis:
		return "genesis"
	case OpSet:
		return "set"
	case OpDelete:
		return "delete"
	case OpHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Operation is the semantic payload of an event. Key and Value are only
// meaningful for the kinds that use them (Set uses both, Delete uses Key).
type Operation struct {
	Kind  OpKind `json:"kind"`
	Key   string `json:"key,omitempty"`
	Value []byte `json:"value,omitempty"`
}

// Valid checks structural well-formedness of the payload.
func (op Operation) Valid() bool {
	switch op.Kind {
	case OpSet:
		return op.Key != ""
	case OpDelete:
		return op.Key != "" && op.Value == nil
	case OpGenesis, OpHeartbeat:
		return op.Key == "" && op.Value == nil
	default:
		return false
	}
}

func (op Operation) String() string {
	switch op.Kind {
	case OpSet:
		return fmt.Sprintf("set(%s, %d bytes)", op.Key, len(op.Value))
	case OpDelete:
		return fmt.Sprintf("delete(%s)", op.Key)
	default:
		return op.Kind.String()
	}
}

// --------------------------------------------------------------------------
// Event Record
// --------------------------------------------------------------------------

// Event is an immutable, content-addressed operation record.
//
// The ID field is derived from all other fields and recomputed on arrival;
// a record whose ID does not match its content is malformed and rejected at
// the ingestion boundary.
type Event struct {
	// ID is the SHA-256 content address of this event.
	ID ID `json:"id"`
	// Nonce distinguishes events that are otherwise identical
	// (same origin, coordinate, parents and payload).
	Nonce uuid.UUID `json:"nonce"`
	// Origin is the identifier of the node that created the event.
	Origin string `json:"origin"`
	// Coord is the spacetime coordinate of creation: the origin node's
	// position and its local clock value at creation time.
	Coord spacetime.Coord `json:"coord"`
	// Parents holds the IDs of the direct causal predecessors, sorted
	// lexicographically. Only the genesis event has no parents.
	Parents []ID `json:"parents"`
	// Op is the operation payload.
	Op Operation `json:"op"`
}

// New constructs an event and computes its content ID. The parent slice is
// canonicalized (sorted, deduplicated) and must not be modified afterwards.
func New(origin string, coord spacetime.Coord, parents []ID, op Operation) Event {
	ev := Event{
		Nonce:   uuid.New(),
		Origin:  origin,
		Coord:   coord,
		Parents: canonicalParents(parents),
		Op:      op,
	}
	ev.ID = ev.ComputeID()
	return ev
}

// Genesis returns the deterministic event anchoring every replica's DAG.
// All fields are fixed so that every replica computes the identical ID.
func Genesis() Event {
	ev := Event{
		Nonce:   uuid.Nil,
		Origin:  "",
		Coord:   spacetime.Coord{},
		Parents: nil,
		Op:      Operation{Kind: OpGenesis},
	}
	ev.ID = ev.ComputeID()
	return ev
}

// ComputeID hashes the canonical encoding of the event content.
func (ev Event) ComputeID() ID {
	h := sha256.New()

	h.Write(ev.Nonce[:])
	writeString(h.Write, ev.Origin)

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], ev.Coord.T)
	h.Write(buf[:])
	writeFloat(h.Write, ev.Coord.X)
	writeFloat(h.Write, ev.Coord.Y)
	writeFloat(h.Write, ev.Coord.Z)

	binary.BigEndian.PutUint64(buf[:], uint64(len(ev.Parents)))
	h.Write(buf[:])
	for _, p := range ev.Parents {
		h.Write(p[:])
	}

	h.Write([]byte{byte(ev.Op.Kind)})
	writeString(h.Write, ev.Op.Key)
	binary.BigEndian.PutUint64(buf[:], uint64(len(ev.Op.Value)))
	h.Write(buf[:])
	h.Write(ev.Op.Value)

	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

// Validate checks that the record is structurally sound and that its ID
// matches its content. It is called at the ingestion boundary before any
// record reaches the causal gate.
func (ev Event) Validate() error {
	if !ev.Op.Valid() {
		return fmt.Errorf("malformed payload: %s", ev.Op)
	}
	if len(ev.Parents) == 0 && ev.Op.Kind != OpGenesis {
		return fmt.Errorf("non-genesis event without parents")
	}
	for i := 1; i < len(ev.Parents); i++ {
		if !ev.Parents[i-1].Less(ev.Parents[i]) {
			return fmt.Errorf("parent ids not in canonical order")
		}
	}
	if got := ev.ComputeID(); got != ev.ID {
		return fmt.Errorf("non-canonical id %s (content hashes to %s)", ev.ID.Short(), got.Short())
	}
	return nil
}

func (ev Event) String() string {
	return fmt.Sprintf("Event{%s %s by %q at %s, %d parents}",
		ev.ID.Short(), ev.Op, ev.Origin, ev.Coord, len(ev.Parents))
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// canonicalParents sorts and deduplicates the parent set.
func canonicalParents(parents []ID) []ID {
	if len(parents) == 0 {
		return nil
	}
	out := make([]ID, len(parents))
	copy(out, parents)
	SortIDs(out)

	dedup := out[:1]
	for _, p := range out[1:] {
		if p != dedup[len(dedup)-1] {
			dedup = append(dedup, p)
		}
	}
	return dedup
}

func writeString(w func([]byte) (int, error), s string) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(len(s)))
	w(buf[:])
	w([]byte(s))
}

func writeFloat(w func([]byte) (int, error), f float64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
	w(buf[:])
}
