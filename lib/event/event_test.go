package event

import (
	"testing"

	"github.com/minkv/minkv/lib/spacetime"
)

func TestGenesisDeterministic(t *testing.T) {
	a := Genesis()
	b := Genesis()

	if a.ID != b.ID {
		t.Fatalf("genesis must hash identically on every replica: %s vs %s", a.ID, b.ID)
	}
	if err := a.Validate(); err != nil {
		t.Errorf("genesis must validate: %v", err)
	}
}

func TestNewComputesContentID(t *testing.T) {
	g := Genesis()
	ev := New("node-1", spacetime.Coord{T: 42, X: 1}, []ID{g.ID}, Operation{Kind: OpSet, Key: "k", Value: []byte("v")})

	if ev.ID != ev.ComputeID() {
		t.Error("ID must match content hash")
	}
	if err := ev.Validate(); err != nil {
		t.Errorf("freshly created event must validate: %v", err)
	}
}

func TestNonceMakesIDsUnique(t *testing.T) {
	g := Genesis()
	op := Operation{Kind: OpSet, Key: "k", Value: []byte("v")}

	a := New("node-1", spacetime.Coord{T: 1}, []ID{g.ID}, op)
	b := New("node-1", spacetime.Coord{T: 1}, []ID{g.ID}, op)

	if a.ID == b.ID {
		t.Error("two creations of the same logical write must have distinct ids")
	}
}

func TestValidateRejectsTamperedContent(t *testing.T) {
	g := Genesis()
	ev := New("node-1", spacetime.Coord{T: 7}, []ID{g.ID}, Operation{Kind: OpSet, Key: "k", Value: []byte("v")})

	ev.Op.Value = []byte("forged")
	if err := ev.Validate(); err == nil {
		t.Error("tampered event must fail validation")
	}
}

func TestValidateRejectsMalformedPayload(t *testing.T) {
	g := Genesis()

	tests := []struct {
		name string
		op   Operation
	}{
		{"set without key", Operation{Kind: OpSet, Value: []byte("v")}},
		{"delete with value", Operation{Kind: OpDelete, Key: "k", Value: []byte("v")}},
		{"heartbeat with key", Operation{Kind: OpHeartbeat, Key: "k"}},
		{"unknown kind", Operation{Kind: OpKind(99)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := New("node-1", spacetime.Coord{T: 1}, []ID{g.ID}, tt.op)
			if err := ev.Validate(); err == nil {
				t.Error("expected validation failure")
			}
		})
	}
}

func TestValidateRequiresParents(t *testing.T) {
	ev := New("node-1", spacetime.Coord{T: 1}, nil, Operation{Kind: OpHeartbeat})
	if err := ev.Validate(); err == nil {
		t.Error("non-genesis event without parents must be rejected")
	}
}

func TestCanonicalParentOrder(t *testing.T) {
	g := Genesis()
	a := New("node-1", spacetime.Coord{T: 1}, []ID{g.ID}, Operation{Kind: OpHeartbeat})
	b := New("node-2", spacetime.Coord{T: 1}, []ID{g.ID}, Operation{Kind: OpHeartbeat})

	fwd := New("node-3", spacetime.Coord{T: 2}, []ID{a.ID, b.ID}, Operation{Kind: OpHeartbeat})
	rev := New("node-3", spacetime.Coord{T: 2}, []ID{b.ID, a.ID}, Operation{Kind: OpHeartbeat})

	for i := range fwd.Parents {
		if fwd.Parents[i] != rev.Parents[i] {
			t.Fatal("parent order must be canonical regardless of construction order")
		}
	}

	dup := New("node-3", spacetime.Coord{T: 2}, []ID{a.ID, a.ID, b.ID}, Operation{Kind: OpHeartbeat})
	if len(dup.Parents) != 2 {
		t.Errorf("duplicate parents must be removed, got %d", len(dup.Parents))
	}
}

func TestParseIDRoundTrip(t *testing.T) {
	id := Genesis().ID

	parsed, err := ParseID(id.Hex())
	if err != nil {
		t.Fatalf("ParseID: %v", err)
	}
	if parsed != id {
		t.Error("hex round trip must preserve the id")
	}

	if _, err := ParseID("zz"); err == nil {
		t.Error("expected error for non-hex input")
	}
	if _, err := ParseID("abcd"); err == nil {
		t.Error("expected error for short input")
	}
}

func TestIDLess(t *testing.T) {
	var a, b ID
	b[0] = 1

	if !a.Less(b) || b.Less(a) {
		t.Error("lexicographic comparison broken")
	}
	if a.Less(a) {
		t.Error("Less must be irreflexive")
	}
}
