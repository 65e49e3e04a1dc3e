package common

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/minkv/minkv/lib/event"
	"github.com/minkv/minkv/lib/spacetime"
)

// --------------------------------------------------------------------------
// Event Wire Record
// --------------------------------------------------------------------------

// EventRecord is the wire form of an event. IDs travel as hex strings and
// the nonce as its canonical UUID text so every serializer can carry the
// record without special casing. Conversion back to an event does not
// validate; the receiving node's ingestion boundary does.
type EventRecord struct {
	ID      string   `json:"id"`
	Nonce   string   `json:"nonce"`
	Origin  string   `json:"origin"`
	T       uint64   `json:"t"`
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	Z       float64  `json:"z"`
	Parents []string `json:"parents,omitempty"`
	Op      uint8    `json:"op"`
	Key     string   `json:"key,omitempty"`
	Value   []byte   `json:"value,omitempty"`
}

// RecordFromEvent converts an event into its wire form.
func RecordFromEvent(ev event.Event) EventRecord {
	parents := make([]string, len(ev.Parents))
	for i, p := range ev.Parents {
		parents[i] = p.Hex()
	}
	return EventRecord{
		ID:      ev.ID.Hex(),
		Nonce:   ev.Nonce.String(),
		Origin:  ev.Origin,
		T:       ev.Coord.T,
		X:       ev.Coord.X,
		Y:       ev.Coord.Y,
		Z:       ev.Coord.Z,
		Parents: parents,
		Op:      uint8(ev.Op.Kind),
		Key:     ev.Op.Key,
		Value:   ev.Op.Value,
	}
}

// ToEvent converts the wire form back into an event. Only structural
// decoding errors (unparsable IDs or nonce) are reported here.
func (r EventRecord) ToEvent() (event.Event, error) {
	id, err := event.ParseID(r.ID)
	if err != nil {
		return event.Event{}, fmt.Errorf("event id: %w", err)
	}
	nonce, err := uuid.Parse(r.Nonce)
	if err != nil {
		return event.Event{}, fmt.Errorf("event nonce: %w", err)
	}
	parents := make([]event.ID, len(r.Parents))
	for i, p := range r.Parents {
		if parents[i], err = event.ParseID(p); err != nil {
			return event.Event{}, fmt.Errorf("parent %d: %w", i, err)
		}
	}
	// Codecs may decode an absent payload as a non-nil empty slice. The
	// payload validation distinguishes nil from empty, so zero-length
	// normalizes to nil before the event reaches the boundary.
	value := r.Value
	if len(value) == 0 {
		value = nil
	}
	return event.Event{
		ID:      id,
		Nonce:   nonce,
		Origin:  r.Origin,
		Coord:   spacetime.Coord{T: r.T, X: r.X, Y: r.Y, Z: r.Z},
		Parents: parents,
		Op: event.Operation{
			Kind:  event.OpKind(r.Op),
			Key:   r.Key,
			Value: value,
		},
	}, nil
}

// RecordsFromEvents converts a batch, preserving order.
func RecordsFromEvents(events []event.Event) []EventRecord {
	records := make([]EventRecord, len(events))
	for i, ev := range events {
		records[i] = RecordFromEvent(ev)
	}
	return records
}
