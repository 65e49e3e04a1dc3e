package serializer

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/minkv/minkv/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey     byte = 1 << 0
	hasValue   byte = 1 << 1
	hasOk      byte = 1 << 2
	hasEventID byte = 1 << 3
	hasErr     byte = 1 << 4
	hasCode    byte = 1 << 5
	hasEvents  byte = 1 << 6
	hasMeta    byte = 1 << 7
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	totalSize := b.sizeBytes(msg)
	result := make([]byte, totalSize)

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags byte
	var flags byte = 0

	// Set position for writing
	pos := 2 // Start after MsgType and flags

	// Handle Key
	if msg.Key != "" {
		flags |= hasKey
		pos = putString(result, pos, msg.Key)
	}

	// Handle Value
	if msg.Value != nil {
		flags |= hasValue
		pos = putBytes(result, pos, msg.Value)
	}

	// Handle Ok
	if msg.Ok {
		flags |= hasOk
		result[pos] = 1
		pos++
	}

	// Handle EventID
	if msg.EventID != "" {
		flags |= hasEventID
		pos = putString(result, pos, msg.EventID)
	}

	// Handle Err
	if msg.Err != "" {
		flags |= hasErr
		pos = putString(result, pos, msg.Err)
	}

	// Handle Code
	if msg.Code > 0 {
		flags |= hasCode
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.Code)
		pos += 8
	}

	// Handle Events
	if msg.Events != nil {
		flags |= hasEvents
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(msg.Events)))
		pos += 4
		for i := range msg.Events {
			pos = putRecord(result, pos, &msg.Events[i])
		}
	}

	// Handle Meta
	if msg.Meta != nil {
		flags |= hasMeta
		pos = putBytes(result, pos, msg.Meta)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	// Read message type
	msg.MsgType = common.MessageType(data[0])

	// Read flags
	flags := data[1]

	// Initialize read position
	pos := 2
	var err error

	// Read Key if present
	if flags&hasKey != 0 {
		if msg.Key, pos, err = getString(data, pos); err != nil {
			return fmt.Errorf("key: %w", err)
		}
	} else {
		msg.Key = ""
	}

	// Read Value if present
	if flags&hasValue != 0 {
		if msg.Value, pos, err = getBytes(data, pos); err != nil {
			return fmt.Errorf("value: %w", err)
		}
	} else {
		msg.Value = nil
	}

	// Read Ok if present
	if flags&hasOk != 0 {
		if pos+1 > len(data) {
			return fmt.Errorf("data too short for Ok flag")
		}
		msg.Ok = data[pos] != 0
		pos++
	} else {
		msg.Ok = false
	}

	// Read EventID if present
	if flags&hasEventID != 0 {
		if msg.EventID, pos, err = getString(data, pos); err != nil {
			return fmt.Errorf("event id: %w", err)
		}
	} else {
		msg.EventID = ""
	}

	// Read Err if present
	if flags&hasErr != 0 {
		if msg.Err, pos, err = getString(data, pos); err != nil {
			return fmt.Errorf("err: %w", err)
		}
	} else {
		msg.Err = ""
	}

	// Read Code if present
	if flags&hasCode != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for code")
		}
		msg.Code = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	} else {
		msg.Code = 0
	}

	// Read Events if present
	if flags&hasEvents != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for event count")
		}
		count := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		// Sanity bound: a record takes at least its fixed fields
		if int(count) > len(data)/minRecordSize {
			return fmt.Errorf("implausible event count %d", count)
		}

		msg.Events = make([]common.EventRecord, count)
		for i := uint32(0); i < count; i++ {
			if pos, err = getRecord(data, pos, &msg.Events[i]); err != nil {
				return fmt.Errorf("event %d: %w", i, err)
			}
		}
	} else {
		msg.Events = nil
	}

	// Read Meta if present
	if flags&hasMeta != 0 {
		if msg.Meta, pos, err = getBytes(data, pos); err != nil {
			return fmt.Errorf("meta: %w", err)
		}
	} else {
		msg.Meta = nil
	}

	return nil
}

// --------------------------------------------------------------------------
// Event Record Encoding
// --------------------------------------------------------------------------

// minRecordSize is the encoded size of a record with every variable field
// empty: six length prefixes, T, three coordinates and the op byte.
const minRecordSize = 6*4 + 8 + 3*8 + 1

// putRecord writes one event record and returns the new position
func putRecord(b []byte, pos int, r *common.EventRecord) int {
	pos = putString(b, pos, r.ID)
	pos = putString(b, pos, r.Nonce)
	pos = putString(b, pos, r.Origin)

	binary.BigEndian.PutUint64(b[pos:pos+8], r.T)
	pos += 8
	binary.BigEndian.PutUint64(b[pos:pos+8], math.Float64bits(r.X))
	pos += 8
	binary.BigEndian.PutUint64(b[pos:pos+8], math.Float64bits(r.Y))
	pos += 8
	binary.BigEndian.PutUint64(b[pos:pos+8], math.Float64bits(r.Z))
	pos += 8

	binary.BigEndian.PutUint32(b[pos:pos+4], uint32(len(r.Parents)))
	pos += 4
	for _, p := range r.Parents {
		pos = putString(b, pos, p)
	}

	b[pos] = r.Op
	pos++

	pos = putString(b, pos, r.Key)
	pos = putBytes(b, pos, r.Value)
	return pos
}

// getRecord reads one event record and returns the new position
func getRecord(data []byte, pos int, r *common.EventRecord) (int, error) {
	var err error
	if r.ID, pos, err = getString(data, pos); err != nil {
		return pos, fmt.Errorf("id: %w", err)
	}
	if r.Nonce, pos, err = getString(data, pos); err != nil {
		return pos, fmt.Errorf("nonce: %w", err)
	}
	if r.Origin, pos, err = getString(data, pos); err != nil {
		return pos, fmt.Errorf("origin: %w", err)
	}

	if pos+32 > len(data) {
		return pos, fmt.Errorf("data too short for coordinates")
	}
	r.T = binary.BigEndian.Uint64(data[pos : pos+8])
	pos += 8
	r.X = math.Float64frombits(binary.BigEndian.Uint64(data[pos : pos+8]))
	pos += 8
	r.Y = math.Float64frombits(binary.BigEndian.Uint64(data[pos : pos+8]))
	pos += 8
	r.Z = math.Float64frombits(binary.BigEndian.Uint64(data[pos : pos+8]))
	pos += 8

	if pos+4 > len(data) {
		return pos, fmt.Errorf("data too short for parent count")
	}
	parentCount := binary.BigEndian.Uint32(data[pos : pos+4])
	pos += 4
	if int(parentCount) > len(data)/4 {
		return pos, fmt.Errorf("implausible parent count %d", parentCount)
	}
	if parentCount > 0 {
		r.Parents = make([]string, parentCount)
		for i := uint32(0); i < parentCount; i++ {
			if r.Parents[i], pos, err = getString(data, pos); err != nil {
				return pos, fmt.Errorf("parent %d: %w", i, err)
			}
		}
	} else {
		r.Parents = nil
	}

	if pos+1 > len(data) {
		return pos, fmt.Errorf("data too short for op")
	}
	r.Op = data[pos]
	pos++

	if r.Key, pos, err = getString(data, pos); err != nil {
		return pos, fmt.Errorf("key: %w", err)
	}
	if r.Value, pos, err = getBytes(data, pos); err != nil {
		return pos, fmt.Errorf("value: %w", err)
	}
	return pos, nil
}

// recordSize calculates the encoded size of one event record
func recordSize(r *common.EventRecord) int {
	size := minRecordSize
	size += len(r.ID) + len(r.Nonce) + len(r.Origin)
	for _, p := range r.Parents {
		size += 4 + len(p)
	}
	size += len(r.Key) + len(r.Value)
	return size
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// putString writes a length-prefixed string and returns the new position
func putString(b []byte, pos int, s string) int {
	binary.BigEndian.PutUint32(b[pos:pos+4], uint32(len(s)))
	pos += 4
	copy(b[pos:pos+len(s)], s)
	return pos + len(s)
}

// putBytes writes a length-prefixed byte slice and returns the new position
func putBytes(b []byte, pos int, v []byte) int {
	binary.BigEndian.PutUint32(b[pos:pos+4], uint32(len(v)))
	pos += 4
	copy(b[pos:pos+len(v)], v)
	return pos + len(v)
}

// getString reads a length-prefixed string and returns it with the new position
func getString(data []byte, pos int) (string, int, error) {
	if pos+4 > len(data) {
		return "", pos, fmt.Errorf("data too short for length prefix")
	}
	n := binary.BigEndian.Uint32(data[pos : pos+4])
	pos += 4
	if pos+int(n) > len(data) {
		return "", pos, fmt.Errorf("data too short for string of length %d", n)
	}
	return string(data[pos : pos+int(n)]), pos + int(n), nil
}

// getBytes reads a length-prefixed byte slice and returns it with the new position
// The returned slice is a copy, detached from the input buffer.
func getBytes(data []byte, pos int) ([]byte, int, error) {
	if pos+4 > len(data) {
		return nil, pos, fmt.Errorf("data too short for length prefix")
	}
	n := binary.BigEndian.Uint32(data[pos : pos+4])
	pos += 4
	if pos+int(n) > len(data) {
		return nil, pos, fmt.Errorf("data too short for payload of length %d", n)
	}
	out := make([]byte, n)
	copy(out, data[pos:pos+int(n)])
	return out, pos + int(n), nil
}

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	// Add sizes for fields that require length encoding
	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Ok {
		size += 1
	}
	if msg.EventID != "" {
		size += 4 + len(msg.EventID)
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Code > 0 {
		size += 8
	}
	if msg.Events != nil {
		size += 4
		for i := range msg.Events {
			size += recordSize(&msg.Events[i])
		}
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}
