// Package types defines the wire-level data model for the brine codec.
//
// A brine stream is UTF-8 line-delimited JSON. The first line is the head,
// a mapping (or array) of dehydrated values. Every following line is a
// chunk: an array whose first element is a chunk-id and whose remaining
// shape depends on the kind of the deferred leaf the id was allocated for.
package types

import (
	"encoding/json"
	"fmt"
	"math"
)

// Kind discriminates the two deferred-leaf flavors a descriptor can name.
// It is the sole tag distinguishing futures from sequences on the wire;
// consumers must dispatch on it, never on payload shape.
type Kind int

const (
	// KindPromise marks a single-shot deferred value.
	KindPromise Kind = 0
	// KindSequence marks a lazy sequence of values produced over time.
	KindSequence Kind = 1
)

// String returns the kind name for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindPromise:
		return "promise"
	case KindSequence:
		return "sequence"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindPromise || k == KindSequence
}

// Promise chunk statuses. Exactly one promise chunk is emitted per
// promise chunk-id; it is always terminal.
const (
	PromiseFulfilled = 0
	PromiseRejected  = 1
)

// Sequence chunk statuses. Zero or more value chunks are followed by
// exactly one terminal chunk (done or error), unless interrupted.
const (
	SequenceDone  = 0
	SequenceValue = 1
	SequenceError = 2
)

// Placeholder occupies the position of a deferred leaf in a dehydrated
// payload. On the wire it is the literal integer 0; the enclosing
// descriptor list is what marks the position as deferred, so payload
// integers outside a described position are never placeholders.
type Placeholder struct{}

// MarshalJSON encodes the placeholder as the literal 0.
func (Placeholder) MarshalJSON() ([]byte, error) {
	return []byte("0"), nil
}

// keyKind discriminates the three key shapes a descriptor can carry.
type keyKind int

const (
	keyRoot keyKind = iota
	keyIndex
	keyField
)

// Key addresses the position a deferred leaf occupies within a dehydrated
// payload. The zero Key is the root key: the payload itself is the
// placeholder and the hydrated leaf replaces the whole value. On the wire
// the root key is null, an index key is a number, a field key is a string.
type Key struct {
	kind  keyKind
	index int
	field string
}

// RootKey returns the key addressing the payload itself.
func RootKey() Key { return Key{} }

// Index returns a key addressing array position i.
func Index(i int) Key { return Key{kind: keyIndex, index: i} }

// Field returns a key addressing mapping entry name.
func Field(name string) Key { return Key{kind: keyField, field: name} }

// IsRoot reports whether k addresses the whole payload.
func (k Key) IsRoot() bool { return k.kind == keyRoot }

// Index returns the array index and whether k is an index key.
func (k Key) Index() (int, bool) { return k.index, k.kind == keyIndex }

// Field returns the mapping key and whether k is a field key.
func (k Key) Field() (string, bool) { return k.field, k.kind == keyField }

// String renders the key for path and error reporting.
func (k Key) String() string {
	switch k.kind {
	case keyIndex:
		return fmt.Sprintf("[%d]", k.index)
	case keyField:
		return k.field
	default:
		return "<root>"
	}
}

// wire returns the JSON-encodable wire form of the key.
func (k Key) wire() any {
	switch k.kind {
	case keyIndex:
		return k.index
	case keyField:
		return k.field
	default:
		return nil
	}
}

// MarshalJSON encodes the key as null, number, or string.
func (k Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.wire())
}

// parseKey decodes a wire key: nil, float64 (JSON number), or string.
func parseKey(v any) (Key, error) {
	switch kv := v.(type) {
	case nil:
		return RootKey(), nil
	case string:
		return Field(kv), nil
	case float64:
		i, ok := asInt(kv)
		if !ok || i < 0 {
			return Key{}, fmt.Errorf("descriptor key %v is not a valid index", kv)
		}
		return Index(int(i)), nil
	default:
		return Key{}, fmt.Errorf("descriptor key has unsupported type %T", v)
	}
}

// Descriptor names one deferred leaf within a dehydrated value: the
// position it occupies, its kind, and the chunk-id its resolutions will
// arrive under. Descriptors are self-contained; nothing beyond the id
// refers across chunks.
type Descriptor struct {
	Key  Key
	Kind Kind
	ID   int64
}

// MarshalJSON encodes the descriptor as the triple [key, kind, id].
func (d Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{d.Key.wire(), int(d.Kind), d.ID})
}

// Dehydrated is the two-part wire record for a value whose deferred
// leaves have been replaced with placeholders: the payload, plus zero or
// more descriptors locating the replaced leaves.
//
// Wire shape: [[payload], [key, kind, id]...]. The payload is wrapped in
// a single-element array so that a bare placeholder payload is
// unambiguous.
type Dehydrated struct {
	Payload any
	Refs    []Descriptor
}

// MarshalJSON encodes the dehydrated value in its wire shape.
func (d *Dehydrated) MarshalJSON() ([]byte, error) {
	parts := make([]any, 0, 1+len(d.Refs))
	parts = append(parts, [1]any{d.Payload})
	for _, ref := range d.Refs {
		parts = append(parts, ref)
	}
	return json.Marshal(parts)
}

// ParseDehydrated decodes a dehydrated value from its already-JSON-decoded
// wire form. The payload is returned as decoded (maps, slices, float64s);
// placeholder positions are identified by the descriptors, not rewritten.
func ParseDehydrated(v any) (*Dehydrated, error) {
	parts, ok := v.([]any)
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("dehydrated value must be a non-empty array, got %T", v)
	}

	wrapper, ok := parts[0].([]any)
	if !ok || len(wrapper) != 1 {
		return nil, fmt.Errorf("dehydrated payload must be a single-element array")
	}

	d := &Dehydrated{Payload: wrapper[0]}
	for _, raw := range parts[1:] {
		ref, err := parseDescriptor(raw)
		if err != nil {
			return nil, err
		}
		d.Refs = append(d.Refs, ref)
	}
	return d, nil
}

// parseDescriptor decodes a [key, kind, id] triple.
func parseDescriptor(v any) (Descriptor, error) {
	triple, ok := v.([]any)
	if !ok || len(triple) != 3 {
		return Descriptor{}, fmt.Errorf("descriptor must be a [key, kind, id] triple, got %v", v)
	}

	key, err := parseKey(triple[0])
	if err != nil {
		return Descriptor{}, err
	}

	kindNum, ok := triple[1].(float64)
	if !ok {
		return Descriptor{}, fmt.Errorf("descriptor kind must be a number, got %T", triple[1])
	}
	kindInt, ok := asInt(kindNum)
	if !ok {
		return Descriptor{}, fmt.Errorf("descriptor kind %v is not an integer", kindNum)
	}
	kind := Kind(kindInt)
	if !kind.Valid() {
		return Descriptor{}, fmt.Errorf("unknown descriptor kind %d", kindInt)
	}

	idNum, ok := triple[2].(float64)
	if !ok {
		return Descriptor{}, fmt.Errorf("descriptor id must be a number, got %T", triple[2])
	}
	id, ok := asInt(idNum)
	if !ok || id < 0 {
		return Descriptor{}, fmt.Errorf("descriptor id %v is not a non-negative integer", idNum)
	}

	return Descriptor{Key: key, Kind: kind, ID: id}, nil
}

// Chunk is one post-head line: an event on one chunk-id. Status meaning
// depends on the kind the receiver associated with the id; the line
// itself does not repeat the kind.
type Chunk struct {
	ID      int64
	Status  int
	Payload any
	// HasPayload distinguishes [id, status] from [id, status, null].
	HasPayload bool
}

// MarshalJSON encodes the chunk as [id, status] or [id, status, payload].
func (c *Chunk) MarshalJSON() ([]byte, error) {
	if c.HasPayload {
		return json.Marshal([]any{c.ID, c.Status, c.Payload})
	}
	return json.Marshal([]any{c.ID, c.Status})
}

// ParseChunk decodes a chunk line from its already-JSON-decoded form.
func ParseChunk(v any) (*Chunk, error) {
	parts, ok := v.([]any)
	if !ok || len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("chunk must be [id, status, payload?], got %v", v)
	}

	idNum, ok := parts[0].(float64)
	if !ok {
		return nil, fmt.Errorf("chunk id must be a number, got %T", parts[0])
	}
	id, ok := asInt(idNum)
	if !ok || id < 0 {
		return nil, fmt.Errorf("chunk id %v is not a non-negative integer", idNum)
	}

	statusNum, ok := parts[1].(float64)
	if !ok {
		return nil, fmt.Errorf("chunk status must be a number, got %T", parts[1])
	}
	status, ok := asInt(statusNum)
	if !ok {
		return nil, fmt.Errorf("chunk status %v is not an integer", statusNum)
	}

	chunk := &Chunk{ID: id, Status: int(status)}
	if len(parts) == 3 {
		chunk.Payload = parts[2]
		chunk.HasPayload = true
	}
	return chunk, nil
}

// asInt converts a float64 decoded from JSON to an exact int64.
func asInt(f float64) (int64, bool) {
	if math.Trunc(f) != f || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return int64(f), true
}
