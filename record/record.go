// Package record defines the immutable value types that flow through the
// routing bus: the Record interface, the generic ordered-field implementation,
// plain text records, and the Event subtype used for lifecycle signalling.
//
// Design principles:
//   - Immutable: field sets and values are fixed at construction
//   - Routing-agnostic: records carry no chain or origin information
//   - Content-addressable: Hash and HashKey support deduplication filters
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Record represents an immutable structured value produced and consumed by
// entities. The bus never interprets field semantics; it only moves records
// and exposes the rendering operations below to introspection surfaces.
type Record interface {
	// TypeName identifies the concrete record shape (e.g. "TextRecord").
	TypeName() string

	// FieldNames returns the record's field names in declaration order.
	FieldNames() []string

	// Field returns the named field's value and whether it exists.
	Field(name string) (any, bool)

	// HashKey returns a stable digest of the named field's value for
	// deduplication. A missing field yields a unique sentinel so that
	// heterogeneous record types degrade to "always new" rather than failing.
	HashKey(field string) string

	// Hash returns a content hash over the type name and all fields.
	Hash() string

	// AsJSON renders the record as a JSON object with fields in order.
	AsJSON() ([]byte, error)

	// IsEvent reports whether this record is an Event.
	IsEvent() bool

	// String renders the record for humans.
	fmt.Stringer
}

// digest returns the hex sha256 of the given byte slices concatenated.
func digest(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// fieldDigest hashes a single field value through its JSON encoding.
// Values that cannot be marshalled fall back to their fmt rendering.
func fieldDigest(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", value))
	}
	return digest(data)
}

// missingFieldKey returns a sentinel hash key for a field the record does not
// have. Every call returns a distinct value, so deduplication by that field
// treats the record as never seen before.
func missingFieldKey(field string) string {
	return "missing:" + field + ":" + uuid.NewString()
}

// contentHash computes the canonical content hash for a record: the type name
// plus every field rendered as JSON, in field order.
func contentHash(r Record) string {
	h := sha256.New()
	h.Write([]byte(r.TypeName()))
	for _, name := range r.FieldNames() {
		value, _ := r.Field(name)
		data, err := json.Marshal(value)
		if err != nil {
			data = []byte(fmt.Sprintf("%v", value))
		}
		h.Write([]byte{0})
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))
}
