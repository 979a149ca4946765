package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Field is a single named value inside a GenericRecord.
type Field struct {
	Name  string
	Value any
}

// GenericRecord is the standard Record implementation: an immutable, ordered
// mapping of named fields to scalar, sequence or nested values, tagged with a
// type name identifying its concrete shape (e.g. "GenericRSSRecord").
//
// GenericRecord is immutable after creation. Constructors copy the field
// slice; accessors never expose internal state for mutation.
type GenericRecord struct {
	typeName string
	fields   []Field
	index    map[string]int
}

// NewGeneric creates a GenericRecord with the given type name and ordered
// fields. Later duplicates of a field name override earlier ones while
// keeping the first occurrence's position.
func NewGeneric(typeName string, fields ...Field) *GenericRecord {
	r := &GenericRecord{
		typeName: typeName,
		fields:   make([]Field, 0, len(fields)),
		index:    make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if i, ok := r.index[f.Name]; ok {
			r.fields[i].Value = f.Value
			continue
		}
		r.index[f.Name] = len(r.fields)
		r.fields = append(r.fields, f)
	}
	return r
}

// TypeName returns the record's shape tag.
func (r *GenericRecord) TypeName() string {
	return r.typeName
}

// FieldNames returns field names in declaration order.
func (r *GenericRecord) FieldNames() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the named field's value.
func (r *GenericRecord) Field(name string) (any, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.fields[i].Value, true
}

// HashKey returns a digest of the named field's value, or a unique sentinel
// if the record has no such field.
func (r *GenericRecord) HashKey(field string) string {
	value, ok := r.Field(field)
	if !ok {
		return missingFieldKey(field)
	}
	return fieldDigest(value)
}

// Hash returns the full content hash of the record.
func (r *GenericRecord) Hash() string {
	return contentHash(r)
}

// AsJSON renders the record as a JSON object preserving field order.
func (r *GenericRecord) AsJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal field %q: %w", f.Name, err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// IsEvent reports false; GenericRecord is never an Event.
func (r *GenericRecord) IsEvent() bool {
	return false
}

// String renders the record as "TypeName{name: value, ...}".
func (r *GenericRecord) String() string {
	var b strings.Builder
	b.WriteString(r.typeName)
	b.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", f.Name, f.Value)
	}
	b.WriteByte('}')
	return b.String()
}
