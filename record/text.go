package record

import "encoding/json"

// TypeText is the TypeName of TextRecord.
const TypeText = "TextRecord"

// TextRecord carries a single free-form text field. It is the output shape
// of formatting filters and the input shape of most actions.
type TextRecord struct {
	Text string
}

// NewText creates a TextRecord.
func NewText(text string) *TextRecord {
	return &TextRecord{Text: text}
}

// TypeName returns "TextRecord".
func (r *TextRecord) TypeName() string {
	return TypeText
}

// FieldNames returns the single "text" field.
func (r *TextRecord) FieldNames() []string {
	return []string{"text"}
}

// Field returns the named field's value.
func (r *TextRecord) Field(name string) (any, bool) {
	if name == "text" {
		return r.Text, true
	}
	return nil, false
}

// HashKey returns a digest of the named field, or a unique sentinel for
// fields the record does not have.
func (r *TextRecord) HashKey(field string) string {
	value, ok := r.Field(field)
	if !ok {
		return missingFieldKey(field)
	}
	return fieldDigest(value)
}

// Hash returns the full content hash of the record.
func (r *TextRecord) Hash() string {
	return contentHash(r)
}

// AsJSON renders the record as a JSON object.
func (r *TextRecord) AsJSON() ([]byte, error) {
	return json.Marshal(struct {
		Text string `json:"text"`
	}{r.Text})
}

// IsEvent reports false.
func (r *TextRecord) IsEvent() bool {
	return false
}

// String returns the text itself.
func (r *TextRecord) String() string {
	return r.Text
}
