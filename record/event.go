package record

import (
	"encoding/json"
	"fmt"
)

// TypeEvent is the TypeName shared by all Event records.
const TypeEvent = "Event"

// Well-known event type classifiers. EventType is free text; these cover the
// lifecycle conditions entities commonly signal.
const (
	EventError    = "error"
	EventStarted  = "started"
	EventFinished = "finished"
)

// Event is a Record subtype signalling lifecycle or error conditions. It has
// exactly two fields: a free-text classifier and human-readable detail. Apart
// from IsEvent it flows through the bus like any other record.
type Event struct {
	EventType string
	Text      string
}

// NewEvent creates an Event with the given classifier and detail text.
func NewEvent(eventType, text string) *Event {
	return &Event{EventType: eventType, Text: text}
}

// Errorf creates an "error" Event from a format string.
func Errorf(format string, args ...any) *Event {
	return &Event{EventType: EventError, Text: fmt.Sprintf(format, args...)}
}

// TypeName returns "Event".
func (e *Event) TypeName() string {
	return TypeEvent
}

// FieldNames returns the two fixed Event fields.
func (e *Event) FieldNames() []string {
	return []string{"event_type", "text"}
}

// Field returns the named field's value.
func (e *Event) Field(name string) (any, bool) {
	switch name {
	case "event_type":
		return e.EventType, true
	case "text":
		return e.Text, true
	default:
		return nil, false
	}
}

// HashKey returns a digest of the named field, or a unique sentinel for
// fields an Event does not have.
func (e *Event) HashKey(field string) string {
	value, ok := e.Field(field)
	if !ok {
		return missingFieldKey(field)
	}
	return fieldDigest(value)
}

// Hash returns the full content hash of the event.
func (e *Event) Hash() string {
	return contentHash(e)
}

// AsJSON renders the event as a JSON object.
func (e *Event) AsJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventType string `json:"event_type"`
		Text      string `json:"text"`
	}{e.EventType, e.Text})
}

// IsEvent reports true.
func (e *Event) IsEvent() bool {
	return true
}

// String renders the event as "[event_type] text".
func (e *Event) String() string {
	return fmt.Sprintf("[%s] %s", e.EventType, e.Text)
}
