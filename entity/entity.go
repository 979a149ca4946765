// Package entity defines the unit of work the routing bus moves records
// between: a named, independently configured instance belonging to one actor
// (plugin), tagged with one of three closed categories. Each category exposes
// exactly one capability interface to the bus:
//
//   - monitor: Poller, invoked by the scheduler to produce fresh records
//   - filter:  Transformer, transforms or drops records in-line
//   - action:  Sink, performs side effects and may emit lifecycle Events
//
// The bus dispatches on the category tag set at construction, never on
// runtime type inspection of the implementation.
package entity

import (
	"context"
	"sync"

	"github.com/15532th/avtdl/errors"
	"github.com/15532th/avtdl/record"
)

// Category identifies which capability interface an entity implements.
type Category string

// The closed set of entity categories.
const (
	CategoryMonitor Category = "monitor"
	CategoryFilter  Category = "filter"
	CategoryAction  Category = "action"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryMonitor, CategoryFilter, CategoryAction:
		return true
	}
	return false
}

// Poller is the capability interface of monitor entities. Poll is invoked on
// the monitor's own schedule; every returned record enters the bus as a fresh
// emission.
type Poller interface {
	Poll(ctx context.Context) ([]record.Record, error)
}

// Transformer is the capability interface of filter entities. Process returns
// zero or more output records; returning none is a silent drop and is the
// filter's own decision, not the bus's.
type Transformer interface {
	Process(ctx context.Context, r record.Record) ([]record.Record, error)
}

// Sink is the capability interface of action entities. Handle performs the
// side effect and returns any records (typically Events) the action emits on
// its own behalf. Whether the unmodified input continues past the action is
// controlled by the entity's ConsumeRecord flag, not by Handle's return.
type Sink interface {
	Handle(ctx context.Context, r record.Record) ([]record.Record, error)
}

// Flags are the bus-visible per-entity switches.
type Flags struct {
	// ConsumeRecord stops the unmodified input record at this action.
	// Action-only; defaults to true in configuration.
	ConsumeRecord bool

	// ResetOrigin re-treats every record this entity emits as freshly
	// originating, broadcasting it to all chains referencing the entity.
	ResetOrigin bool

	// EventPassthrough forwards inbound Events past this action without
	// invoking it. Action-only; defaults to false.
	EventPassthrough bool
}

// Entity is a live, configured instance identified by (actor, name). The
// actor is the hosting plugin (e.g. "filter.match"); the name is unique
// within that actor. Entities live for one configuration generation and are
// destroyed wholesale on reload.
type Entity struct {
	Actor    string
	Name     string
	Category Category
	Flags    Flags

	poller      Poller
	transformer Transformer
	sink        Sink

	// Serializes inbound processing: a given entity instance handles its
	// records one at a time, in arrival order.
	processMu sync.Mutex
}

// NewMonitor creates a monitor entity backed by the given Poller.
func NewMonitor(actor, name string, flags Flags, p Poller) *Entity {
	return &Entity{Actor: actor, Name: name, Category: CategoryMonitor, Flags: flags, poller: p}
}

// NewFilter creates a filter entity backed by the given Transformer.
func NewFilter(actor, name string, flags Flags, t Transformer) *Entity {
	return &Entity{Actor: actor, Name: name, Category: CategoryFilter, Flags: flags, transformer: t}
}

// NewAction creates an action entity backed by the given Sink.
func NewAction(actor, name string, flags Flags, s Sink) *Entity {
	return &Entity{Actor: actor, Name: name, Category: CategoryAction, Flags: flags, sink: s}
}

// Ref returns the "actor/name" identifier used in logs and history entries.
func (e *Entity) Ref() string {
	return e.Actor + "/" + e.Name
}

// Poll invokes the monitor's Poller. Calling Poll on a non-monitor entity is
// a programming error and returns ErrWrongCategory.
func (e *Entity) Poll(ctx context.Context) ([]record.Record, error) {
	if e.Category != CategoryMonitor || e.poller == nil {
		return nil, errors.WrapInvalid(errors.ErrWrongCategory, "Entity", "Poll", e.Ref())
	}
	return e.poller.Poll(ctx)
}

// Process delivers one record to a filter or action entity and returns its
// outputs. Processing is serialized per entity instance: concurrent callers
// queue in arrival order.
func (e *Entity) Process(ctx context.Context, r record.Record) ([]record.Record, error) {
	e.processMu.Lock()
	defer e.processMu.Unlock()

	switch e.Category {
	case CategoryFilter:
		if e.transformer == nil {
			return nil, errors.WrapInvalid(errors.ErrWrongCategory, "Entity", "Process", e.Ref())
		}
		return e.transformer.Process(ctx, r)
	case CategoryAction:
		if e.sink == nil {
			return nil, errors.WrapInvalid(errors.ErrWrongCategory, "Entity", "Process", e.Ref())
		}
		return e.sink.Handle(ctx, r)
	default:
		return nil, errors.WrapInvalid(errors.ErrWrongCategory, "Entity", "Process", e.Ref())
	}
}
