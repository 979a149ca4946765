// Package event provides a filter that passes only Event records, optionally
// restricted to specific event types. Placed after an entity, it routes that
// entity's lifecycle and error signals to notification chains.
package event

import (
	"context"
	"encoding/json"

	"github.com/15532th/avtdl/entity"
	"github.com/15532th/avtdl/errors"
	"github.com/15532th/avtdl/record"
)

// ActorName is the actor this plugin registers under.
const ActorName = "filter.event"

// Config holds configuration for the event filter.
type Config struct {
	// Types restricts matching to these event_type values; empty passes
	// every Event.
	Types []string `json:"types"`
}

// Filter passes Event records matching the configured types.
type Filter struct {
	config Config
}

// New creates an event filter from raw configuration.
func New(rawConfig json.RawMessage, _ entity.Dependencies) (*Filter, error) {
	var cfg Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "event", "New", "config parsing")
		}
	}
	return &Filter{config: cfg}, nil
}

// Process passes Events through unchanged and drops everything else.
func (f *Filter) Process(_ context.Context, r record.Record) ([]record.Record, error) {
	if !r.IsEvent() {
		return nil, nil
	}
	if len(f.config.Types) == 0 {
		return []record.Record{r}, nil
	}

	eventType, _ := r.Field("event_type")
	for _, want := range f.config.Types {
		if eventType == want {
			return []record.Record{r}, nil
		}
	}
	return nil, nil
}

// Register adds the event filter factory to the registry.
func Register(registry *entity.Registry) error {
	return registry.RegisterFactory(&entity.Registration{
		Name:        ActorName,
		Category:    entity.CategoryFilter,
		Description: "passes only Event records, optionally by event type",
		Version:     "1.0.0",
		Factory: func(name string, flags entity.Flags, rawConfig json.RawMessage, deps entity.Dependencies) (*entity.Entity, error) {
			f, err := New(rawConfig, deps)
			if err != nil {
				return nil, err
			}
			return entity.NewFilter(ActorName, name, flags, f), nil
		},
	})
}
