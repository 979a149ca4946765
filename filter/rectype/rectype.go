// Package rectype provides a filter that passes records whose type name is
// on an allowlist, the complement of the event filter for mixed chains.
package rectype

import (
	"context"
	"encoding/json"

	"github.com/15532th/avtdl/entity"
	"github.com/15532th/avtdl/errors"
	"github.com/15532th/avtdl/record"
)

// ActorName is the actor this plugin registers under.
const ActorName = "filter.type"

// Config holds configuration for the record type filter.
type Config struct {
	// Types lists the allowed record type names (e.g. "TextRecord").
	Types []string `json:"types"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Types) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "types is required")
	}
	return nil
}

// Filter passes records whose TypeName is allowed.
type Filter struct {
	allowed map[string]bool
}

// New creates a record type filter from raw configuration.
func New(rawConfig json.RawMessage, _ entity.Dependencies) (*Filter, error) {
	var cfg Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "rectype", "New", "config parsing")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(cfg.Types))
	for _, name := range cfg.Types {
		allowed[name] = true
	}
	return &Filter{allowed: allowed}, nil
}

// Process passes allowed record types through unchanged.
func (f *Filter) Process(_ context.Context, r record.Record) ([]record.Record, error) {
	if f.allowed[r.TypeName()] {
		return []record.Record{r}, nil
	}
	return nil, nil
}

// Register adds the record type filter factory to the registry.
func Register(registry *entity.Registry) error {
	return registry.RegisterFactory(&entity.Registration{
		Name:        ActorName,
		Category:    entity.CategoryFilter,
		Description: "passes records whose type name is on the allowlist",
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
