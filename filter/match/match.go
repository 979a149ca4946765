// Package match provides a filter that passes records containing any of the
// configured keywords in a chosen field, with an optional exclusion list.
package match

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/15532th/avtdl/entity"
	"github.com/15532th/avtdl/errors"
	"github.com/15532th/avtdl/record"
)

// ActorName is the actor this plugin registers under.
const ActorName = "filter.match"

// Config holds configuration for the keyword filter.
type Config struct {
	// Field to match against; empty matches the record's text rendering.
	Field string `json:"field"`

	// Keywords passes the record when any substring matches.
	Keywords []string `json:"keywords"`

	// Exclude drops the record when any substring matches, even if a
	// keyword also matched.
	Exclude []string `json:"exclude"`

	// CaseSensitive disables the default case folding.
	CaseSensitive bool `json:"case_sensitive"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Keywords) == 0 && len(c.Exclude) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"at least one of keywords or exclude is required")
	}
	return nil
}

// Filter passes records matching the keyword rules.
type Filter struct {
	config Config
}

// New creates a keyword filter from raw configuration.
func New(rawConfig json.RawMessage, _ entity.Dependencies) (*Filter, error) {
	var cfg Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "match", "New", "config parsing")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Filter{config: cfg}, nil
}

// Process passes the record through unchanged when it matches, or drops it.
func (f *Filter) Process(_ context.Context, r record.Record) ([]record.Record, error) {
	subject := r.String()
	if f.config.Field != "" {
		value, ok := r.Field(f.config.Field)
		if !ok {
			// Records without the field never match.
			return nil, nil
		}
		subject = fmt.Sprintf("%v", value)
	}

	fold := func(s string) string {
		if f.config.CaseSensitive {
			return s
		}
		return strings.ToLower(s)
	}
	subject = fold(subject)

	for _, word := range f.config.Exclude {
		if strings.Contains(subject, fold(word)) {
			return nil, nil
		}
	}

	if len(f.config.Keywords) == 0 {
		// Exclusion-only configuration passes everything not excluded.
		return []record.Record{r}, nil
	}
	for _, word := range f.config.Keywords {
		if strings.Contains(subject, fold(word)) {
			return []record.Record{r}, nil
		}
	}
	return nil, nil
}

// Register adds the keyword filter factory to the registry.
func Register(registry *entity.Registry) error {
	return registry.RegisterFactory(&entity.Registration{
		Name:        ActorName,
		Category:    entity.CategoryFilter,
		Description: "passes records containing configured keywords",
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
