// Package format provides a filter that renders each record through a
// text/template into a new text record. It is the usual last filter before
// an action that writes records somewhere humans read them.
package format

import (
	"context"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/15532th/avtdl/entity"
	"github.com/15532th/avtdl/errors"
	"github.com/15532th/avtdl/record"
)

// ActorName is the actor this plugin registers under.
const ActorName = "filter.format"

// Config holds configuration for the format filter.
type Config struct {
	// Template is a text/template body. Record fields are available as
	// {{.field_name}}; missing fields render as "<no value>".
	Template string `json:"template"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Template == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "template is required")
	}
	return nil
}

// Filter renders records through the configured template.
type Filter struct {
	tmpl *template.Template
}

// New creates a format filter from raw configuration. The template is
// parsed once here so malformed templates fail at build time, not per
// record.
func New(rawConfig json.RawMessage, _ entity.Dependencies) (*Filter, error) {
	var cfg Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "format", "New", "config parsing")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tmpl, err := template.New(ActorName).Parse(cfg.Template)
	if err != nil {
		return nil, errors.WrapInvalid(err, "format", "New", "template parsing")
	}
	return &Filter{tmpl: tmpl}, nil
}

// Process renders the record into a single text record.
func (f *Filter) Process(_ context.Context, r record.Record) ([]record.Record, error) {
	data := make(map[string]any, len(r.FieldNames()))
	for _, name := range r.FieldNames() {
		if value, ok := r.Field(name); ok {
			data[name] = value
		}
	}

	var out strings.Builder
	if err := f.tmpl.Execute(&out, data); err != nil {
		return nil, errors.WrapInvalid(err, "format", "Process", "template rendering")
	}
	return []record.Record{record.NewText(out.String())}, nil
}

// Register adds the format filter factory to the registry.
func Register(registry *entity.Registry) error {
	return registry.RegisterFactory(&entity.Registration{
		Name:        ActorName,
		Category:    entity.CategoryFilter,
		Description: "renders records through a text template",
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
