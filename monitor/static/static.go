// Package static provides a monitor that emits a fixed set of text records
// on every poll. It is the reference monitor implementation and the fixture
// the end-to-end tests drive chains with; real scrapers live outside the
// core and implement the same Poller interface.
package static

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/15532th/avtdl/entity"
	"github.com/15532th/avtdl/errors"
	"github.com/15532th/avtdl/record"
)

// ActorName is the actor this plugin registers under.
const ActorName = "monitor.static"

// Config holds configuration for the static monitor.
type Config struct {
	// Records to emit on each poll, in order.
	Records []string `json:"records"`

	// Once limits the monitor to emitting on its first poll only.
	Once bool `json:"once"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Records) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "records is required")
	}
	return nil
}

// Monitor emits the configured records on every poll.
type Monitor struct {
	config Config
	logger *slog.Logger
	polled bool
}

// New creates a static monitor from raw configuration.
func New(rawConfig json.RawMessage, deps entity.Dependencies) (*Monitor, error) {
	var cfg Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "static", "New", "config parsing")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		config: cfg,
		logger: logger.With("component", ActorName),
	}, nil
}

// Poll emits the configured records.
func (m *Monitor) Poll(ctx context.Context) ([]record.Record, error) {
	if m.config.Once && m.polled {
		return nil, nil
	}
	m.polled = true

	out := make([]record.Record, 0, len(m.config.Records))
	for _, text := range m.config.Records {
		out = append(out, record.NewText(text))
	}
	m.logger.Debug("emitting records", "count", len(out))
	return out, nil
}

// Register adds the static monitor factory to the registry.
func Register(registry *entity.Registry) error {
	return registry.RegisterFactory(&entity.Registration{
		Name:        ActorName,
		Category:    entity.CategoryMonitor,
		Description: "emits a fixed set of text records on every poll",
		Version:     "1.0.0",
		Factory: func(name string, flags entity.Flags, rawConfig json.RawMessage, deps entity.Dependencies) (*entity.Entity, error) {
			m, err := New(rawConfig, deps)
			if err != nil {
				return nil, err
			}
			return entity.NewMonitor(ActorName, name, flags, m), nil
		},
	})
}
