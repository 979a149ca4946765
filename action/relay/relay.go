// Package relay provides an action that publishes the JSON form of each
// delivered record to a NATS subject, bridging chains into external
// consumers.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/15532th/avtdl/entity"
	"github.com/15532th/avtdl/errors"
	"github.com/15532th/avtdl/record"
)

// ActorName is the actor this plugin registers under.
const ActorName = "action.relay"

// Config holds configuration for the relay action.
type Config struct {
	// URL of the NATS server. Defaults to the standard local URL.
	URL string `json:"url"`

	// Subject to publish records to.
	Subject string `json:"subject"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Subject == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "subject is required")
	}
	return nil
}

// Action publishes records to NATS.
type Action struct {
	config Config
	logger *slog.Logger

	mu   sync.Mutex
	conn *nats.Conn
}

// New creates a relay action from raw configuration. The connection is
// established lazily on first delivery and reconnects are left to the
// client library.
func New(rawConfig json.RawMessage, deps entity.Dependencies) (*Action, error) {
	var cfg Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "relay", "New", "config parsing")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Action{
		config: cfg,
		logger: logger.With("component", ActorName),
	}, nil
}

// Handle publishes the record's JSON form. It emits no records of its own.
func (a *Action) Handle(_ context.Context, r record.Record) ([]record.Record, error) {
	data, err := r.AsJSON()
	if err != nil {
		return nil, errors.WrapInvalid(err, "relay", "Handle", "record serialization")
	}

	conn, err := a.connect()
	if err != nil {
		return nil, err
	}
	if err := conn.Publish(a.config.Subject, data); err != nil {
		return nil, errors.WrapTransient(err, "relay", "Handle", "publishing to "+a.config.Subject)
	}
	return nil, nil
}

// Close drains the connection so buffered publishes reach the server.
func (a *Action) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return nil
	}
	err := a.conn.Drain()
	a.conn = nil
	return err
}

func (a *Action) connect() (*nats.Conn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn != nil && a.conn.IsConnected() {
		return a.conn, nil
	}
	conn, err := nats.Connect(a.config.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, errors.WrapTransient(err, "relay", "connect", "connecting to "+a.config.URL)
	}
	a.conn = conn
	a.logger.Info("connected to NATS", "url", a.config.URL, "subject", a.config.Subject)
	return conn, nil
}

// Register adds the relay action factory to the registry.
func Register(registry *entity.Registry) error {
	return registry.RegisterFactory(&entity.Registration{
		Name:        ActorName,
		Category:    entity.CategoryAction,
		Description: "publishes delivered records to a NATS subject",
		Version:     "1.0.0",
		Factory: func(name string, flags entity.Flags, rawConfig json.RawMessage, deps entity.Dependencies) (*entity.Entity, error) {
			a, err := New(rawConfig, deps)
			if err != nil {
				return nil, err
			}
			return entity.NewAction(ActorName, name, flags, a), nil
		},
	})
}
