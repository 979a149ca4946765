// Package file provides an action that appends the text rendering of each
// delivered record to a file, one line per record.
package file

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/15532th/avtdl/entity"
	"github.com/15532th/avtdl/errors"
	"github.com/15532th/avtdl/record"
)

// ActorName is the actor this plugin registers under.
const ActorName = "action.file"

// Config holds configuration for the file action.
type Config struct {
	// Path of the output file. Parent directories are created as needed.
	Path string `json:"path"`

	// AsJSON writes the record's JSON form instead of its text rendering.
	AsJSON bool `json:"as_json"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "path is required")
	}
	return nil
}

// Action appends records to the configured file.
type Action struct {
	config Config
	logger *slog.Logger

	mu   sync.Mutex
	file *os.File
}

// New creates a file action from raw configuration. The file is opened
// lazily on first delivery so that an unreachable path fails the record,
// not the whole configuration load.
func New(rawConfig json.RawMessage, deps entity.Dependencies) (*Action, error) {
	var cfg Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "file", "New", "config parsing")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
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

// Handle appends one line for the record. It emits no records of its own.
func (a *Action) Handle(_ context.Context, r record.Record) ([]record.Record, error) {
	line := r.String()
	if a.config.AsJSON {
		data, err := r.AsJSON()
		if err != nil {
			return nil, errors.WrapInvalid(err, "file", "Handle", "record serialization")
		}
		line = string(data)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.open(); err != nil {
		return nil, err
	}
	if _, err := a.file.WriteString(line + "\n"); err != nil {
		return nil, errors.WrapTransient(err, "file", "Handle", "file write")
	}
	return nil, nil
}

// Close releases the output file. Safe to call when nothing was written.
func (a *Action) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

func (a *Action) open() error {
	if a.file != nil {
		return nil
	}
	if dir := filepath.Dir(a.config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapTransient(err, "file", "open", "directory creation")
		}
	}
	f, err := os.OpenFile(a.config.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.WrapTransient(err, "file", "open", "file open")
	}
	a.file = f
	a.logger.Debug("opened output file", "path", a.config.Path)
	return nil
}

// Register adds the file action factory to the registry.
func Register(registry *entity.Registry) error {
	return registry.RegisterFactory(&entity.Registration{
		Name:        ActorName,
		Category:    entity.CategoryAction,
		Description: "appends delivered records to a file",
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
