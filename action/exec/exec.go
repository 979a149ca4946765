// Package exec provides an action that runs an external command for each
// delivered record. Command arguments are text templates rendered against
// the record's fields, so a chain can hand records to downloaders or
// notification scripts without a dedicated plugin for each.
package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"text/template"

	"github.com/15532th/avtdl/entity"
	"github.com/15532th/avtdl/errors"
	"github.com/15532th/avtdl/record"
	"github.com/15532th/avtdl/tasks"
)

// ActorName is the actor this plugin registers under.
const ActorName = "action.exec"

// Config holds configuration for the exec action.
type Config struct {
	// Command is the program to run.
	Command string `json:"command"`

	// Args are template bodies rendered against the record's fields before
	// being passed as arguments, one per argument.
	Args []string `json:"args"`

	// WorkingDir sets the working directory of the command.
	WorkingDir string `json:"working_dir"`

	// ReportStarted emits a "started" Event when the command is launched.
	ReportStarted bool `json:"report_started"`

	// ReportFinished emits a "finished" Event when the command exits
	// successfully.
	ReportFinished bool `json:"report_finished"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Command == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "command is required")
	}
	return nil
}

// Action runs the configured command per record.
type Action struct {
	config Config
	args   []*template.Template
	logger *slog.Logger
	tasks  *tasks.Registry
	name   string
}

// New creates an exec action from raw configuration. Argument templates
// are parsed once here.
func New(name string, rawConfig json.RawMessage, deps entity.Dependencies) (*Action, error) {
	var cfg Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "exec", "New", "config parsing")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	args := make([]*template.Template, 0, len(cfg.Args))
	for i, body := range cfg.Args {
		tmpl, err := template.New(cfg.Command).Parse(body)
		if err != nil {
			return nil, errors.WrapInvalid(err, "exec", "New",
				fmt.Sprintf("argument %d template parsing", i))
		}
		args = append(args, tmpl)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Action{
		config: cfg,
		args:   args,
		logger: logger.With("component", ActorName),
		tasks:  deps.Tasks,
		name:   name,
	}, nil
}

// Handle runs the command for one record, blocking until it exits. The run
// is tracked as a task for the duration; the optional lifecycle Events it
// returns are emitted by the caller as the action's own records.
func (a *Action) Handle(ctx context.Context, r record.Record) ([]record.Record, error) {
	args, err := a.renderArgs(r)
	if err != nil {
		return nil, err
	}
	descriptor := a.config.Command + " " + strings.Join(args, " ")

	var out []record.Record
	if a.config.ReportStarted {
		out = append(out, record.NewEvent(record.EventStarted, descriptor))
	}

	var taskID string
	if a.tasks != nil {
		taskID = a.tasks.Started(ActorName, a.name, descriptor)
		defer a.tasks.Finished(taskID)
	}

	cmd := exec.CommandContext(ctx, a.config.Command, args...)
	cmd.Dir = a.config.WorkingDir
	a.logger.Debug("running command", "command", descriptor)

	if runErr := cmd.Run(); runErr != nil {
		return out, errors.WrapTransient(runErr, "exec", "Handle", "running "+descriptor)
	}

	if a.config.ReportFinished {
		out = append(out, record.NewEvent(record.EventFinished, descriptor))
	}
	return out, nil
}

func (a *Action) renderArgs(r record.Record) ([]string, error) {
	data := make(map[string]any, len(r.FieldNames()))
	for _, name := range r.FieldNames() {
		if value, ok := r.Field(name); ok {
			data[name] = value
		}
	}

	args := make([]string, 0, len(a.args))
	for _, tmpl := range a.args {
		var buf strings.Builder
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, errors.WrapInvalid(err, "exec", "renderArgs", "argument rendering")
		}
		args = append(args, buf.String())
	}
	return args, nil
}

// Register adds the exec action factory to the registry.
func Register(registry *entity.Registry) error {
	return registry.RegisterFactory(&entity.Registration{
		Name:        ActorName,
		Category:    entity.CategoryAction,
		Description: "runs an external command for each delivered record",
		Version:     "1.0.0",
		Factory: func(name string, flags entity.Flags, rawConfig json.RawMessage, deps entity.Dependencies) (*entity.Entity, error) {
			a, err := New(name, rawConfig, deps)
			if err != nil {
				return nil, err
			}
			return entity.NewAction(ActorName, name, flags, a), nil
		},
	})
}
