package entity

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/15532th/avtdl/errors"
	"github.com/15532th/avtdl/metric"
	"github.com/15532th/avtdl/tasks"
)

// Dependencies carries the shared collaborators plugin factories may use.
// Factories must not perform I/O; connections are opened when the owning
// process starts the entity's work, not at construction.
type Dependencies struct {
	Logger  *slog.Logger
	Metrics *metric.Registry
	Tasks   *tasks.Registry
}

// Factory creates a configured entity instance. The factory receives the
// entity name, its raw JSON configuration (plugin fields only; bus flags are
// resolved by the loader) and the shared dependencies, parses its own config
// and returns a ready entity.
type Factory func(name string, flags Flags, rawConfig json.RawMessage, deps Dependencies) (*Entity, error)

// Registration holds the factory and metadata for one plugin (actor type).
type Registration struct {
	Name        string   `json:"name"`     // Actor name (e.g. "filter.match")
	Category    Category `json:"category"` // monitor, filter or action
	Description string   `json:"description"`
	Version     string   `json:"version"`
	Factory     Factory  `json:"-"`
}

// Registry manages plugin factories and the live entity instances of one
// configuration generation. Factories are registered once at process start;
// instances are created from configuration and replaced wholesale on reload.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]*Registration
	entities  map[string]*Entity // keyed by Ref()
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]*Registration),
		entities:  make(map[string]*Entity),
	}
}

// RegisterFactory registers a plugin factory under its actor name.
func (r *Registry) RegisterFactory(reg *Registration) error {
	if reg == nil || reg.Name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "registration validation")
	}
	if reg.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "factory function validation")
	}
	if !reg.Category.Valid() {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory",
			fmt.Sprintf("unknown category %q for actor %q", reg.Category, reg.Name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[reg.Name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("factory %q is already registered", reg.Name),
			"Registry", "RegisterFactory", "duplicate factory check")
	}
	r.factories[reg.Name] = reg
	return nil
}

// Factories returns the registered plugin metadata, for discovery surfaces.
func (r *Registry) Factories() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Registration, 0, len(r.factories))
	for _, reg := range r.factories {
		out = append(out, *reg)
	}
	return out
}

// LookupFactory returns the registration for an actor name.
func (r *Registry) LookupFactory(actor string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.factories[actor]
	return reg, ok
}

// Create instantiates an entity through its actor's factory and registers it.
func (r *Registry) Create(actor, name string, flags Flags, rawConfig json.RawMessage, deps Dependencies) (*Entity, error) {
	r.mu.RLock()
	reg, ok := r.factories[actor]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrActorNotFound, "Registry", "Create", actor)
	}

	ent, err := reg.Factory(name, flags, rawConfig, deps)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Registry", "Create", fmt.Sprintf("%s/%s", actor, name))
	}
	if ent.Category != reg.Category {
		return nil, errors.WrapFatal(
			fmt.Errorf("factory %q produced category %q, registered as %q", actor, ent.Category, reg.Category),
			"Registry", "Create", "category check")
	}

	if err := r.Register(ent); err != nil {
		return nil, err
	}
	return ent, nil
}

// Register adds a live entity instance. Entity names must be unique within
// their actor.
func (r *Registry) Register(e *Entity) error {
	if e == nil || e.Actor == "" || e.Name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "entity identity validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[e.Ref()]; exists {
		return errors.WrapInvalid(errors.ErrDuplicateEntity, "Registry", "Register", e.Ref())
	}
	r.entities[e.Ref()] = e
	return nil
}

// Lookup returns the live entity for (actor, name).
func (r *Registry) Lookup(actor, name string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[actor+"/"+name]
	return e, ok
}

// Entities returns all live entity instances.
func (r *Registry) Entities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e)
	}
	return out
}

// Clone returns a registry sharing the factory set but with no instances.
// Reload builds the next generation's entities on a clone and swaps it in as
// a unit.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	next := NewRegistry()
	for name, reg := range r.factories {
		next.factories[name] = reg
	}
	return next
}
