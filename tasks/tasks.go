// Package tasks tracks in-flight long-running operations per actor, such as
// an action's active subprocess, for the management layer's task queries.
// Entries are purely observational: they never influence routing, and they
// are dropped (orphaned) when a configuration reload replaces the entities
// that reported them.
package tasks

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task describes one in-flight operation.
type Task struct {
	ID         string    `json:"id"`
	Actor      string    `json:"actor"`
	Entity     string    `json:"entity"`
	Descriptor string    `json:"descriptor"` // e.g. the command line being executed
	StartedAt  time.Time `json:"started_at"`
}

// Registry is a live set of in-flight tasks with concurrent append/read.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]Task)}
}

// Started records a new in-flight operation and returns its ID.
func (r *Registry) Started(actor, entity, descriptor string) string {
	t := Task{
		ID:         uuid.NewString(),
		Actor:      actor,
		Entity:     entity,
		Descriptor: descriptor,
		StartedAt:  time.Now(),
	}

	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()
	return t.ID
}

// Finished removes a completed operation. Unknown IDs are ignored: the entry
// may already have been orphaned by a reload.
func (r *Registry) Finished(id string) {
	r.mu.Lock()
	delete(r.tasks, id)
	r.mu.Unlock()
}

// Query returns in-flight tasks, optionally restricted to one actor, oldest
// first.
func (r *Registry) Query(actor string) []Task {
	r.mu.RLock()
	out := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if actor != "" && t.Actor != actor {
			continue
		}
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Len returns the number of in-flight tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Clear drops all entries. Called on configuration reload: tasks reported by
// entities of the old generation have no owner afterwards.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.tasks = make(map[string]Task)
	r.mu.Unlock()
}
