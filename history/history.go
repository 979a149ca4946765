// Package history keeps bounded per-entity buffers of recently delivered
// records for the management layer. Entries are purely observational and
// never influence routing.
package history

import (
	"sync"
	"time"

	"github.com/15532th/avtdl/pkg/buffer"
	"github.com/15532th/avtdl/record"
)

// DefaultCapacity bounds each entity's buffer unless configured otherwise.
const DefaultCapacity = 50

// Entry is one observed delivery.
type Entry struct {
	Timestamp time.Time     `json:"timestamp"`
	Source    string        `json:"source"` // "actor/name" of the emitting entity
	Chain     string        `json:"chain"`
	Record    record.Record `json:"-"`
}

// Store holds one bounded FIFO buffer per target entity. Buffers survive
// configuration reloads so that reloading an unchanged graph leaves history
// untouched; buffers of removed entities are pruned via Retain.
type Store struct {
	mu       sync.RWMutex
	capacity int
	buffers  map[string]*buffer.Ring[Entry] // keyed by target "actor/name"
}

// NewStore creates a store with the given per-entity capacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		buffers:  make(map[string]*buffer.Ring[Entry]),
	}
}

// RecordDelivery appends an entry to the target entity's buffer, evicting the
// oldest entry when full.
func (s *Store) RecordDelivery(targetActor, targetEntity, source, chain string, rec record.Record) {
	key := targetActor + "/" + targetEntity

	s.mu.Lock()
	ring, ok := s.buffers[key]
	if !ok {
		// Capacity is validated in NewStore; NewRing cannot fail here.
		ring, _ = buffer.NewRing[Entry](s.capacity)
		s.buffers[key] = ring
	}
	s.mu.Unlock()

	ring.Write(Entry{
		Timestamp: time.Now(),
		Source:    source,
		Chain:     chain,
		Record:    rec,
	})
}

// Query returns the entity's recent entries oldest first, optionally filtered
// by chain. A missing buffer yields an empty result.
func (s *Store) Query(actor, entity, chain string) []Entry {
	s.mu.RLock()
	ring, ok := s.buffers[actor+"/"+entity]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	entries := ring.Snapshot()
	if chain == "" {
		return entries
	}

	out := entries[:0]
	for _, e := range entries {
		if e.Chain == chain {
			out = append(out, e)
		}
	}
	return out
}

// Retain prunes buffers whose entity no longer exists after a reload.
func (s *Store) Retain(valid func(ref string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.buffers {
		if !valid(key) {
			delete(s.buffers, key)
		}
	}
}

// Entities returns the refs that currently have history, for discovery.
func (s *Store) Entities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.buffers))
	for key := range s.buffers {
		out = append(out, key)
	}
	return out
}
