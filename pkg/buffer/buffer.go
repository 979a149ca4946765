// Package buffer provides a generic, thread-safe bounded ring buffer with
// FIFO eviction. It backs the per-entity history buffers: writers append
// continuously while readers take consistent snapshots for iteration.
package buffer

import (
	"sync"

	"github.com/15532th/avtdl/errors"
)

// OverflowPolicy defines behavior when the buffer reaches capacity.
type OverflowPolicy int

const (
	// DropOldest evicts the oldest item to make room (default).
	DropOldest OverflowPolicy = iota
	// DropNewest discards the incoming item.
	DropNewest
)

// Ring is a fixed-capacity circular buffer of items of type T.
type Ring[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // oldest item
	policy   OverflowPolicy
	dropped  uint64
	written  uint64
}

// Option configures a Ring.
type Option[T any] func(*Ring[T])

// WithOverflowPolicy sets the overflow policy.
func WithOverflowPolicy[T any](p OverflowPolicy) Option[T] {
	return func(r *Ring[T]) {
		r.policy = p
	}
}

// NewRing creates a ring buffer with the given capacity.
func NewRing[T any](capacity int, opts ...Option[T]) (*Ring[T], error) {
	if capacity <= 0 {
		return nil, errors.WrapInvalid(
			errors.New("capacity must be positive"), "buffer", "NewRing", "capacity validation")
	}
	r := &Ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Write appends an item, applying the overflow policy when full.
func (r *Ring[T]) Write(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == r.capacity {
		switch r.policy {
		case DropOldest:
			r.tail = (r.tail + 1) % r.capacity
			r.size--
			r.dropped++
		case DropNewest:
			r.dropped++
			return
		}
	}

	r.items[r.head] = item
	r.head = (r.head + 1) % r.capacity
	r.size++
	r.written++
}

// Snapshot returns the buffered items oldest first. The returned slice is a
// copy; readers iterate it without holding the buffer's lock.
func (r *Ring[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.tail+i)%r.capacity]
	}
	return out
}

// Size returns the current number of buffered items.
func (r *Ring[T]) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Capacity returns the maximum number of items the buffer holds.
func (r *Ring[T]) Capacity() int {
	return r.capacity
}

// Dropped returns how many items have been evicted or discarded.
func (r *Ring[T]) Dropped() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}

// Written returns how many items have been accepted.
func (r *Ring[T]) Written() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.written
}

// Clear removes all buffered items.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head, r.tail, r.size = 0, 0, 0
}
