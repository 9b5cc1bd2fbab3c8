// Package buffer provides bounded FIFO ring buffers used to serve
// recent-state queries without touching the persistence layer.
package buffer

import (
	"sync"
)

// Ring is a thread-safe bounded FIFO. When full, the oldest entry is
// evicted before the new one is inserted.
type Ring[T any] struct {
	mu       sync.Mutex
	data     []T
	capacity int
	dropped  uint64
}

// NewRing creates a Ring with the given hard capacity.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		data:     make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends an item, evicting the oldest entry when the buffer is full.
// It reports whether an eviction happened.
func (r *Ring[T]) Push(item T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := false
	if len(r.data) >= r.capacity {
		copy(r.data, r.data[1:])
		r.data = r.data[:len(r.data)-1]
		r.dropped++
		evicted = true
	}
	r.data = append(r.data, item)
	return evicted
}

// Pop removes and returns the oldest item.
// Returns the zero value and false if empty.
func (r *Ring[T]) Pop() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.data) == 0 {
		var zero T
		return zero, false
	}
	item := r.data[0]
	copy(r.data, r.data[1:])
	r.data = r.data[:len(r.data)-1]
	return item, true
}

// Peek returns the oldest item without removing it.
func (r *Ring[T]) Peek() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.data) == 0 {
		var zero T
		return zero, false
	}
	return r.data[0], true
}

// Snapshot returns a copy of the buffer contents, oldest first.
// Readers get a consistent view while writers keep pushing.
func (r *Ring[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, len(r.data))
	copy(out, r.data)
	return out
}

// Len returns the current number of items.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// Cap returns the hard capacity.
func (r *Ring[T]) Cap() int {
	return r.capacity
}

// Dropped returns the number of entries evicted due to overflow.
func (r *Ring[T]) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
