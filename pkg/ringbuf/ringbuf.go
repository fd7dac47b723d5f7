// Package ringbuf provides a fixed-capacity FIFO history buffer.
// Every history-keeping Plainview module (telemetry samples, anomalies,
// leaks, detections, command records) stores its records in a Ring.
package ringbuf

import "sync"

// Ring is a bounded FIFO buffer of the most recent Cap() items.
// Pushing beyond capacity evicts the oldest item. All methods are safe
// for concurrent use; pushes from multiple producers are serialized.
type Ring[T any] struct {
	mu    sync.Mutex
	items []T
	head  int // index of the oldest item
	size  int
}

// New creates a ring with the given capacity. Panics if capacity < 1;
// capacities are fixed per use site at construction.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		panic("ringbuf: capacity must be >= 1")
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends an item, evicting the oldest when the ring is full.
// The evicted item, if any, is returned so callers keeping a secondary
// index can drop it.
func (r *Ring[T]) Push(item T) (evicted T, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size < len(r.items) {
		r.items[(r.head+r.size)%len(r.items)] = item
		r.size++
		return evicted, false
	}
	evicted = r.items[r.head]
	r.items[r.head] = item
	r.head = (r.head + 1) % len(r.items)
	return evicted, true
}

// Len returns the number of stored items.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.items)
}

// Snapshot returns all stored items, oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyLocked(r.size)
}

// Tail returns the most recent n items, oldest first. If fewer than n
// items are stored, all of them are returned.
func (r *Ring[T]) Tail(n int) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > r.size {
		n = r.size
	}
	return r.copyLocked(n)
}

// Filter returns the stored items matching pred, oldest first.
func (r *Ring[T]) Filter(pred func(T) bool) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, 0, r.size)
	for i := 0; i < r.size; i++ {
		item := r.items[(r.head+i)%len(r.items)]
		if pred(item) {
			out = append(out, item)
		}
	}
	return out
}

// Last returns the most recent item, or the zero value and false when empty.
func (r *Ring[T]) Last() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size == 0 {
		var zero T
		return zero, false
	}
	return r.items[(r.head+r.size-1)%len(r.items)], true
}

// copyLocked copies the newest n items in oldest-first order.
// Caller must hold r.mu.
func (r *Ring[T]) copyLocked(n int) []T {
	out := make([]T, n)
	start := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.items[(r.head+start+i)%len(r.items)]
	}
	return out
}
