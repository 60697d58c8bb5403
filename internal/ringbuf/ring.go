// Package ringbuf provides a fixed-capacity FIFO ring used for the
// diagnostics history.
package ringbuf

// Ring is a bounded circular buffer. Once full, every Push evicts the oldest
// element. Capacity never changes after New. Ring is not safe for concurrent
// use; the store serialises access.
type Ring[T any] struct {
	slots []T
	head  int    // index of the oldest element
	count int    // live elements
	total uint64 // pushes over the ring's lifetime
}

// New allocates a ring holding at most capacity elements. Capacities below 1
// are raised to 1.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{slots: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when full.
func (r *Ring[T]) Push(v T) {
	r.total++
	if r.count < len(r.slots) {
		r.slots[(r.head+r.count)%len(r.slots)] = v
		r.count++
		return
	}
	r.slots[r.head] = v
	r.head = (r.head + 1) % len(r.slots)
}

// Items returns a copy of the contents, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.slots[(r.head+i)%len(r.slots)]
	}
	return out
}

// Last returns the newest element.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	return r.slots[(r.head+r.count-1)%len(r.slots)], true
}

// Len returns the number of live elements.
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.slots) }

// Total returns the number of pushes since creation, including evicted ones.
func (r *Ring[T]) Total() uint64 { return r.total }
