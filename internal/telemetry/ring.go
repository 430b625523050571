package telemetry

// ring is a fixed-capacity FIFO buffer. The oldest item is overwritten once
// the buffer is full. Callers provide locking.
type ring[T any] struct {
	items []T
	head  int // next write position
	size  int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &ring[T]{items: make([]T, capacity)}
}

// Add appends item, evicting the oldest item when full.
func (r *ring[T]) Add(item T) {
	r.items[r.head] = item
	r.head = (r.head + 1) % len(r.items)
	if r.size < len(r.items) {
		r.size++
	}
}

// Items returns a copy of the buffered items, oldest first.
func (r *ring[T]) Items() []T {
	out := make([]T, 0, r.size)
	start := (r.head - r.size + len(r.items)) % len(r.items)
	for i := 0; i < r.size; i++ {
		out = append(out, r.items[(start+i)%len(r.items)])
	}
	return out
}

// Len returns the number of buffered items.
func (r *ring[T]) Len() int {
	return r.size
}
