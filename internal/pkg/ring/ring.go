// Package ring provides a fixed-capacity buffer that evicts the oldest entry
// once full.
package ring

// Buffer is not safe for concurrent use; owners guard it with their own lock.
type Buffer[T any] struct {
	items []T
	head  int
	size  int
}

func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

func (b *Buffer[T]) Cap() int { return len(b.items) }
func (b *Buffer[T]) Len() int { return b.size }

// Push appends v, overwriting the oldest entry when the buffer is full.
func (b *Buffer[T]) Push(v T) {
	idx := (b.head + b.size) % len(b.items)
	b.items[idx] = v
	if b.size < len(b.items) {
		b.size++
		return
	}
	b.head = (b.head + 1) % len(b.items)
}

// Slice returns a copy ordered oldest first.
func (b *Buffer[T]) Slice() []T {
	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}

// Last returns a copy of the newest n entries, oldest first.
func (b *Buffer[T]) Last(n int) []T {
	if n <= 0 {
		return nil
	}
	if n > b.size {
		n = b.size
	}
	out := make([]T, n)
	start := b.size - n
	for i := 0; i < n; i++ {
		out[i] = b.items[(b.head+start+i)%len(b.items)]
	}
	return out
}

func (b *Buffer[T]) Reset() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.size = 0
}
