package window

import (
	"fmt"

	"github.com/snow-ghost/eaknn/core"
)

// Buffer is a bounded FIFO of the most recent labeled examples.
// Adding to a full buffer evicts the oldest example.
type Buffer struct {
	items     []core.Example
	head      int // index of the oldest example
	size      int
	evictions int64
}

// New creates a buffer holding at most limit examples.
func New(limit int) (*Buffer, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: window limit must be >= 1, got %d", core.ErrInvalidConfig, limit)
	}
	return &Buffer{items: make([]core.Example, limit)}, nil
}

// Add appends e and returns the evicted example when the buffer was full.
func (b *Buffer) Add(e core.Example) (core.Example, bool) {
	limit := len(b.items)
	if b.size < limit {
		b.items[(b.head+b.size)%limit] = e
		b.size++
		return core.Example{}, false
	}

	evicted := b.items[b.head]
	b.items[b.head] = e
	b.head = (b.head + 1) % limit
	b.evictions++
	return evicted, true
}

// Snapshot returns deep copies of the resident examples, oldest first.
func (b *Buffer) Snapshot() []core.Example {
	out := make([]core.Example, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.head+i)%len(b.items)].Clone()
	}
	return out
}

// Oldest returns the example that the next overflow would evict.
func (b *Buffer) Oldest() (core.Example, bool) {
	if b.size == 0 {
		return core.Example{}, false
	}
	return b.items[b.head], true
}

func (b *Buffer) Len() int { return b.size }

func (b *Buffer) Cap() int { return len(b.items) }

func (b *Buffer) Full() bool { return b.size == len(b.items) }

// Evictions returns how many examples have been dropped since creation or Reset.
func (b *Buffer) Evictions() int64 { return b.evictions }

// Reset empties the buffer without changing its capacity.
func (b *Buffer) Reset() {
	for i := range b.items {
		b.items[i] = core.Example{}
	}
	b.head, b.size, b.evictions = 0, 0, 0
}
