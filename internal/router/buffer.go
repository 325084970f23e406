package router

import "sync"

// EventBuffer is the hand-off queue between the routing goroutine and a
// writer. The stream read path must never stall behind a slow database
// flush, so instead of blocking the producer the ring doubles its backing
// array once it fills past 70%. Growth is counted in the stats so the
// health endpoint can spot a writer that is falling behind.
type EventBuffer[T any] struct {
	mu     sync.Mutex
	ring   []T
	read   int // index of the oldest queued item
	size   int
	closed bool

	pushed  int64
	drained int64
	grows   int
}

// NewEventBuffer creates a buffer with the given initial capacity.
func NewEventBuffer[T any](capacity int) *EventBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &EventBuffer[T]{ring: make([]T, capacity)}
}

// Push enqueues one item, growing the ring first if this push would fill
// it past the growth threshold. Returns false once the buffer is closed.
func (b *EventBuffer[T]) Push(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	if b.size+1 >= b.growThreshold() {
		b.grow()
	}

	b.ring[(b.read+b.size)%len(b.ring)] = item
	b.size++
	b.pushed++
	return true
}

// Drain removes up to max queued items without blocking; max <= 0 takes
// everything. The second result turns false once the buffer is closed and
// empty, which is the consumer's signal to exit.
func (b *EventBuffer[T]) Drain(max int) ([]T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return nil, !b.closed
	}

	n := b.size
	if max > 0 && max < n {
		n = max
	}

	out := make([]T, n)
	var zero T
	for i := range out {
		out[i] = b.ring[b.read]
		b.ring[b.read] = zero // drop the reference for GC
		b.read = (b.read + 1) % len(b.ring)
	}
	b.size -= n
	b.drained += int64(n)
	return out, true
}

// Close rejects further pushes. Items already queued stay drainable.
func (b *EventBuffer[T]) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

// Len returns the number of queued items.
func (b *EventBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Stats returns a point-in-time snapshot of the buffer counters.
func (b *EventBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Depth:    b.size,
		Capacity: len(b.ring),
		Pushed:   b.pushed,
		Drained:  b.drained,
		Grows:    b.grows,
	}
}

// BufferStats is a snapshot of an EventBuffer's counters.
type BufferStats struct {
	Depth    int
	Capacity int
	Pushed   int64
	Drained  int64
	Grows    int
}

// growThreshold is 70% of the current capacity, never below one.
func (b *EventBuffer[T]) growThreshold() int {
	t := len(b.ring) * 7 / 10
	if t < 1 {
		t = 1
	}
	return t
}

// grow doubles the ring, unwrapping queued items to the front. Caller
// must hold b.mu.
func (b *EventBuffer[T]) grow() {
	next := make([]T, len(b.ring)*2)
	for i := 0; i < b.size; i++ {
		next[i] = b.ring[(b.read+i)%len(b.ring)]
	}
	b.ring = next
	b.read = 0
	b.grows++
}
