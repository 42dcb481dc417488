package input

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueClosed is returned by Take once the queue is closed and drained.
var ErrQueueClosed = errors.New("input: queue closed")

// DefaultQueueCapacity bounds hand-off queues when no capacity is given.
const DefaultQueueCapacity = 64

// Queue is a bounded, thread-safe FIFO hand-off between a producer goroutine
// and a non-blocking poll.
//
// When full, Offer evicts the oldest item so the freshest data always fits;
// evictions are counted and exposed through Dropped.
//
// The queue uses a channel for signaling so Take can wait on the context, a
// timer and new data at once.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	dropped  uint64
	closed   bool
	signal   chan struct{} // signals item availability (buffered, size 1)
}

// NewQueue creates an empty queue holding at most capacity items.
// A non-positive capacity falls back to DefaultQueueCapacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
}

// Offer appends an item, evicting the oldest one when the queue is full.
// Safe from any goroutine, including native callbacks. Returns false if the
// queue is closed.
func (q *Queue[T]) Offer(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	if len(q.items) >= q.capacity {
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, v)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryTake removes and returns the front item without blocking.
func (q *Queue[T]) TryTake() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	v := q.items[0]
	// Release the slot so the backing array does not pin old items.
	q.items[0] = zero
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return v, true
}

// Take drains one item, waiting at most wait for one to arrive.
//
// Returns (item, true, nil) when an item was taken, (zero, false, nil) when the
// wait elapsed with nothing ready, ctx.Err() when the context ended first, and
// ErrQueueClosed once the queue is closed and empty. A non-positive wait makes
// Take equivalent to TryTake.
func (q *Queue[T]) Take(ctx context.Context, wait time.Duration) (T, bool, error) {
	var zero T
	if v, ok := q.TryTake(); ok {
		return v, true, nil
	}
	if q.isClosed() {
		return zero, false, ErrQueueClosed
	}
	if wait <= 0 {
		return zero, false, nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return zero, false, ctx.Err()

		case <-timer.C:
			if v, ok := q.TryTake(); ok {
				return v, true, nil
			}
			return zero, false, nil

		case <-q.signal:
			if v, ok := q.TryTake(); ok {
				return v, true, nil
			}
			if q.isClosed() {
				return zero, false, ErrQueueClosed
			}
		}
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many items were evicted because the queue was full.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close stops accepting items and wakes any waiter. Queued items remain
// drainable.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

func (q *Queue[T]) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
