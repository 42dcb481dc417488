package input

import (
	"context"
	"errors"
	"time"
)

// DefaultPollWait is the bounded wait a queue poller spends per poll when none
// is configured. It exists to yield to the scheduler, not to wait for data.
const DefaultPollWait = 500 * time.Millisecond

// QueuePoller drains a hand-off Queue with a short fixed wait.
type QueuePoller[T any] struct {
	queue *Queue[T]
	wait  time.Duration
}

// NewQueuePoller creates a poller over q. A non-positive wait falls back to
// DefaultPollWait.
func NewQueuePoller[T any](q *Queue[T], wait time.Duration) *QueuePoller[T] {
	if wait <= 0 {
		wait = DefaultPollWait
	}
	return &QueuePoller[T]{queue: q, wait: wait}
}

// Poll implements Poller. A closed queue reads as "nothing ready".
func (p *QueuePoller[T]) Poll(ctx context.Context) (T, bool, error) {
	v, ok, err := p.queue.Take(ctx, p.wait)
	if errors.Is(err, ErrQueueClosed) {
		return v, false, nil
	}
	return v, ok, err
}

// Backlog implements Backlogger.
func (p *QueuePoller[T]) Backlog() int {
	return p.queue.Len()
}
