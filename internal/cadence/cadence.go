// Package cadence governs how long the orchestrator idles between fusion cycles.
//
// A Controller owns one best-effort "skip remaining wait" flag. Any input may
// raise it from any goroutine when it knows fresher data is waiting; the
// orchestrator reads and resets it once per cycle through Wait. Losing a
// signal to a race costs at most one extra interval, never correctness.
package cadence

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultInterval is the idle interval used when none is configured.
const DefaultInterval = time.Second

// Controller is the shared cadence state.
//
// Thread-safety: RequestSkip and ConsumeSkip are safe from any goroutine.
// Wait must only be called by the single fusion consumer.
type Controller struct {
	interval time.Duration
	skip     atomic.Bool
	wake     chan struct{} // buffered, size 1; coalesces multiple requests
}

// New creates a controller that idles for interval between cycles.
// A non-positive interval falls back to DefaultInterval.
func New(interval time.Duration) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Controller{
		interval: interval,
		wake:     make(chan struct{}, 1),
	}
}

// Interval returns the configured idle interval.
func (c *Controller) Interval() time.Duration {
	return c.interval
}

// RequestSkip asks the orchestrator to start the next cycle without waiting
// out the remaining interval.
func (c *Controller) RequestSkip() {
	c.skip.Store(true)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// ConsumeSkip atomically reads and clears the skip flag.
func (c *Controller) ConsumeSkip() bool {
	return c.skip.Swap(false)
}

// Wait idles for one interval. It returns early with skipped=true when a skip
// was pending on entry or is requested while waiting, and returns ctx.Err()
// when the context ends first. The skip flag is always clear on return.
func (c *Controller) Wait(ctx context.Context) (skipped bool, err error) {
	c.drainWake()
	if c.ConsumeSkip() {
		return true, nil
	}

	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()

		case <-timer.C:
			c.ConsumeSkip()
			return false, nil

		case <-c.wake:
			if c.ConsumeSkip() {
				return true, nil
			}
			// Stale wake from a request that was already consumed.
		}
	}
}

func (c *Controller) drainWake() {
	select {
	case <-c.wake:
	default:
	}
}
