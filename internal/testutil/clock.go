// Package testutil holds deterministic stand-ins for wall clocks and ID
// generators, so cycle traces are reproducible across runs.
package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start of a StepClock.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// StepClock is a wall clock that advances by a fixed step on every read.
//
// Unlike fuser.Clock, which counts cycles, StepClock stands in for time.Now
// wherever a component stamps records or cycle timings.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	n     int64
}

// NewStepClock creates a clock whose first reading is start.
// A non-positive step defaults to one millisecond.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	if step <= 0 {
		step = time.Millisecond
	}
	return &StepClock{start: start, step: step}
}

// Now returns the current reading and advances the clock by one step.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Reads returns how many times Now has been called.
func (c *StepClock) Reads() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset rewinds the clock so the next reading is start again.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
