package testutil

import (
	"sync"
	"time"
)

// StepClock is a deterministic time source for tests.
//
// Every call to Now advances the clock by a fixed step, so elapsed times
// measured by the runner depend only on how many times it looked at the
// clock. Pass clock.Now wherever a func() time.Time is expected.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	ticks int64
}

// NewStepClock creates a clock starting at a fixed instant that advances by
// step on every Now call.
func NewStepClock(step time.Duration) *StepClock {
	return &StepClock{
		start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		step:  step,
	}
}

// Now returns the current instant, then advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.ticks) * c.step)
	c.ticks++
	return t
}

// Ticks returns how many times Now has been called.
func (c *StepClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset rewinds the clock to its start instant.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
