// Package testutil holds shared test fixtures.
package testutil

import (
	"sync"
	"time"
)

// Clock is a manually advanced clock for tests.
type Clock struct {
	mu sync.Mutex
	at time.Time
}

// NewClock returns a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{at: start}
}

// Now returns the current frozen time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}

// SetUnix jumps the clock to the given unix second.
func (c *Clock) SetUnix(sec int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = time.Unix(sec, 0)
}
