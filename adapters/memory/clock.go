package memory

import (
	"sync"
	"time"
)

// Clock is a manually-advanced clock for tests and demos: schedules can be
// stepped through without sleeping.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a manual clock at the given instant.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to the given instant.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
