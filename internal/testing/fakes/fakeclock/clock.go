// Package fakeclock provides a controllable Clock implementation for testing.
package fakeclock

import (
	"sync"
	"time"

	"github.com/acolita/telnet-shell-mcp/internal/ports"
)

// Clock only moves when told to, or by a fixed step on every read.
type Clock struct {
	mu          sync.Mutex
	current     time.Time
	autoAdvance time.Duration
	sleeps      []time.Duration
}

// New creates a new fake clock initialized to the given time.
func New(initial time.Time) *Clock {
	return &Clock{current: initial}
}

// SetAutoAdvance makes every call to Now move the clock forward by d
// after reading it. Zero disables it.
func (c *Clock) SetAutoAdvance(d time.Duration) {
	c.mu.Lock()
	c.autoAdvance = d
	c.mu.Unlock()
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.autoAdvance)
	return now
}

// Sleep records d and advances the clock by it without blocking.
func (c *Clock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.current = c.current.Add(d)
	c.mu.Unlock()
}

// Sleeps returns every duration passed to Sleep, in order.
func (c *Clock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}

var _ ports.Clock = (*Clock)(nil)
