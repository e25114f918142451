// Package realclock implements ports.Clock with the time package.
package realclock

import (
	"time"

	"github.com/acolita/telnet-shell-mcp/internal/ports"
)

// Clock is the wall clock.
type Clock struct{}

// New returns a new real Clock.
func New() *Clock {
	return &Clock{}
}

func (c *Clock) Now() time.Time { return time.Now() }

func (c *Clock) Sleep(d time.Duration) { time.Sleep(d) }

var _ ports.Clock = (*Clock)(nil)
