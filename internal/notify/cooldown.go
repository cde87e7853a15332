package notify

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Cooldown rate-limits a channel: a send is permitted when at least window
// has elapsed since the last successful send. Failed sends are never recorded.
type Cooldown struct {
	mu     sync.Mutex
	clock  clock.Clock
	window time.Duration
	last   time.Time
	sent   bool
}

func NewCooldown(clk clock.Clock, window time.Duration) *Cooldown {
	if clk == nil {
		clk = clock.New()
	}
	return &Cooldown{clock: clk, window: window}
}

// Remaining returns how long until the next send is permitted, or zero.
func (c *Cooldown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining(c.clock.Now())
}

func (c *Cooldown) remaining(now time.Time) time.Duration {
	if !c.sent {
		return 0
	}
	elapsed := now.Sub(c.last)
	if elapsed >= c.window {
		return 0
	}
	return c.window - elapsed
}

// Do runs send if the window is open and records the attempt time when send
// succeeds. Concurrent callers are serialised so at most one send passes per
// window. It reports whether send was attempted.
func (c *Cooldown) Do(send func() error) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.remaining(now) > 0 {
		return false, nil
	}
	if err := send(); err != nil {
		return true, err
	}
	c.last = now
	c.sent = true
	return true, nil
}
