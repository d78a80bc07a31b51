package app

import (
	"context"
	"sync"
	"time"
)

// countdown drives one tick callback per interval until stopped. It is owned
// by exactly one Game; starting it again cancels the previous run, and Stop
// is an idempotent no-op once stopped.
type countdown struct {
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newCountdown(interval time.Duration) *countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &countdown{interval: interval}
}

func (c *countdown) start(tick func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick()
			}
		}
	}()
}

func (c *countdown) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
