// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package schedule

import (
	"sync"
	"time"
)

// Clock delivers the animation ticks that drive the scheduler. Exactly
// one callback is active at a time; ticks are delivered sequentially,
// never concurrently.
//
// TickerClock is the production implementation. Tests use ManualClock
// to step simulated time deterministically.
type Clock interface {
	// Start begins delivering ticks to fn. Starting an already running
	// clock is a no-op.
	Start(fn func(now time.Time))

	// Stop halts tick delivery. Stop is idempotent and safe to call
	// from within a tick callback.
	Stop()
}

// DefaultTickInterval approximates a 60 Hz animation clock.
const DefaultTickInterval = time.Second / 60

// TickerClock delivers wall-clock ticks from a background goroutine at
// a fixed interval.
type TickerClock struct {
	interval time.Duration

	mu     sync.Mutex
	cancel chan struct{}
}

// NewTickerClock creates a clock ticking at the given interval.
// Intervals <= 0 fall back to DefaultTickInterval.
func NewTickerClock(interval time.Duration) *TickerClock {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &TickerClock{interval: interval}
}

// Start begins delivering ticks to fn from a background goroutine.
func (c *TickerClock) Start(fn func(now time.Time)) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	cancel := make(chan struct{})
	c.cancel = cancel
	c.mu.Unlock()

	go func() {
		t := time.NewTicker(c.interval)
		defer t.Stop()
		for {
			select {
			case <-cancel:
				return
			case now := <-t.C:
				select {
				case <-cancel:
					// Stopped between tick delivery and dispatch.
					return
				default:
				}
				fn(now)
			}
		}
	}()
}

// Stop halts tick delivery. The tick goroutine exits before its next
// dispatch; a tick already in flight completes.
func (c *TickerClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		close(c.cancel)
		c.cancel = nil
	}
}

// ManualClock is a Clock driven explicitly by tests. Advance steps
// simulated time and delivers ticks synchronously on the calling
// goroutine.
type ManualClock struct {
	mu      sync.Mutex
	fn      func(now time.Time)
	now     time.Time
	running bool
}

// NewManualClock creates a manual clock starting at the given time.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Start records the tick callback. No ticks are delivered until
// Advance is called.
func (c *ManualClock) Start(fn func(now time.Time)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fn = fn
	c.running = true
}

// Stop halts tick delivery.
func (c *ManualClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
}

// Now returns the current simulated time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves simulated time forward in count steps of the given
// interval, delivering one tick per step while the clock is running.
func (c *ManualClock) Advance(step time.Duration, count int) {
	for i := 0; i < count; i++ {
		c.mu.Lock()
		c.now = c.now.Add(step)
		fn := c.fn
		running := c.running
		now := c.now
		c.mu.Unlock()

		if running && fn != nil {
			fn(now)
		}
	}
}
