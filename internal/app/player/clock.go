package player

import (
	"context"
	"sync"
	"time"
)

// Clock is a wall-clock ticker that calls onTick once per interval while running.
// Every Start begins a new generation; ticks carry the generation they were
// scheduled under so a consumer can drop ticks from a stopped run.
type Clock struct {
	mu         sync.Mutex
	interval   time.Duration
	onTick     func(generation uint64)
	cancel     func()
	generation uint64
}

// NewClock creates a stopped clock.
func NewClock(interval time.Duration, onTick func(generation uint64)) *Clock {
	if interval <= 0 {
		interval = time.Second
	}
	return &Clock{
		interval: interval,
		onTick:   onTick,
	}
}

// Start starts the clock. It is a no-op if already running.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return
	}
	c.generation++
	c.cancel = c.startWallClockTicker(c.generation)
}

// Stop stops the clock. It is a no-op if not running.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Running reports whether the clock is running.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Current reports whether generation belongs to the active run.
func (c *Clock) Current(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil && c.generation == generation
}

// Suspend implements timer.Cadence.
func (c *Clock) Suspend() { c.Stop() }

// Resume implements timer.Cadence.
func (c *Clock) Resume() { c.Start() }

func (c *Clock) startWallClockTicker(generation uint64) func() {
	ctx, cancel := context.WithCancel(context.Background())

	resolution := min(100*time.Millisecond, c.interval/10)
	if resolution <= 0 {
		resolution = c.interval
	}

	// Compare against wall time to avoid monotonic clock drift.
	go func() {
		next := toWallTime(time.Now()).Add(c.interval)
		ticker := time.NewTicker(resolution)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if toWallTime(time.Now()).Before(next) {
					continue
				}
				next = next.Add(c.interval)
				c.onTick(generation)
			}
		}
	}()

	return cancel
}

// toWallTime returns the time with monotonic clock stripped.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
