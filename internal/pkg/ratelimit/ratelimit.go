// Package ratelimit provides the counting primitives behind the usage
// governor: fixed-size sliding windows keyed by caller identity and a
// calendar-day budget for external provider calls. Counters are created
// lazily, reset when their window rolls over, and are deliberately
// best-effort — they do not survive a process restart.
package ratelimit

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// Window counts events per key within a rolling window of fixed duration.
type Window struct {
	clock  clock.Clock
	window time.Duration
	cap    int

	mu       sync.Mutex
	counters map[string]*counter
}

type counter struct {
	count       int
	windowStart time.Time
}

// NewWindow creates a per-key window limiter.
func NewWindow(clk clock.Clock, window time.Duration, cap int) *Window {
	return &Window{
		clock:    clk,
		window:   window,
		cap:      cap,
		counters: make(map[string]*counter),
	}
}

// Allow increments the key's counter and reports whether it stayed within
// the cap. At the cap it returns false without incrementing.
func (w *Window) Allow(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.roll(key)
	if c.count >= w.cap {
		return false
	}
	c.count++
	return true
}

// Peek reports whether one more event for the key would stay within the cap,
// without counting it.
func (w *Window) Peek(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.roll(key).count < w.cap
}

// roll returns the key's counter, resetting it if its window has elapsed.
// Callers must hold w.mu.
func (w *Window) roll(key string) *counter {
	now := w.clock.Now()
	c, ok := w.counters[key]
	if !ok {
		c = &counter{windowStart: now}
		w.counters[key] = c
		return c
	}
	if now.Sub(c.windowStart) >= w.window {
		c.count = 0
		c.windowStart = now
	}
	return c
}

// DailyBudget counts events against a cap that resets at the start of each
// UTC calendar day.
type DailyBudget struct {
	clock clock.Clock
	cap   int

	mu    sync.Mutex
	day   time.Time
	count int
}

// NewDailyBudget creates a daily budget counter.
func NewDailyBudget(clk clock.Clock, cap int) *DailyBudget {
	return &DailyBudget{clock: clk, cap: cap}
}

// TryConsume consumes one unit of the day's budget. At the cap it returns
// false without incrementing.
func (b *DailyBudget) TryConsume() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	today := b.clock.Now().UTC().Truncate(24 * time.Hour)
	if !today.Equal(b.day) {
		b.day = today
		b.count = 0
	}
	if b.count >= b.cap {
		return false
	}
	b.count++
	return true
}

// Remaining reports how much of today's budget is left.
func (b *DailyBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	today := b.clock.Now().UTC().Truncate(24 * time.Hour)
	if !today.Equal(b.day) {
		return b.cap
	}
	return b.cap - b.count
}
