package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// RebuildScheduler coalesces rebuild signals into at most one rebuild per
// cooldown period, trailing edge: bursts of signals result in a single run
// after the last signal. Request handlers only ever call Signal; the timer
// state is owned exclusively by the scheduler.
//
// The scheduler is a two-state machine: idle, or scheduled with a fire time.
// A signal while scheduled cancels the pending timer and reschedules. When a
// rebuild ran within the cooldown window the next run is pinned to
// lastRun + cooldown; otherwise it fires a full cooldown after the signal.
type RebuildScheduler struct {
	clock    clock.Clock
	cooldown time.Duration
	rebuild  func(context.Context)

	mu      sync.Mutex
	lastRun time.Time
	pending *clock.Timer
}

// NewRebuildScheduler creates a scheduler invoking rebuild on fire.
func NewRebuildScheduler(clk clock.Clock, cooldown time.Duration, rebuild func(context.Context)) *RebuildScheduler {
	return &RebuildScheduler{clock: clk, cooldown: cooldown, rebuild: rebuild}
}

// Signal requests a rebuild. Never runs one synchronously.
func (s *RebuildScheduler) Signal() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}

	delay := s.cooldown
	if !s.lastRun.IsZero() {
		if elapsed := s.clock.Now().Sub(s.lastRun); elapsed < s.cooldown {
			delay = s.cooldown - elapsed
		}
	}

	s.pending = s.clock.AfterFunc(delay, s.fire)
}

// Scheduled reports whether a rebuild is currently pending.
func (s *RebuildScheduler) Scheduled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *RebuildScheduler) fire() {
	s.mu.Lock()
	s.pending = nil
	s.lastRun = s.clock.Now()
	s.mu.Unlock()

	s.rebuild(context.Background())
}
