package grid

import (
	"sync"
	"time"
)

// Timer is the handle the scheduler keeps per key. Stop reports whether
// the timer was cancelled before firing. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// TimerFactory produces a timer that invokes fn once after d elapses.
// The default factory wraps time.AfterFunc; tests inject a manual fabric
// to drive virtual time.
type TimerFactory func(d time.Duration, fn func()) Timer

func stdTimer(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Scheduler delays per-key callback invocations. Scheduling a key that
// already has a pending timer cancels the old one first: the last call
// within the window wins. When a timer fires, its entry is removed so the
// next schedule for that key starts fresh.
//
// There is no per-key cancel surface beyond scheduling the same key again.
// Independent keys are fully independent - no cross-key ordering.
//
// Each Grid owns its own Scheduler. The key->timer map must never be
// shared process-wide: two grids using the same column keys would cancel
// each other's notifications.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]Timer
	factory TimerFactory
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTimerFactory replaces the timer fabric. Tests use this to drive
// virtual time instead of waiting out real delays.
func WithTimerFactory(f TimerFactory) SchedulerOption {
	return func(s *Scheduler) {
		s.factory = f
	}
}

// NewScheduler creates a Scheduler with an empty timer map.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		timers:  make(map[string]Timer),
		factory: stdTimer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule arranges for fn to run after delay, cancelling any pending
// timer for the same key. fn runs on the timer's goroutine; a panic in fn
// propagates there - the scheduler does not recover, and nothing retries.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[key]; ok {
		t.Stop()
	}

	var t Timer
	t = s.factory(delay, func() {
		fn()
		// Remove this key's entry, but only if it still holds our timer:
		// fn may have scheduled the key again, and a concurrent Schedule
		// may have replaced us after firing began.
		s.mu.Lock()
		if s.timers[key] == t {
			delete(s.timers, key)
		}
		s.mu.Unlock()
	})
	s.timers[key] = t
}

// Len returns the number of pending timers. Useful for tests and
// monitoring.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending timer. Called at Grid teardown; not a
// per-key cancellation surface.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.timers {
		t.Stop()
		delete(s.timers, k)
	}
}
