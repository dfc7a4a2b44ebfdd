// Package testutil provides deterministic test doubles for the grid's
// time-dependent machinery.
package testutil

import (
	"sync"
	"time"
)

// ManualTimers is a deterministic timer fabric for tests.
//
// Unlike the real timers the debounce scheduler uses, a ManualTimers fabric
// never fires on its own: timers fire only when the test calls Advance and
// the fabric clock passes their deadline. The same scenario advanced the
// same way produces byte-identical callback sequences.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
// Callbacks run with the fabric lock released, so a callback may arm new
// timers on the same fabric.
type ManualTimers struct {
	mu    sync.Mutex
	now   time.Duration
	next  int
	armed map[int]*ManualTimer
}

// ManualTimer is one armed timer on a ManualTimers fabric.
//
// Implements the scheduler's Timer interface.
type ManualTimer struct {
	fabric  *ManualTimers
	id      int
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

// NewManualTimers creates an empty fabric with its clock at zero.
func NewManualTimers() *ManualTimers {
	return &ManualTimers{armed: make(map[int]*ManualTimer)}
}

// New arms a timer that fires fn once the fabric clock advances past d
// from now.
//
// Pass this method as the scheduler's timer factory:
//
//	grid.WithTimers(func(d time.Duration, fn func()) grid.Timer {
//		return timers.New(d, fn)
//	})
func (m *ManualTimers) New(d time.Duration, fn func()) *ManualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &ManualTimer{fabric: m, id: m.next, at: m.now + d, fn: fn}
	m.next++
	m.armed[t.id] = t
	return t
}

// Stop cancels the timer. Returns true if it was still armed, false if it
// already fired or was already stopped. Matches time.Timer.Stop semantics.
func (t *ManualTimer) Stop() bool {
	m := t.fabric
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	delete(m.armed, t.id)
	return true
}

// Advance moves the fabric clock forward by d and fires every timer whose
// deadline has passed, in deadline order (arming order breaks ties).
//
// Callbacks run one at a time with the fabric lock released. A callback
// that arms a timer due within the advanced window fires in the same
// Advance call.
func (m *ManualTimers) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	for {
		t := m.nextDue()
		if t == nil {
			break
		}
		t.fired = true
		delete(m.armed, t.id)
		fn := t.fn
		m.mu.Unlock()
		fn()
		m.mu.Lock()
	}
	m.mu.Unlock()
}

// nextDue returns the armed timer with the earliest passed deadline, or
// nil when nothing is due. Caller holds m.mu.
func (m *ManualTimers) nextDue() *ManualTimer {
	var due *ManualTimer
	for _, t := range m.armed {
		if t.at > m.now {
			continue
		}
		if due == nil || t.at < due.at || (t.at == due.at && t.id < due.id) {
			due = t
		}
	}
	return due
}

// Armed reports how many timers are waiting to fire.
func (m *ManualTimers) Armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.armed)
}

// Now returns the fabric clock's current offset from its start.
func (m *ManualTimers) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}
