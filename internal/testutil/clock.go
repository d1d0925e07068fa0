package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/studydb/internal/engine"
)

// ManualClock is an engine.Clock whose time only moves when a test calls
// Advance. Timers fire synchronously inside Advance, so debounce tests never
// sleep.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int64
	timers []*manualTimer
	fired  int
}

var _ engine.Clock = (*ManualClock)(nil)

type manualTimer struct {
	clock   *ManualClock
	seq     int64
	due     time.Time
	f       func()
	stopped bool
}

// NewManualClock creates a clock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f to run once Advance moves the clock past d.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) engine.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, seq: c.seq, due: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Stop cancels the timer. Returns false if it already fired or was stopped.
func (t *manualTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.timers {
		if p == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			t.stopped = true
			return true
		}
	}
	return false
}

// Advance moves the clock forward by d and runs every timer that came due,
// in due order, on the calling goroutine.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due, pending []*manualTimer
	for _, t := range c.timers {
		if !t.due.After(c.now) {
			due = append(due, t)
		} else {
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.fired += len(due)
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].seq < due[j].seq
		}
		return due[i].due.Before(due[j].due)
	})
	for _, t := range due {
		t.f()
	}
}

// Pending returns the number of scheduled timers that have not fired.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Fired returns the number of timers run so far.
func (c *ManualClock) Fired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}
