package engine

import "time"

// Clock supplies wall time and cancellable timers to the store.
//
// The debounce timer and backup timestamps go through Clock so tests can
// drive them deterministically (see testutil.ManualClock).
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f in its own goroutine after d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending call scheduled by Clock.AfterFunc.
type Timer interface {
	// Stop prevents the call from firing. Returns false if it already fired
	// or was already stopped.
	Stop() bool
}

// SystemClock is the real-time Clock.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// AfterFunc wraps time.AfterFunc.
func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
