package session

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of Trigger calls into one call of fn, made once
// no Trigger has arrived for the configured delay. It is safe for concurrent
// use.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	timer   *time.Timer
	gen     uint64
	pending bool
	stopped bool
}

// NewDebouncer creates an idle Debouncer.
//
// Precondition: delay > 0; fn must not be nil.
func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger (re)starts the quiet period. fn runs in a separate goroutine once
// the period elapses without another Trigger.
//
// Postcondition: Has no effect after Stop.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = true
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || !d.pending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.mu.Unlock()
	d.fn()
}

// Pending reports whether a call of fn is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Flush runs a scheduled call of fn immediately, on the caller's goroutine.
//
// Postcondition: Returns true if fn ran; the timer is cancelled either way.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.stopped || !d.pending {
		d.mu.Unlock()
		return false
	}
	d.pending = false
	d.gen++
	d.mu.Unlock()
	d.fn()
	return true
}

// Stop cancels any scheduled call without running it. Safe to call multiple
// times.
//
// Postcondition: fn will not be called by this Debouncer after Stop returns,
// except for a call already in progress.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
}
