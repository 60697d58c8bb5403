package watcher

import (
	"sync"
	"time"
)

// DefaultDebounceDuration is the default debounce window.
const DefaultDebounceDuration = 100 * time.Millisecond

// Debouncer coalesces rapid triggers into a single callback. Each Trigger
// pushes the deadline back by the quiet duration, but never past maxWait
// after the first trigger of a burst, so a steady stream still fires.
type Debouncer struct {
	duration time.Duration
	maxWait  time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	first    time.Time // start of the current burst, zero when idle
	callback func()
	gen      uint64
}

// NewDebouncer creates a Debouncer with the given quiet duration and a
// maximum wait of four times that. A zero duration uses
// DefaultDebounceDuration.
func NewDebouncer(duration time.Duration) *Debouncer {
	if duration <= 0 {
		duration = DefaultDebounceDuration
	}
	return &Debouncer{duration: duration, maxWait: 4 * duration}
}

// SetMaxWait bounds how long a burst can postpone the callback. Values below
// the quiet duration are raised to it.
func (d *Debouncer) SetMaxWait(maxWait time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if maxWait < d.duration {
		maxWait = d.duration
	}
	d.maxWait = maxWait
}

// Trigger schedules callback. A later Trigger within the window replaces the
// callback and restarts the quiet period.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if d.first.IsZero() {
		d.first = now
	}
	delay := d.duration
	if remaining := d.first.Add(d.maxWait).Sub(now); remaining < delay {
		delay = remaining
	}
	if delay < 0 {
		delay = 0
	}

	d.callback = callback
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.callback == nil {
		d.mu.Unlock()
		return
	}
	cb := d.callback
	d.callback = nil
	d.first = time.Time{}
	d.timer = nil
	d.mu.Unlock()

	cb()
}

// Cancel drops any pending callback.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
	d.first = time.Time{}
	d.gen++
}

// Pending reports whether a callback is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.callback != nil
}

// Duration returns the quiet duration.
func (d *Debouncer) Duration() time.Duration {
	return d.duration
}

// MaxWait returns the burst ceiling.
func (d *Debouncer) MaxWait() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxWait
}
