// Package debounce implements a trailing debounce for free-text input.
//
// Only a value that stays unchanged for the configured quiet interval is
// emitted. Every new observation cancels the previously scheduled emission.
package debounce

import (
	"sync"
	"time"
)

// DefaultDelay is the quiet interval used when none is configured.
const DefaultDelay = 500 * time.Millisecond

// Option configures a Debouncer.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock replaces the real clock, typically with a ManualClock in tests.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// Debouncer delays values until they have been stable for a quiet interval.
//
// The emit callback runs on a timer goroutine (or the caller of Flush). It
// must not call Flush or Close on the same Debouncer.
type Debouncer[T any] struct {
	delay time.Duration
	clock Clock
	emit  func(T)

	// emitMu is held for the duration of an emission so Close can wait for it.
	emitMu sync.Mutex

	mu         sync.Mutex
	timer      Timer
	gen        uint64
	pending    T
	hasPending bool
	closed     bool
}

// New creates a Debouncer that calls emit with the latest value after delay
// of inactivity. A non-positive delay selects DefaultDelay.
func New[T any](delay time.Duration, emit func(T), opts ...Option) *Debouncer[T] {
	o := options{clock: RealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer[T]{
		delay: delay,
		clock: o.clock,
		emit:  emit,
	}
}

// Delay returns the quiet interval.
func (d *Debouncer[T]) Delay() time.Duration {
	return d.delay
}

// Observe records a new value and restarts the quiet interval.
// Observations after Close are ignored.
func (d *Debouncer[T]) Observe(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = v
	d.hasPending = true
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Pending returns the value waiting for its quiet interval, if any.
func (d *Debouncer[T]) Pending() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending, d.hasPending
}

// Flush emits the pending value immediately. It reports whether a value
// was emitted.
func (d *Debouncer[T]) Flush() bool {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()

	v, ok := d.take(0, false)
	if !ok {
		return false
	}
	d.emit(v)
	return true
}

// Close cancels any scheduled emission. Once Close returns no further
// emission happens, including one already in progress on another goroutine.
func (d *Debouncer[T]) Close() {
	d.mu.Lock()
	d.closed = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	var zero T
	d.pending = zero
	d.hasPending = false
	d.mu.Unlock()

	// Wait for an emission that passed its checks before closed was set.
	d.emitMu.Lock()
	d.emitMu.Unlock() //nolint:staticcheck // empty critical section is a barrier
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()

	v, ok := d.take(gen, true)
	if !ok {
		return
	}
	d.emit(v)
}

// take removes the pending value. When checkGen is set the value is only
// taken if no newer observation happened since gen was scheduled.
func (d *Debouncer[T]) take(gen uint64, checkGen bool) (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var zero T
	if d.closed || !d.hasPending || (checkGen && gen != d.gen) {
		return zero, false
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	v := d.pending
	d.pending = zero
	d.hasPending = false
	return v, true
}
