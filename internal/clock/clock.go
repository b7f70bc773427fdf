// Package clock provides the runtime's single source of monotonic time,
// shared by the message bus, data engine, and execution engine so all
// three timestamp events consistently (spec §3.A).
package clock

import (
	"sync/atomic"
	"time"
)

// Clock hands out monotonically non-decreasing nanosecond timestamps.
type Clock interface {
	NowNanos() uint64
}

// SystemClock reports Unix nanoseconds as the wall-clock time captured
// once at process start plus the monotonic time elapsed since then, so a
// wall-clock step (NTP adjustment, manual change) never makes its values
// go backward.
type SystemClock struct{}

// processStart anchors every SystemClock reading; its monotonic component
// is what time.Since measures against.
var processStart = time.Now()

// NewSystemClock returns a SystemClock.
func NewSystemClock() SystemClock { return SystemClock{} }

// NowNanos returns the current time as Unix nanoseconds.
func (SystemClock) NowNanos() uint64 {
	return uint64(processStart.UnixNano() + int64(time.Since(processStart)))
}

// AtomicTime is a lock-free latch holding the most recent timestamp
// stored into it (via Set or UpdateToNow); Get reads it without locking.
type AtomicTime struct {
	nanos atomic.Uint64
}

// Set stores nanos unconditionally.
func (t *AtomicTime) Set(nanos uint64) { t.nanos.Store(nanos) }

// Get returns the last stored value, or 0 if never set.
func (t *AtomicTime) Get() uint64 { return t.nanos.Load() }

// UpdateToNow stores clock.NowNanos() and returns it.
func (t *AtomicTime) UpdateToNow(clock Clock) uint64 {
	now := clock.NowNanos()
	t.nanos.Store(now)
	return now
}

// ManualClock is a test double that only advances when told to, letting
// tests assert on exact bar boundaries and timeout behavior without
// racing a real clock.
type ManualClock struct {
	nanos atomic.Uint64
}

// NewManualClock returns a ManualClock starting at the given timestamp.
func NewManualClock(startNanos uint64) *ManualClock {
	c := &ManualClock{}
	c.nanos.Store(startNanos)
	return c
}

// NowNanos implements Clock.
func (c *ManualClock) NowNanos() uint64 { return c.nanos.Load() }

// Advance moves the clock forward by delta nanoseconds and returns the
// new value.
func (c *ManualClock) Advance(delta uint64) uint64 {
	return c.nanos.Add(delta)
}

// SetNanos jumps the clock to an absolute timestamp.
func (c *ManualClock) SetNanos(nanos uint64) { c.nanos.Store(nanos) }
