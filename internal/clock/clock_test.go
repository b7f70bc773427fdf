package clock

import "testing"

func TestSystemClockMonotonic(t *testing.T) {
	t.Parallel()
	c := NewSystemClock()
	a := c.NowNanos()
	b := c.NowNanos()
	if b < a {
		t.Fatalf("clock went backwards: %d then %d", a, b)
	}
}

func TestManualClockAdvance(t *testing.T) {
	t.Parallel()
	c := NewManualClock(1000)
	if got := c.NowNanos(); got != 1000 {
		t.Fatalf("NowNanos() = %d, want 1000", got)
	}
	if got := c.Advance(500); got != 1500 {
		t.Fatalf("Advance(500) = %d, want 1500", got)
	}
	if got := c.NowNanos(); got != 1500 {
		t.Fatalf("NowNanos() after advance = %d, want 1500", got)
	}
}

func TestAtomicTimeUpdateToNow(t *testing.T) {
	t.Parallel()
	c := NewManualClock(42)
	var at AtomicTime
	if got := at.Get(); got != 0 {
		t.Fatalf("zero value Get() = %d, want 0", got)
	}
	if got := at.UpdateToNow(c); got != 42 {
		t.Fatalf("UpdateToNow() = %d, want 42", got)
	}
	if got := at.Get(); got != 42 {
		t.Fatalf("Get() after update = %d, want 42", got)
	}
}
