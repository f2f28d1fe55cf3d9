package testutil

import (
	"sync"
	"testing"
	"time"
)

// InstantClock fires every timer immediately and remembers the delays that
// were asked for. Now advances by each requested delay.
type InstantClock struct {
	mu     sync.Mutex
	now    time.Time
	delays []time.Duration
}

func NewInstantClock(start time.Time) *InstantClock {
	return &InstantClock{now: start}
}

func (c *InstantClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *InstantClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *InstantClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

// ManualTimer is one pending After call on a ManualClock.
type ManualTimer struct {
	Delay time.Duration
	clock *ManualClock
	ch    chan time.Time
	once  sync.Once
}

// Fire releases the waiter and advances the clock by the timer's delay.
func (t *ManualTimer) Fire() {
	t.once.Do(func() {
		t.clock.mu.Lock()
		t.clock.now = t.clock.now.Add(t.Delay)
		now := t.clock.now
		t.clock.mu.Unlock()
		t.ch <- now
	})
}

// ManualClock hands every timer to the test, which decides when it fires.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers chan *ManualTimer
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start, timers: make(chan *ManualTimer, 256)}
}

func (c *ManualClock) After(d time.Duration) <-chan time.Time {
	timer := &ManualTimer{Delay: d, clock: c, ch: make(chan time.Time, 1)}
	c.timers <- timer
	return timer.ch
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NextTimer waits for the next After call.
func (c *ManualClock) NextTimer(t testing.TB) *ManualTimer {
	t.Helper()
	select {
	case timer := <-c.timers:
		return timer
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a timer")
		return nil
	}
}

// NoTimer asserts that no After call happens within wait.
func (c *ManualClock) NoTimer(t testing.TB, wait time.Duration) {
	t.Helper()
	select {
	case timer := <-c.timers:
		t.Fatalf("unexpected timer scheduled with delay %s", timer.Delay)
	case <-time.After(wait):
	}
}
