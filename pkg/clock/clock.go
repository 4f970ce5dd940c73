// Package clock abstracts time so dwell timers can be driven by tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the
	// call stopped the timer before it fired.
	Stop() bool
}

// Clock is the time source used by the selection policy.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Fake is a manually advanced Clock. Callbacks run synchronously on
// the goroutine calling Advance, in deadline order.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*fakeTimer
}

type fakeTimer struct {
	clock    *Fake
	deadline time.Time
	seq      uint64
	f        func()
	stopped  bool
	fired    bool
}

// NewFake returns a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f to run once the clock has advanced by d.
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &fakeTimer{
		clock:    c,
		deadline: c.now.Add(d),
		seq:      c.seq,
		f:        f,
	}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer whose
// deadline is reached. Timers scheduled by fired callbacks are honoured
// if they also fall within the window.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDue(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.deadline
		next.fired = true
		c.mu.Unlock()

		next.f()
	}
}

// Pending returns the number of timers that have neither fired nor
// been stopped.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

// nextDue pops the earliest live timer due at or before target.
// Caller holds c.mu.
func (c *Fake) nextDue(target time.Time) *fakeTimer {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			live = append(live, t)
		}
	}
	c.timers = live

	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].deadline.Equal(c.timers[j].deadline) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})

	if len(c.timers) == 0 || c.timers[0].deadline.After(target) {
		return nil
	}
	return c.timers[0]
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
