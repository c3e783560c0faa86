package eventtiming

import (
	"sync"
	"time"
)

// Clock is the time reference for classification. It follows the wall
// clock unless a server time override is set, in which case it starts at the
// override and advances with real elapsed time.
type Clock struct {
	mu     sync.Mutex
	now    func() time.Time
	base   time.Time
	anchor time.Time
	set    bool
}

// NewClock returns a clock on the real wall time.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// NewClockWithSource returns a clock reading time from now (for testing).
func NewClockWithSource(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Override pins the clock to base at the current instant. Later reads add
// the real time elapsed since the call.
func (c *Clock) Override(base time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = base
	c.anchor = c.now()
	c.set = true
}

// OverrideMillis is Override for a servertime value in epoch milliseconds.
func (c *Clock) OverrideMillis(ms int64) {
	c.Override(time.UnixMilli(ms).UTC())
}

// Overridden reports whether a server time override is active.
func (c *Clock) Overridden() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set
}

// Now returns the current reference time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set {
		return c.now()
	}
	return c.base.Add(c.now().Sub(c.anchor))
}
