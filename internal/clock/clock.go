package clock

import (
	"sync/atomic"
	"time"
)

// Clock reports the current time in whole seconds since the Unix epoch.
// Successive readings never decrease.
type Clock interface {
	Now() uint64
}

// System reads the wall clock. A reading earlier than one already returned
// (e.g. after an NTP step backwards) is reported as the previous value.
type System struct {
	last atomic.Uint64
}

// NewSystem creates a wall-clock source.
func NewSystem() *System {
	return &System{}
}

func (c *System) Now() uint64 {
	now := uint64(max(time.Now().Unix(), 0))
	for {
		last := c.last.Load()
		if now <= last {
			return last
		}
		if c.last.CompareAndSwap(last, now) {
			return now
		}
	}
}

// Manual is a settable clock for tests and replays.
//
// Thread-safety: Manual is safe for concurrent use.
type Manual struct {
	now atomic.Uint64
}

// NewManual creates a manual clock reading start.
func NewManual(start uint64) *Manual {
	c := &Manual{}
	c.now.Store(start)
	return c
}

func (c *Manual) Now() uint64 {
	return c.now.Load()
}

// Set moves the clock to ts. Moving backwards is ignored.
func (c *Manual) Set(ts uint64) {
	for {
		cur := c.now.Load()
		if ts <= cur || c.now.CompareAndSwap(cur, ts) {
			return
		}
	}
}

// Advance moves the clock forward by seconds and returns the new reading.
func (c *Manual) Advance(seconds uint64) uint64 {
	return c.now.Add(seconds)
}
