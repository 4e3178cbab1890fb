package engine

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic logical clock for journal ordering.
//
// Every journaled event is stamped with a strictly increasing seq from
// Clock.Next(). Wall time never orders events, so two runs of the same
// project produce the same seq sequence.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used to continue a journal that already holds events.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// TimeSource supplies wall time to the scheduler. Tick budgets, the stuck
// detector and script timers all read from it, so tests substitute a manual
// or stepping clock.
type TimeSource interface {
	Now() time.Time
}

// WallClock reads the real time.
type WallClock struct{}

// Now implements TimeSource.
func (WallClock) Now() time.Time { return time.Now() }
