package engine

import "time"

// Stuck detection defaults: the real time is read every DefaultStuckInterval
// calls, and a tick that has run longer than DefaultStuckBudget is stuck.
const (
	DefaultStuckInterval = 100
	DefaultStuckBudget   = 500 * time.Millisecond
)

// StuckDetector decides when a warp-mode loop has run long enough that it
// must give the rest of the program a turn.
//
// The counter is engine wide and survives across ticks; only every
// interval-th call samples the clock.
type StuckDetector struct {
	interval int
	budget   time.Duration
	counter  int
}

// NewStuckDetector creates a detector. Non-positive arguments select the
// defaults.
func NewStuckDetector(interval int, budget time.Duration) *StuckDetector {
	if interval <= 0 {
		interval = DefaultStuckInterval
	}
	if budget <= 0 {
		budget = DefaultStuckBudget
	}
	return &StuckDetector{interval: interval, budget: budget}
}

// Check counts one call. On every interval-th call it resets the counter
// and reports whether elapsed is over the budget; otherwise it reports
// false without looking at elapsed.
func (d *StuckDetector) Check(elapsed func() time.Duration) bool {
	d.counter++
	if d.counter < d.interval {
		return false
	}
	d.counter = 0
	return elapsed() > d.budget
}

// Interval returns the sampling interval.
func (d *StuckDetector) Interval() int { return d.interval }

// Budget returns the time budget.
func (d *StuckDetector) Budget() time.Duration { return d.budget }
