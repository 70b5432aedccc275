// Package budget tracks the single wall-clock budget shared by every network
// attempt in a run. The clock is read-only after construction; once the
// remaining budget hits zero no new attempt may be started.
package budget

import "time"

// Clock measures elapsed time against a fixed total budget. time.Since uses
// the monotonic clock, so wall-clock adjustments don't affect it.
type Clock struct {
	t0    time.Time
	total time.Duration
}

// NewClock starts a clock with the given total budget.
func NewClock(total time.Duration) *Clock {
	return &Clock{t0: time.Now(), total: total}
}

// Remaining returns how much of the budget is left. It is negative once the
// budget is overspent.
func (c *Clock) Remaining() time.Duration {
	return c.total - time.Since(c.t0)
}

// Exhausted reports whether the budget has been fully spent.
func (c *Clock) Exhausted() bool {
	return c.Remaining() <= 0
}

// Total returns the configured budget.
func (c *Clock) Total() time.Duration {
	return c.total
}
