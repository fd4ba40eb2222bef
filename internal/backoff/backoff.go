package backoff

import (
	"sync"
	"time"

	"github.com/mitralabs/coco/internal/state"
)

// Controller tracks one probed resource's retry schedule. Safe for use from
// multiple goroutines.
type Controller struct {
	mu       sync.Mutex
	min      time.Duration
	max      time.Duration
	interval time.Duration
	next     time.Time
}

// New returns a Controller starting at min, ready to probe immediately.
func New(min, max time.Duration) *Controller {
	if min <= 0 {
		min = time.Second
	}
	if max < min {
		max = min
	}
	return &Controller{
		min:      min,
		max:      max,
		interval: min,
	}
}

// ShouldProbeNow reports whether the next attempt is due.
func (c *Controller) ShouldProbeNow(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !now.Before(c.next)
}

// Failure doubles the interval, clamps it at the maximum, and schedules the
// next attempt that far from now.
func (c *Controller) Failure(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval *= 2
	if c.interval > c.max {
		c.interval = c.max
	}
	c.next = now.Add(c.interval)
}

// Success resets the interval to the minimum and allows the next attempt
// immediately. Callers that re-verify on a slower cadence follow up with
// ScheduleAfter.
func (c *Controller) Success(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = c.min
	c.next = now
}

// ScheduleAfter moves the next attempt to now+delay without touching the
// interval.
func (c *Controller) ScheduleAfter(now time.Time, delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = now.Add(delay)
}

// ForceNow makes the next attempt due immediately.
func (c *Controller) ForceNow(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = now
}

// Interval returns the current retry interval.
func (c *Controller) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// Snapshot returns the schedule in the form the shared state store records.
func (c *Controller) Snapshot() state.Backoff {
	c.mu.Lock()
	defer c.mu.Unlock()
	return state.Backoff{Interval: c.interval, NextAttempt: c.next}
}
