// SPDX-License-Identifier: Apache-2.0

// Package sdtimer implements the single Timer abstraction shared by all
// three service discovery state machines: an optional absolute deadline
// armed against an injected clock/rng pair, rather than a raw duration
// countdown, so tick skew never accumulates error.
package sdtimer

import (
	"time"

	"github.com/yuu-ri/vsomeip/clock"
	"github.com/yuu-ri/vsomeip/rng"
)

// Timer holds an optional absolute deadline. A disarmed Timer never expires.
type Timer struct {
	clock    clock.Clock
	rng      rng.Rng
	deadline time.Time
	armed    bool
}

// New creates a disarmed Timer driven by the given clock and rng.
func New(c clock.Clock, r rng.Rng) *Timer {
	return &Timer{clock: c, rng: r}
}

// Set arms the timer with deadline now+d, overwriting any prior deadline.
func (t *Timer) Set(d time.Duration) {
	t.deadline = t.clock.Now().Add(d)
	t.armed = true
}

// SetInRange arms the timer with deadline now+uniform(min, max).
func (t *Timer) SetInRange(min, max time.Duration) {
	t.Set(t.rng.UniformDuration(min, max))
}

// Cancel disarms the timer. A subsequent Expired call returns false until
// the timer is armed again.
func (t *Timer) Cancel() {
	t.armed = false
	t.deadline = time.Time{}
}

// Armed reports whether the timer currently has a deadline set.
func (t *Timer) Armed() bool {
	return t.armed
}

// Expired reports whether the timer is armed and its deadline has passed.
// An unarmed timer never expires.
func (t *Timer) Expired() bool {
	return t.armed && !t.clock.Now().Before(t.deadline)
}

// Deadline returns the current deadline and whether the timer is armed.
func (t *Timer) Deadline() (time.Time, bool) {
	return t.deadline, t.armed
}
