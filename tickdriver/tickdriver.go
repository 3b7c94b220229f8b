// SPDX-License-Identifier: Apache-2.0

// Package tickdriver runs a state machine's tick loop: it owns the
// cancellation flag and the tick-period sleep, and performs no protocol
// logic of its own (spec.md §4.6).
package tickdriver

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Stepper is anything that can be driven one tick at a time. ProviderSM,
// ConsumerSM and EventgroupSM all satisfy it.
type Stepper interface {
	Step(now time.Time)
}

// Driver repeatedly invokes a Stepper's Step once per tick period until its
// context is cancelled. Cancellation is cooperative and bounded by one tick
// period plus the Stepper's own receive timeout (spec.md §5).
type Driver struct {
	name       string
	step       Stepper
	tickPeriod time.Duration
}

// New constructs a Driver for the given Stepper. name is used only for log
// lines.
func New(name string, step Stepper, tickPeriod time.Duration) *Driver {
	return &Driver{name: name, step: step, tickPeriod: tickPeriod}
}

// Run blocks, ticking the Stepper until ctx is cancelled, then returns
// ctx.Err(). It performs no protocol logic: it reads no flags and sends no
// datagrams.
func (d *Driver) Run(ctx context.Context) error {
	log.Debugf("%s: tick driver starting, period=%s", d.name, d.tickPeriod)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debugf("%s: tick driver stopping", d.name)
			return ctx.Err()
		case now := <-timer.C:
			d.step.Step(now)
			timer.Reset(d.tickPeriod)
		}
	}
}
