// SPDX-License-Identifier: Apache-2.0

package tickdriver

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingStepper struct {
	ticks atomic.Int64
}

func (c *countingStepper) Step(_ time.Time) {
	c.ticks.Add(1)
}

func TestDriverTicksUntilCancelled(t *testing.T) {
	stepper := &countingStepper{}
	d := New("test", stepper, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		return stepper.ticks.Load() >= 3
	}, time.Second, time.Millisecond)

	cancel()
	err := <-done
	require.ErrorIs(t, err, context.Canceled)
}

func TestDriverStopsOnAlreadyCancelledContext(t *testing.T) {
	stepper := &countingStepper{}
	d := New("test", stepper, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
