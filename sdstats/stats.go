// SPDX-License-Identifier: Apache-2.0

// Package sdstats exposes counters for the service discovery state machines:
// messages sent/received by tag, transitions taken, and TTL/subscription
// expiries. Production code registers a PrometheusRecorder against a shared
// registry; tests use NopRecorder.
package sdstats

import "github.com/yuu-ri/vsomeip/sdmsg"

// Recorder is the capability a state machine uses to report its activity.
type Recorder interface {
	IncSend(msg sdmsg.Message)
	IncRecv(msg sdmsg.Message)
	IncTransition()
	IncTTLExpiry()
}

// NopRecorder discards everything. It is the default for tests that don't
// care about metrics.
type NopRecorder struct{}

// IncSend implements Recorder.
func (NopRecorder) IncSend(sdmsg.Message) {}

// IncRecv implements Recorder.
func (NopRecorder) IncRecv(sdmsg.Message) {}

// IncTransition implements Recorder.
func (NopRecorder) IncTransition() {}

// IncTTLExpiry implements Recorder.
func (NopRecorder) IncTTLExpiry() {}
