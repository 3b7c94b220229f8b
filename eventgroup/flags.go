// SPDX-License-Identifier: Apache-2.0

package eventgroup

import "sync/atomic"

// ServiceStatus is the eventgroup machine's externally-owned liveness input
// (spec.md §3, InputFlags: service_status).
type ServiceStatus int32

const (
	Down ServiceStatus = iota
	Up
)

func (s ServiceStatus) String() string {
	if s == Up {
		return "Up"
	}
	return "Down"
}

// Flags are the externally-owned input bits read by the EventgroupSM at most
// once per tick. They are written by a driver thread distinct from the SM's
// own tick thread (spec.md §5), hence the atomics.
type Flags struct {
	serviceStatus atomic.Int32
}

// SetServiceStatus sets the provider's liveness input.
func (f *Flags) SetServiceStatus(s ServiceStatus) {
	f.serviceStatus.Store(int32(s))
}

func (f *Flags) status() ServiceStatus {
	return ServiceStatus(f.serviceStatus.Load())
}
