// SPDX-License-Identifier: Apache-2.0

package consumer

import "sync/atomic"

// Flags are the externally-owned input bits read by the ConsumerSM at most
// once per tick. They are written by a driver thread distinct from the SM's
// own tick thread (spec.md §5), hence the atomics.
type Flags struct {
	ifstatusUpAndConfigured atomic.Bool
	serviceRequested        atomic.Bool
}

// SetIfstatusUpAndConfigured sets the network-interface-ready bit.
func (f *Flags) SetIfstatusUpAndConfigured(v bool) {
	f.ifstatusUpAndConfigured.Store(v)
}

// SetServiceRequested sets the application-level "I want this service" bit.
func (f *Flags) SetServiceRequested(v bool) {
	f.serviceRequested.Store(v)
}
