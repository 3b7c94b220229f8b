// SPDX-License-Identifier: Apache-2.0

package provider

import "sync/atomic"

// Flags are the externally-owned input bits read by the ProviderSM at most
// once per tick. They are written by a driver thread distinct from the SM's
// own tick thread (spec.md §5), hence the atomics.
type Flags struct {
	ifstatusUpAndConfigured atomic.Bool
	serviceStatusUp         atomic.Bool
}

// SetIfstatusUpAndConfigured sets the network-interface-ready bit.
func (f *Flags) SetIfstatusUpAndConfigured(v bool) {
	f.ifstatusUpAndConfigured.Store(v)
}

// SetServiceStatusUp sets the application-level service-up bit.
func (f *Flags) SetServiceStatusUp(v bool) {
	f.serviceStatusUp.Store(v)
}
