// SPDX-License-Identifier: Apache-2.0

package eventgroup

// State is the EventgroupSM's top-level state.
type State int

// EventgroupSM states (spec.md §4.5).
const (
	ServiceDown State = iota
	ServiceUp
)

func (s State) String() string {
	switch s {
	case ServiceDown:
		return "ServiceDown"
	case ServiceUp:
		return "ServiceUp"
	default:
		return "Unknown"
	}
}

// Substate is meaningful only while State == ServiceUp.
type Substate int

// EventgroupSM substates, nested inside ServiceUp.
const (
	SubstateNone Substate = iota
	NotSubscribed
	Subscribed
)

func (s Substate) String() string {
	switch s {
	case SubstateNone:
		return "None"
	case NotSubscribed:
		return "NotSubscribed"
	case Subscribed:
		return "Subscribed"
	default:
		return "Unknown"
	}
}
