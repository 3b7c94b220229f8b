// SPDX-License-Identifier: Apache-2.0

package provider

// State is the ProviderSM's top-level state.
type State int

// ProviderSM states (spec.md §4.3).
const (
	NotReady State = iota
	Ready
)

func (s State) String() string {
	switch s {
	case NotReady:
		return "NotReady"
	case Ready:
		return "Ready"
	default:
		return "Unknown"
	}
}

// Substate is meaningful only while State == Ready.
type Substate int

// ProviderSM substates, nested inside Ready.
const (
	// SubstateNone is the substate while State == NotReady.
	SubstateNone Substate = iota
	InitialWait
	Repetition
	Main
)

func (s Substate) String() string {
	switch s {
	case SubstateNone:
		return "None"
	case InitialWait:
		return "InitialWait"
	case Repetition:
		return "Repetition"
	case Main:
		return "Main"
	default:
		return "Unknown"
	}
}
