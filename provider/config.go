// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"fmt"
	"time"
)

// Config holds the ProviderSM's endpoints, tick parameters and protocol
// constants (spec.md §6 configuration surface).
type Config struct {
	UDPIP       string
	UDPPort     int
	PeerIP      string
	PeerPort    int
	TickPeriod  time.Duration
	RecvTimeout time.Duration

	// InitialDelayMin/Max bound the randomized InitialWait phase.
	InitialDelayMin time.Duration
	InitialDelayMax time.Duration
	// RepetitionsBaseDelay is the base delay B for the exponential
	// repetition backoff B, 2B, 4B, ....
	RepetitionsBaseDelay time.Duration
	// RepetitionsMax bounds the number of retries in the Repetition phase.
	RepetitionsMax uint32
	// CyclicAnnounceDelay is the steady-state re-announce interval in Main.
	CyclicAnnounceDelay time.Duration
	// AnswerDelay is the short fixed wait before replying to an inbound
	// FindService, modeling SD answer-delay randomization without
	// blocking the tick (see SPEC_FULL.md §6.3).
	AnswerDelay time.Duration
}

// Validate rejects configuration that would make the state machine's timing
// nonsensical. A Provider is never constructed, and no tick loop starts, on
// an invalid Config (spec.md §7, Fatal category).
func (c *Config) Validate() error {
	if c.InitialDelayMin < 0 || c.InitialDelayMax < 0 {
		return fmt.Errorf("initial delay bounds must be non-negative: min=%s max=%s", c.InitialDelayMin, c.InitialDelayMax)
	}
	if c.InitialDelayMin > c.InitialDelayMax {
		return fmt.Errorf("initial delay min (%s) must be <= max (%s)", c.InitialDelayMin, c.InitialDelayMax)
	}
	if c.RepetitionsBaseDelay <= 0 {
		return fmt.Errorf("repetitions base delay must be positive, got %s", c.RepetitionsBaseDelay)
	}
	if c.CyclicAnnounceDelay <= 0 {
		return fmt.Errorf("cyclic announce delay must be positive, got %s", c.CyclicAnnounceDelay)
	}
	if c.AnswerDelay < 0 {
		return fmt.Errorf("answer delay must be non-negative, got %s", c.AnswerDelay)
	}
	if c.TickPeriod <= 0 {
		return fmt.Errorf("tick period must be positive, got %s", c.TickPeriod)
	}
	if c.RecvTimeout <= 0 {
		return fmt.Errorf("recv timeout must be positive, got %s", c.RecvTimeout)
	}
	if c.UDPPort <= 0 || c.UDPPort > 65535 {
		return fmt.Errorf("invalid udp port %d", c.UDPPort)
	}
	if c.PeerPort <= 0 || c.PeerPort > 65535 {
		return fmt.Errorf("invalid peer port %d", c.PeerPort)
	}
	return nil
}
