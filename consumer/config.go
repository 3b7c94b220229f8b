// SPDX-License-Identifier: Apache-2.0

package consumer

import (
	"fmt"
	"time"
)

// Config holds the ConsumerSM's endpoint and protocol-constant configuration
// (spec.md §6, "Configuration surface").
type Config struct {
	UDPIP   string
	UDPPort int

	PeerIP   string
	PeerPort int

	TickPeriod  time.Duration
	RecvTimeout time.Duration

	InitialDelayMin      time.Duration
	InitialDelayMax      time.Duration
	RepetitionsBaseDelay time.Duration
	RepetitionsMax       uint32
	TTL                  time.Duration
}

// Validate rejects configurations the constructor must refuse (spec.md §7,
// Fatal category).
func (c *Config) Validate() error {
	if c.InitialDelayMin < 0 || c.InitialDelayMax < 0 {
		return fmt.Errorf("initial delay bounds must be non-negative")
	}
	if c.InitialDelayMin > c.InitialDelayMax {
		return fmt.Errorf("initial delay min %s exceeds max %s", c.InitialDelayMin, c.InitialDelayMax)
	}
	if c.RepetitionsBaseDelay <= 0 {
		return fmt.Errorf("repetitions base delay must be positive")
	}
	if c.TTL <= 0 {
		return fmt.Errorf("ttl must be positive")
	}
	if c.TickPeriod <= 0 {
		return fmt.Errorf("tick period must be positive")
	}
	if c.RecvTimeout <= 0 {
		return fmt.Errorf("recv timeout must be positive")
	}
	if c.UDPPort <= 0 || c.UDPPort > 65535 {
		return fmt.Errorf("invalid udp port %d", c.UDPPort)
	}
	if c.PeerPort <= 0 || c.PeerPort > 65535 {
		return fmt.Errorf("invalid peer port %d", c.PeerPort)
	}
	return nil
}
