// SPDX-License-Identifier: Apache-2.0

// Package transport implements the Transport capability the state machines
// consume: a non-blocking-from-the-tick's-perspective send/receive pair over
// UDP, plus an in-memory loopback implementation for tests. Unknown tags are
// dropped at this boundary, never propagated to a state machine.
package transport

import (
	"net/netip"
	"time"

	"github.com/yuu-ri/vsomeip/sdmsg"
)

// Transport is the capability a state machine uses to exchange SD datagrams.
// Each tick consumes at most one inbound datagram; ordering across sends is
// not guaranteed beyond wall-clock order of the Send calls.
type Transport interface {
	// Send enqueues one datagram to peer. It never blocks beyond a bounded
	// best-effort; loss is permitted.
	Send(msg sdmsg.Message, peer netip.AddrPort) error
	// TryRecv waits up to timeout for one inbound datagram. ok is false if
	// none arrived in time, or if the datagram carried an unknown tag.
	TryRecv(timeout time.Duration) (msg sdmsg.Message, peer netip.AddrPort, ok bool)
	// Close releases the underlying resources.
	Close() error
}
