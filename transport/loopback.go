// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/yuu-ri/vsomeip/sdmsg"
)

type loopbackDatagram struct {
	msg  sdmsg.Message
	from netip.AddrPort
}

// LoopbackRegistry wires a set of in-process LoopbackTransports together by
// address, so end-to-end scenario tests can run the provider, consumer and
// eventgroup state machines against each other without a real socket.
type LoopbackRegistry struct {
	mu    sync.Mutex
	peers map[netip.AddrPort]*LoopbackTransport
}

// NewLoopbackRegistry creates an empty registry.
func NewLoopbackRegistry() *LoopbackRegistry {
	return &LoopbackRegistry{peers: make(map[netip.AddrPort]*LoopbackTransport)}
}

// NewTransport creates and registers a LoopbackTransport bound to addr.
func (r *LoopbackRegistry) NewTransport(addr netip.AddrPort) *LoopbackTransport {
	t := &LoopbackTransport{
		self:     addr,
		registry: r,
		inbox:    make(chan loopbackDatagram, 64),
	}
	r.mu.Lock()
	r.peers[addr] = t
	r.mu.Unlock()
	return t
}

func (r *LoopbackRegistry) deliver(to netip.AddrPort, dg loopbackDatagram) error {
	r.mu.Lock()
	dst, ok := r.peers[to]
	r.mu.Unlock()
	if !ok {
		// No listener bound at that address; matches the "loss is
		// permitted" best-effort send semantics of Transport.Send.
		return nil
	}
	select {
	case dst.inbox <- dg:
		return nil
	default:
		return fmt.Errorf("loopback inbox for %s is full", to)
	}
}

// LoopbackTransport is an in-memory Transport implementation.
type LoopbackTransport struct {
	self     netip.AddrPort
	registry *LoopbackRegistry
	inbox    chan loopbackDatagram
	closed   bool
	mu       sync.Mutex
}

// Send implements Transport.
func (t *LoopbackTransport) Send(msg sdmsg.Message, peer netip.AddrPort) error {
	return t.registry.deliver(peer, loopbackDatagram{msg: msg, from: t.self})
}

// TryRecv implements Transport.
func (t *LoopbackTransport) TryRecv(timeout time.Duration) (sdmsg.Message, netip.AddrPort, bool) {
	select {
	case dg := <-t.inbox:
		return dg.msg, dg.from, true
	case <-time.After(timeout):
		return sdmsg.Unknown, netip.AddrPort{}, false
	}
}

// Close implements Transport.
func (t *LoopbackTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.registry.mu.Lock()
	delete(t.registry.peers, t.self)
	t.registry.mu.Unlock()
	return nil
}
