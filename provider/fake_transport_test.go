// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"net/netip"
	"time"

	"github.com/yuu-ri/vsomeip/sdmsg"
)

type fakeDatagram struct {
	msg  sdmsg.Message
	from netip.AddrPort
}

// fakeTransport is a hand-rolled Transport double for unit tests that need
// to script exact inbound sequences across ticks without a real socket.
type fakeTransport struct {
	inbox chan fakeDatagram
	sent  []sdmsg.Message
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbox: make(chan fakeDatagram, 16)}
}

func (f *fakeTransport) Send(msg sdmsg.Message, _ netip.AddrPort) error {
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) TryRecv(_ time.Duration) (sdmsg.Message, netip.AddrPort, bool) {
	select {
	case dg := <-f.inbox:
		return dg.msg, dg.from, true
	default:
		return sdmsg.Unknown, netip.AddrPort{}, false
	}
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) deliver(msg sdmsg.Message, from netip.AddrPort) {
	f.inbox <- fakeDatagram{msg: msg, from: from}
}
