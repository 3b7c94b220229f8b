// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/yuu-ri/vsomeip/sdmsg"
)

const maxDatagramSize = 256

// UDPTransport binds a single UDP socket and speaks the opaque-tag SD
// protocol over it. TryRecv is a single Recvfrom syscall, not a spin loop.
// It sets SO_RCVTIMEO first, but the Go runtime opens the socket in
// non-blocking mode, so Recvfrom returns at once when nothing is pending.
type UDPTransport struct {
	conn *net.UDPConn
	fd   int
}

// NewUDPTransport binds a UDP socket on ip:port.
func NewUDPTransport(ip net.IP, port int) (*UDPTransport, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}
	conn, err := lc.ListenPacket(context.Background(), "udp", net.JoinHostPort(ip.String(), fmt.Sprintf("%d", port)))
	if err != nil {
		return nil, fmt.Errorf("binding SD socket on %s:%d: %w", ip, port, err)
	}
	udpConn := conn.(*net.UDPConn)

	fd, err := connFd(udpConn)
	if err != nil {
		udpConn.Close()
		return nil, fmt.Errorf("getting socket fd: %w", err)
	}

	return &UDPTransport{conn: udpConn, fd: fd}, nil
}

// connFd extracts the raw file descriptor backing a UDP connection so we can
// drive it with golang.org/x/sys/unix the way the recv-timeout and sockaddr
// conversions below need.
func connFd(conn *net.UDPConn) (int, error) {
	sc, err := conn.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	err = sc.Control(func(f uintptr) {
		fd = int(f)
	})
	return fd, err
}

// Send implements Transport.
func (t *UDPTransport) Send(msg sdmsg.Message, peer netip.AddrPort) error {
	sa := sockaddrFromAddrPort(peer)
	if err := unix.Sendto(t.fd, msg.Bytes(), 0, sa); err != nil {
		log.Debugf("send %s to %s failed: %v", msg, peer, err)
		return err
	}
	return nil
}

// TryRecv implements Transport. It blocks for at most timeout.
func (t *UDPTransport) TryRecv(timeout time.Duration) (sdmsg.Message, netip.AddrPort, bool) {
	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(t.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		log.Warningf("setting recv timeout: %v", err)
	}

	buf := make([]byte, maxDatagramSize)
	n, sa, err := unix.Recvfrom(t.fd, buf, 0)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return sdmsg.Unknown, netip.AddrPort{}, false
		}
		log.Debugf("recv error: %v", err)
		return sdmsg.Unknown, netip.AddrPort{}, false
	}

	peer, ok := addrPortFromSockaddr(sa)
	if !ok {
		return sdmsg.Unknown, netip.AddrPort{}, false
	}

	msg, ok := sdmsg.Parse(buf[:n])
	if !ok {
		log.Debugf("dropping datagram with unknown tag from %s", peer)
		return sdmsg.Unknown, peer, false
	}
	return msg, peer, true
}

// Close implements Transport.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}

func sockaddrFromAddrPort(ap netip.AddrPort) unix.Sockaddr {
	addr := ap.Addr()
	if addr.Is4() || addr.Is4In6() {
		return &unix.SockaddrInet4{Port: int(ap.Port()), Addr: addr.As4()}
	}
	return &unix.SockaddrInet6{Port: int(ap.Port()), Addr: addr.As16()}
}

func addrPortFromSockaddr(sa unix.Sockaddr) (netip.AddrPort, bool) {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(s.Addr), uint16(s.Port)), true
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(s.Addr), uint16(s.Port)), true
	default:
		return netip.AddrPort{}, false
	}
}
