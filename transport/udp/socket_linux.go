//go:build linux
// +build linux

// File: transport/udp/socket_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux datagram socket opened with SOCK_NONBLOCK and driven with
// recvfrom(2)/sendto(2) through golang.org/x/sys/unix.

package udp

import (
	"errors"
	"fmt"
	"net/netip"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-dgram/api"
	"github.com/momentics/hioload-dgram/reactor"
)

// Ensure compile-time interface compliance.
var (
	_ api.DatagramSocket = (*Socket)(nil)
	_ reactor.Source     = (*Socket)(nil)
)

// Socket is a bound, non-blocking UDP socket.
type Socket struct {
	fd    int
	local netip.AddrPort
}

// Bind opens a non-blocking UDP socket bound to addr. Port 0 picks an
// ephemeral port; LocalAddr reports the result.
func Bind(addr netip.AddrPort) (*Socket, error) {
	if !addr.IsValid() {
		return nil, fmt.Errorf("udp bind %s: %w", addr, api.ErrInvalidArgument)
	}
	addr = netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
	domain := unix.AF_INET
	if addr.Addr().Is6() {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	if err := unix.Bind(fd, toSockaddr(addr)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("udp bind %s: %w", addr, err)
	}
	sa, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("getsockname: %w", err)
	}
	return &Socket{fd: fd, local: fromSockaddr(sa)}, nil
}

// Fd returns the underlying descriptor.
func (s *Socket) Fd() int { return s.fd }

// LocalAddr returns the bound address.
func (s *Socket) LocalAddr() netip.AddrPort { return s.local }

// RecvFrom reads one datagram into buf. A datagram longer than buf is
// truncated by the kernel.
func (s *Socket) RecvFrom(buf []byte) (int, netip.AddrPort, error) {
	for {
		n, from, err := unix.Recvfrom(s.fd, buf, 0)
		switch {
		case err == nil:
			return n, fromSockaddr(from), nil
		case err == unix.EINTR:
			continue
		case isWouldBlock(err):
			return 0, netip.AddrPort{}, api.ErrWouldBlock
		default:
			return 0, netip.AddrPort{}, fmt.Errorf("recvfrom: %w", err)
		}
	}
}

// SendTo transmits buf as one datagram to peer.
func (s *Socket) SendTo(buf []byte, peer netip.AddrPort) (int, error) {
	sa := toSockaddr(peer)
	for {
		err := unix.Sendto(s.fd, buf, 0, sa)
		switch {
		case err == nil:
			return len(buf), nil
		case err == unix.EINTR:
			continue
		case isWouldBlock(err):
			return 0, api.ErrWouldBlock
		default:
			return 0, fmt.Errorf("sendto %s: %w", peer, err)
		}
	}
}

// Close closes the descriptor. Deregister from any poller first.
func (s *Socket) Close() error {
	return unix.Close(s.fd)
}

// Register implements reactor.Source.
func (s *Socket) Register(p *reactor.Poller, token api.Token, interest api.Interest, mode api.Mode) error {
	return reactor.FD(s.fd).Register(p, token, interest, mode)
}

// Reregister implements reactor.Source.
func (s *Socket) Reregister(p *reactor.Poller, token api.Token, interest api.Interest, mode api.Mode) error {
	return reactor.FD(s.fd).Reregister(p, token, interest, mode)
}

// Deregister implements reactor.Source.
func (s *Socket) Deregister(p *reactor.Poller) error {
	return reactor.FD(s.fd).Deregister(p)
}

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

func toSockaddr(ap netip.AddrPort) unix.Sockaddr {
	addr := ap.Addr()
	if addr.Is4() || addr.Is4In6() {
		return &unix.SockaddrInet4{Port: int(ap.Port()), Addr: addr.Unmap().As4()}
	}
	return &unix.SockaddrInet6{Port: int(ap.Port()), Addr: addr.As16()}
}

func fromSockaddr(sa unix.Sockaddr) netip.AddrPort {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr).Unmap(), uint16(sa.Port))
	default:
		return netip.AddrPort{}
	}
}
