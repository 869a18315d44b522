//go:build !linux
// +build !linux

// File: transport/udp/socket_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package udp

import (
	"errors"
	"net/netip"

	"github.com/momentics/hioload-dgram/api"
	"github.com/momentics/hioload-dgram/reactor"
)

var errUnsupported = errors.Join(errors.New("udp: this platform is not supported"), api.ErrNotSupported)

// Socket is unavailable on this platform.
type Socket struct{}

// Bind always fails on this platform.
func Bind(netip.AddrPort) (*Socket, error) { return nil, errUnsupported }

func (s *Socket) Fd() int                   { return -1 }
func (s *Socket) LocalAddr() netip.AddrPort { return netip.AddrPort{} }
func (s *Socket) Close() error              { return errUnsupported }

func (s *Socket) RecvFrom([]byte) (int, netip.AddrPort, error) {
	return 0, netip.AddrPort{}, errUnsupported
}

func (s *Socket) SendTo([]byte, netip.AddrPort) (int, error) { return 0, errUnsupported }

func (s *Socket) Register(*reactor.Poller, api.Token, api.Interest, api.Mode) error {
	return errUnsupported
}

func (s *Socket) Reregister(*reactor.Poller, api.Token, api.Interest, api.Mode) error {
	return errUnsupported
}

func (s *Socket) Deregister(*reactor.Poller) error { return errUnsupported }
