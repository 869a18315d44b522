// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"bytes"
	"net/netip"
	"sync"

	"github.com/momentics/hioload-dgram/api"
	"github.com/momentics/hioload-dgram/reactor"
)

var (
	_ api.DatagramSocket = (*Socket)(nil)
	_ reactor.Source     = (*Socket)(nil)
)

// Socket replays scripted inbound datagrams and records transmissions.
// Receives past the script, and sends past SendBudget, report
// api.ErrWouldBlock.
type Socket struct {
	mu    sync.Mutex
	inbox []api.Datagram
	sent  []api.Datagram

	// SendBudget is the number of sends accepted before would-block; a
	// negative value accepts every send.
	SendBudget int
	RecvErr    error
	SendErr    error

	RecvCalls int
	SendCalls int
}

// NewSocket creates a socket with an unlimited send budget.
func NewSocket() *Socket { return &Socket{SendBudget: -1} }

// Push scripts inbound datagrams from peer.
func (s *Socket) Push(peer netip.AddrPort, payloads ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range payloads {
		s.inbox = append(s.inbox, api.Datagram{Payload: []byte(p), Peer: peer})
	}
}

// Pending returns the number of scripted datagrams not yet received.
func (s *Socket) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inbox)
}

// Sent returns copies of the transmitted datagrams in order.
func (s *Socket) Sent() []api.Datagram {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Datagram(nil), s.sent...)
}

// SentPayloads returns the transmitted payloads as strings.
func (s *Socket) SentPayloads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, d := range s.sent {
		out[i] = string(d.Payload)
	}
	return out
}

// RecvFrom implements api.DatagramSocket.
func (s *Socket) RecvFrom(buf []byte) (int, netip.AddrPort, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RecvCalls++
	if s.RecvErr != nil {
		return 0, netip.AddrPort{}, s.RecvErr
	}
	if len(s.inbox) == 0 {
		return 0, netip.AddrPort{}, api.ErrWouldBlock
	}
	d := s.inbox[0]
	s.inbox = s.inbox[1:]
	return copy(buf, d.Payload), d.Peer, nil
}

// SendTo implements api.DatagramSocket.
func (s *Socket) SendTo(buf []byte, peer netip.AddrPort) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendCalls++
	if s.SendErr != nil {
		return 0, s.SendErr
	}
	if s.SendBudget == 0 {
		return 0, api.ErrWouldBlock
	}
	if s.SendBudget > 0 {
		s.SendBudget--
	}
	s.sent = append(s.sent, api.Datagram{Payload: bytes.Clone(buf), Peer: peer})
	return len(buf), nil
}

// Register implements reactor.Source; it never touches the poller.
func (s *Socket) Register(*reactor.Poller, api.Token, api.Interest, api.Mode) error { return nil }

// Reregister implements reactor.Source.
func (s *Socket) Reregister(*reactor.Poller, api.Token, api.Interest, api.Mode) error { return nil }

// Deregister implements reactor.Source.
func (s *Socket) Deregister(*reactor.Poller) error { return nil }
