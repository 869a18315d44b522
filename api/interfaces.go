// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package api

import (
	"net/netip"
)

// DatagramSocket abstracts a non-blocking connectionless endpoint.
// Both methods return immediately; ErrWouldBlock means no progress is
// currently possible and is not a failure.
type DatagramSocket interface {
	RecvFrom(buf []byte) (n int, peer netip.AddrPort, err error)
	SendTo(buf []byte, peer netip.AddrPort) (n int, err error)
}

// Handler is a dispatch target bound to one token.
//
// Activate is called at most once per wait with the readiness reported for
// the token. A handler that needs to run again without waiting reports
// Runnable, and is then driven through Resume after the current fan-out.
type Handler interface {
	Activate(r Readiness) error
	Runnable() bool
	Resume() error
}

// BytePool defines a reusable buffer pool for datagram payloads.
type BytePool interface {
	Get() []byte
	Put([]byte)
}
