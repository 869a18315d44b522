// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-dgram/control"
	"github.com/momentics/hioload-dgram/core/dispatch"
	"github.com/momentics/hioload-dgram/core/engine"
	"github.com/momentics/hioload-dgram/reactor"
	"github.com/momentics/hioload-dgram/transport/udp"
)

// ErrAlreadyRunning is returned by a second concurrent Run.
var ErrAlreadyRunning = errors.New("server already running")

// Server is one poller, its dispatcher, one echo engine per bound socket and
// an optional periodic timer, all driven by the goroutine calling Run.
type Server struct {
	cfg *control.Config

	poller     *reactor.Poller
	dispatcher *dispatch.Dispatcher
	sockets    []*udp.Socket
	engines    []*engine.Engine
	timer      *PeriodicTimer
	timerHook  *dispatch.SignalHandler

	log     *control.Logger
	metrics *control.MetricsRegistry
	probes  *control.DebugProbes

	running   atomic.Bool
	shutdown  chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
	closeErr  error

	withTimer bool
}

// Addrs returns the bound address of every socket, in token order.
func (s *Server) Addrs() []netip.AddrPort {
	out := make([]netip.AddrPort, len(s.sockets))
	for i, sock := range s.sockets {
		out[i] = sock.LocalAddr()
	}
	return out
}

// Engines returns the echo engines in token order.
func (s *Server) Engines() []*engine.Engine { return s.engines }

// Metrics returns the registry the server records into.
func (s *Server) Metrics() *control.MetricsRegistry { return s.metrics }

// Probes returns the debug probe registry. Dump it only while Run is not
// executing; the engine probes read loop-owned state.
func (s *Server) Probes() *control.DebugProbes { return s.probes }

// Timer returns the periodic timer, or nil when none is configured.
func (s *Server) Timer() *PeriodicTimer { return s.timer }
