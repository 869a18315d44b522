// File: server/options.go
// Package server defines functional options for the Server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "github.com/momentics/hioload-dgram/control"

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithLogger sets the logger shared by the poller loop and engines.
func WithLogger(l *control.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithMetrics records counters into mr instead of a private registry.
func WithMetrics(mr *control.MetricsRegistry) ServerOption {
	return func(s *Server) {
		s.metrics = mr
	}
}

// WithDebugProbes installs the server probes into dp.
func WithDebugProbes(dp *control.DebugProbes) ServerOption {
	return func(s *Server) {
		s.probes = dp
	}
}

// WithTimer adds the periodic user-space timer source, ticking every
// Config.TimerInterval, alongside the sockets.
func WithTimer() ServerOption {
	return func(s *Server) {
		s.withTimer = true
	}
}
