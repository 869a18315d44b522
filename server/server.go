// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server assembly: sockets, poller, engines and dispatcher built from a
// control.Config.

package server

import (
	"errors"
	"fmt"

	"github.com/momentics/hioload-dgram/api"
	"github.com/momentics/hioload-dgram/control"
	"github.com/momentics/hioload-dgram/core/dispatch"
	"github.com/momentics/hioload-dgram/core/engine"
	"github.com/momentics/hioload-dgram/pool"
	"github.com/momentics/hioload-dgram/reactor"
	"github.com/momentics/hioload-dgram/transport/udp"
)

// NewServer binds one socket per configured port and registers an echo
// engine for each with a fresh poller. Socket i is registered under token i;
// the timer, when enabled, takes the token after the last socket.
func NewServer(cfg *control.Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = control.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	addrs, err := cfg.Addrs()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		shutdown: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = control.NewMetricsRegistry()
	}
	if s.probes == nil {
		s.probes = control.NewDebugProbes()
	}

	s.poller, err = reactor.NewPoller(cfg.Backend, cfg.MaxEvents)
	if err != nil {
		return nil, err
	}
	s.dispatcher = dispatch.New(s.poller, cfg.MaxEvents, s.log, s.metrics)

	buffers := pool.NewBytePool(cfg.MaxMessageSize)
	for i, addr := range addrs {
		sock, err := udp.Bind(addr)
		if err != nil {
			return nil, errors.Join(api.IOError("bind", err).WithContext("addr", addr.String()), s.Close())
		}
		s.sockets = append(s.sockets, sock)

		eng := engine.New(s.poller, sock, engine.Options{
			Token:         api.Token(i),
			Mode:          cfg.Mode,
			QueueCapacity: cfg.MaxOutgoingMessages,
			Buffers:       buffers,
			DrainLimit:    cfg.DrainLimit,
			Logger:        s.log,
			Metrics:       s.metrics,
			DropLogRate:   cfg.DropLogRate,
		})
		if err := eng.Register(); err != nil {
			return nil, errors.Join(err, s.Close())
		}
		if err := s.dispatcher.Add(eng.Token(), eng); err != nil {
			return nil, errors.Join(err, s.Close())
		}
		s.engines = append(s.engines, eng)
		s.log.Info().
			Uint64("token", uint64(eng.Token())).
			Stringer("addr", sock.LocalAddr()).
			Stringer("mode", cfg.Mode).
			Str("backend", string(cfg.Backend)).
			Log("socket registered")
	}

	if s.withTimer && cfg.TimerInterval > 0 {
		if err := s.addTimer(api.Token(len(s.sockets))); err != nil {
			return nil, errors.Join(err, s.Close())
		}
	}
	s.registerProbes()
	return s, nil
}

func (s *Server) addTimer(token api.Token) error {
	s.timer = NewPeriodicTimer(s.cfg.TimerInterval.Std())
	if err := s.poller.Register(s.timer.Registration(), token, api.InterestRead, s.cfg.Mode); err != nil {
		return err
	}
	ticks := s.metrics.Counter(control.MetricTimerTicks)
	s.timerHook = dispatch.NewSignalHandler(s.timer.SetReadiness(), func(api.Readiness) error {
		ticks.Inc()
		s.log.Info().Uint64("token", uint64(token)).Uint64("ticks", ticks.Load()).Log("timer fired")
		return nil
	})
	if err := s.dispatcher.Add(token, s.timerHook); err != nil {
		return err
	}
	s.log.Info().Uint64("token", uint64(token)).Dur("interval", s.cfg.TimerInterval.Std()).Log("timer registered")
	return nil
}

func (s *Server) registerProbes() {
	s.probes.RegisterMetrics(s.metrics)
	s.probes.RegisterProbe("poller.backend", func() any { return string(s.poller.Backend()) })
	s.probes.RegisterProbe("poller.wakeups", func() any { return s.poller.Wakeups() })
	for _, eng := range s.engines {
		eng := eng
		prefix := fmt.Sprintf("engine.%d.", eng.Token())
		s.probes.RegisterProbe(prefix+"state", func() any { return eng.State().String() })
		s.probes.RegisterProbe(prefix+"queue_len", func() any { return eng.QueueLen() })
		s.probes.RegisterProbe(prefix+"interest", func() any { return eng.Interest().String() })
	}
}

// Close deregisters and closes every socket and then the poller. It is
// idempotent; call it after Run has returned.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		for _, sock := range s.sockets {
			if s.poller != nil {
				// sockets that failed registration are simply not known
				if err := s.poller.Deregister(sock); err != nil && !errors.Is(err, api.ErrNotRegistered) {
					errs = append(errs, err)
				}
			}
			errs = append(errs, sock.Close())
		}
		if s.poller != nil {
			errs = append(errs, s.poller.Close())
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
