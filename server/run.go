// File: server/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Run loop and shutdown.

package server

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-dgram/affinity"
)

// Run drives the dispatcher on the calling goroutine, locked to its OS
// thread, until ctx is cancelled, Shutdown is called, or a fatal error
// occurs. The timer helper goroutine, if any, is supervised alongside.
// A clean stop returns nil.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if s.cfg.CPU >= 0 {
		orig, err := affinity.Allowed()
		if err != nil {
			return err
		}
		if err := affinity.SetAffinity(s.cfg.CPU); err != nil {
			return err
		}
		// the thread goes back to the runtime's pool after Unlock
		defer func() {
			if err := affinity.Restore(orig); err != nil {
				s.log.Warning().Err(err).Log("restore cpu affinity")
			}
		}()
		s.log.Info().Int("cpu", s.cfg.CPU).Log("poller thread pinned")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	if s.timer != nil {
		g.Go(func() error { return s.timer.Run(gctx) })
	}

	s.log.Info().Int("sockets", len(s.sockets)).Bool("timer", s.timer != nil).Log("server running")
	err := s.dispatcher.Run(gctx)
	cancel()
	if werr := g.Wait(); werr != nil && !errors.Is(werr, context.Canceled) {
		err = errors.Join(err, werr)
	}
	if err != nil {
		s.log.Err().Err(err).Log("server stopped")
		return err
	}
	s.log.Info().Log("server stopped")
	return nil
}

// Shutdown asks a running Run to return. Safe from any goroutine and
// idempotent.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() { close(s.shutdown) })
}
