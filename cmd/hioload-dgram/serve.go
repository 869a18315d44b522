// File: cmd/hioload-dgram/serve.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-dgram/api"
	"github.com/momentics/hioload-dgram/control"
	"github.com/momentics/hioload-dgram/reactor"
	"github.com/momentics/hioload-dgram/server"
)

// loadConfig reads --config over the defaults and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*control.Config, error) {
	flags := cmd.Flags()
	cfg := control.DefaultConfig()
	if path, _ := flags.GetString("config"); path != "" {
		loaded, err := control.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := flags.GetString("mode"); v != "" {
		m, err := api.ParseMode(v)
		if err != nil {
			return nil, err
		}
		cfg.Mode = m
	}
	if v, _ := flags.GetString("backend"); v != "" {
		b, err := reactor.ParseBackend(v)
		if err != nil {
			return nil, err
		}
		cfg.Backend = b
	}
	if v, _ := flags.GetString("bind"); v != "" {
		cfg.BindAddr = v
	}
	if flags.Changed("cpu") {
		cfg.CPU, _ = flags.GetInt("cpu")
	}
	if flags.Changed("drain-limit") {
		cfg.DrainLimit, _ = flags.GetInt("drain-limit")
	}
	return cfg, nil
}

// serve runs a server until SIGINT/SIGTERM, optionally logging counters
// periodically, and logs the final counters and probe state on exit.
func serve(cmd *cobra.Command, cfg *control.Config, opts ...server.ServerOption) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := control.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := control.NewLogger(os.Stderr, level)
	metrics := control.NewMetricsRegistry()
	probes := control.NewDebugProbes()

	opts = append(opts, server.WithLogger(logger), server.WithMetrics(metrics), server.WithDebugProbes(probes))
	s, err := server.NewServer(cfg, opts...)
	if err != nil {
		logger.Err().Err(err).Log("startup failed")
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warning().Err(err).Log("close failed")
		}
	}()
	printBanner(cmd.OutOrStdout(), cfg, s)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer s.Shutdown()
		return s.Run(gctx)
	})
	if interval, _ := cmd.Flags().GetDuration("stats-interval"); interval > 0 {
		g.Go(func() error {
			reportStats(gctx, logger, metrics, interval)
			return nil
		})
	}
	err = g.Wait()

	logStats(logger, metrics)
	for name, v := range probes.DumpState() {
		logger.Debug().Str("probe", name).Any("value", v).Log("final state")
	}
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func reportStats(ctx context.Context, logger *control.Logger, metrics *control.MetricsRegistry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logStats(logger, metrics)
		}
	}
}

func logStats(logger *control.Logger, metrics *control.MetricsRegistry) {
	b := logger.Info()
	for _, name := range metrics.Names() {
		b = b.Uint64(name, metrics.Get(name))
	}
	b.Log("counters")
}
