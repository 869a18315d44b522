//go:build linux

// File: server/server_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// End-to-end echo over loopback on ephemeral ports.

package server_test

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-dgram/api"
	"github.com/momentics/hioload-dgram/control"
	"github.com/momentics/hioload-dgram/reactor"
	"github.com/momentics/hioload-dgram/server"
)

func testConfig(ports int) *control.Config {
	cfg := control.DefaultConfig()
	cfg.Ports = make([]uint16, ports)
	return cfg
}

// start runs s in the background and returns a function that stops it and
// reports Run's result.
func start(t *testing.T, s *server.Server) func() error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	var result error
	stopped := false
	stop := func() error {
		if stopped {
			return result
		}
		stopped = true
		s.Shutdown()
		select {
		case result = <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
		return result
	}
	t.Cleanup(func() {
		_ = stop()
		_ = s.Close()
	})
	return stop
}

func dialClient(t *testing.T) *net.UDPConn {
	t.Helper()
	c, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func echo(t *testing.T, c *net.UDPConn, to netip.AddrPort, payload string) {
	t.Helper()
	_, err := c.WriteToUDPAddrPort([]byte(payload), to)
	require.NoError(t, err)
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	buf := make([]byte, 2048)
	n, from, err := c.ReadFromUDPAddrPort(buf)
	require.NoError(t, err)
	assert.Equal(t, payload, string(buf[:n]))
	assert.Equal(t, to.Port(), from.Port())
}

func TestServer_Echo(t *testing.T) {
	for _, tc := range []struct {
		mode    api.Mode
		backend reactor.Backend
	}{
		{api.ModeLevel, reactor.BackendEpoll},
		{api.ModeEdge, reactor.BackendEpoll},
		{api.ModeLevel, reactor.BackendPoll},
	} {
		t.Run(fmt.Sprintf("%s-%s", tc.backend, tc.mode), func(t *testing.T) {
			cfg := testConfig(1)
			cfg.Mode, cfg.Backend = tc.mode, tc.backend
			s, err := server.NewServer(cfg)
			require.NoError(t, err)
			stop := start(t, s)

			addr := s.Addrs()[0]
			require.NotZero(t, addr.Port())
			c := dialClient(t)
			for i := 0; i < 20; i++ {
				echo(t, c, addr, fmt.Sprintf("datagram-%02d", i))
			}

			require.NoError(t, stop())
			assert.Equal(t, uint64(20), s.Metrics().Get(control.MetricReceived))
			assert.Equal(t, uint64(20), s.Metrics().Get(control.MetricSent))
			assert.Zero(t, s.Metrics().Get(control.MetricDropped))

			state := s.Probes().DumpState()
			assert.Equal(t, "waiting", state["engine.0.state"])
			assert.Equal(t, 0, state["engine.0.queue_len"])
			assert.Equal(t, string(tc.backend), state["poller.backend"])
		})
	}
}

func TestServer_MultiSocket(t *testing.T) {
	s, err := server.NewServer(testConfig(4))
	require.NoError(t, err)
	stop := start(t, s)

	addrs := s.Addrs()
	require.Len(t, addrs, 4)
	c := dialClient(t)
	for round := 0; round < 3; round++ {
		for i, addr := range addrs {
			echo(t, c, addr, fmt.Sprintf("socket %d round %d", i, round))
		}
	}
	require.NoError(t, stop())
	assert.Equal(t, uint64(12), s.Metrics().Get(control.MetricSent))
	assert.Len(t, s.Engines(), 4)
}

func TestServer_MixedTimer(t *testing.T) {
	cfg := testConfig(1)
	cfg.TimerInterval = control.Duration(5 * time.Millisecond)
	s, err := server.NewServer(cfg, server.WithTimer())
	require.NoError(t, err)
	require.NotNil(t, s.Timer())
	stop := start(t, s)

	echo(t, dialClient(t), s.Addrs()[0], "alongside the timer")
	require.Eventually(t, func() bool {
		return s.Metrics().Get(control.MetricTimerTicks) >= 3
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, stop())
	assert.Positive(t, s.Metrics().Get(control.MetricWakeups))
}

func TestServer_NoTimerWithoutOption(t *testing.T) {
	s, err := server.NewServer(testConfig(1))
	require.NoError(t, err)
	defer s.Close()
	assert.Nil(t, s.Timer())
}

func TestServer_ContextCancel(t *testing.T) {
	s, err := server.NewServer(testConfig(1))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run ignored cancellation")
	}
}

func TestServer_InvalidConfig(t *testing.T) {
	cfg := testConfig(1)
	cfg.Mode, cfg.Backend = api.ModeEdge, reactor.BackendPoll
	_, err := server.NewServer(cfg)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestServer_BindConflict(t *testing.T) {
	first, err := server.NewServer(testConfig(1))
	require.NoError(t, err)
	defer first.Close()

	cfg := testConfig(1)
	cfg.Ports = []uint16{first.Addrs()[0].Port()}
	_, err = server.NewServer(cfg)
	assert.ErrorIs(t, err, api.ErrIO)
}

func TestServer_CloseIdempotent(t *testing.T) {
	s, err := server.NewServer(testConfig(2))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
