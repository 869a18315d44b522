package engine

import (
	"bytes"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-dgram/api"
	"github.com/momentics/hioload-dgram/control"
	"github.com/momentics/hioload-dgram/fake"
	"github.com/momentics/hioload-dgram/pool"
)

var (
	peerA = netip.MustParseAddrPort("127.0.0.1:40001")
	peerB = netip.MustParseAddrPort("127.0.0.1:40002")
)

type fixture struct {
	eng     *Engine
	sock    *fake.Socket
	reg     *fake.Registrar
	metrics *control.MetricsRegistry
}

func newFixture(t *testing.T, mode api.Mode, mutate ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		sock:    fake.NewSocket(),
		reg:     &fake.Registrar{},
		metrics: control.NewMetricsRegistry(),
	}
	opts := Options{
		Token:         1,
		Mode:          mode,
		QueueCapacity: 8,
		Buffers:       pool.NewBytePool(1500),
		Metrics:       f.metrics,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	f.eng = New(f.reg, f.sock, opts)
	require.NoError(t, f.eng.Register())
	require.Equal(t, []api.Interest{api.InterestRead}, f.reg.Registered)
	return f
}

func (f *fixture) assertInterestMatchesQueue(t *testing.T) {
	t.Helper()
	want := api.Interest{Read: true, Write: f.eng.QueueLen() > 0}
	assert.Equal(t, want, f.eng.Interest())
	if n := len(f.reg.Reregistered); n > 0 {
		assert.Equal(t, want, f.reg.Reregistered[n-1])
	}
}

var (
	readable = api.Readiness{Readable: true}
	writable = api.Readiness{Writable: true}
	both     = api.Readiness{Readable: true, Writable: true}
)

func TestEngine_LevelEcho(t *testing.T) {
	f := newFixture(t, api.ModeLevel)
	f.sock.Push(peerA, "hello")

	require.NoError(t, f.eng.Activate(readable))
	assert.Equal(t, 1, f.eng.QueueLen())
	assert.Empty(t, f.sock.Sent(), "level mode does not write without writable readiness")
	assert.Equal(t, api.InterestReadWrite, f.eng.Interest())
	assert.Equal(t, StateWaiting, f.eng.State())
	f.assertInterestMatchesQueue(t)

	require.NoError(t, f.eng.Activate(writable))
	require.Len(t, f.sock.Sent(), 1)
	assert.Equal(t, "hello", string(f.sock.Sent()[0].Payload))
	assert.Equal(t, peerA, f.sock.Sent()[0].Peer)
	assert.Equal(t, api.InterestRead, f.eng.Interest())
	assert.Equal(t, []api.Interest{api.InterestReadWrite, api.InterestRead}, f.reg.Reregistered)
	assert.Equal(t, StateWaiting, f.eng.State())
}

func TestEngine_LevelSingleShot(t *testing.T) {
	f := newFixture(t, api.ModeLevel)
	f.sock.Push(peerA, "a", "b", "c")

	require.NoError(t, f.eng.Activate(both))
	assert.Equal(t, 1, f.sock.RecvCalls)
	assert.Equal(t, 1, f.sock.SendCalls)
	assert.Equal(t, []string{"a"}, f.sock.SentPayloads())
	assert.Empty(t, f.reg.Reregistered, "interest did not change")
	assert.False(t, f.eng.Runnable())

	require.NoError(t, f.eng.Activate(both))
	require.NoError(t, f.eng.Activate(both))
	assert.Equal(t, []string{"a", "b", "c"}, f.sock.SentPayloads())
	assert.Equal(t, uint64(3), f.metrics.Get(control.MetricReceived))
	assert.Equal(t, uint64(3), f.metrics.Get(control.MetricSent))
}

func TestEngine_EdgeDrainsUntilWouldBlock(t *testing.T) {
	f := newFixture(t, api.ModeEdge)
	f.sock.Push(peerA, "1", "2", "3", "4", "5")

	require.NoError(t, f.eng.Activate(readable))
	assert.Equal(t, 6, f.sock.RecvCalls, "five datagrams then would-block")
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, f.sock.SentPayloads())
	assert.Zero(t, f.eng.QueueLen())
	assert.Empty(t, f.reg.Reregistered)
	assert.Equal(t, StateRunnable, f.eng.State())

	require.NoError(t, f.eng.Resume())
	assert.Equal(t, StateWaiting, f.eng.State())
	assert.Equal(t, 6, f.sock.RecvCalls, "readable flag was cleared by would-block")

	// resuming a waiting engine is a no-op
	require.NoError(t, f.eng.Resume())
	assert.Equal(t, StateWaiting, f.eng.State())
}

func TestEngine_BoundedQueueDropsNewest(t *testing.T) {
	for _, mode := range []api.Mode{api.ModeLevel, api.ModeEdge} {
		t.Run(mode.String(), func(t *testing.T) {
			f := newFixture(t, mode)
			f.sock.SendBudget = 0
			for i := 0; i < 10; i++ {
				f.sock.Push(peerA, fmt.Sprint(i))
			}

			for i := 0; i < 10 && f.sock.Pending() > 0; i++ {
				require.NoError(t, f.eng.Activate(readable))
				assert.LessOrEqual(t, f.eng.QueueLen(), 8)
				f.assertInterestMatchesQueue(t)
			}
			assert.Zero(t, f.sock.Pending())
			assert.Equal(t, 8, f.eng.QueueLen())
			assert.Equal(t, uint64(10), f.metrics.Get(control.MetricReceived))
			assert.Equal(t, uint64(2), f.metrics.Get(control.MetricDropped))

			f.sock.SendBudget = -1
			for i := 0; i < 8 && f.eng.QueueLen() > 0; i++ {
				require.NoError(t, f.eng.Activate(writable))
			}
			assert.Equal(t, []string{"0", "1", "2", "3", "4", "5", "6", "7"}, f.sock.SentPayloads())
			assert.Equal(t, api.InterestRead, f.eng.Interest())
		})
	}
}

func TestEngine_RequeueOnSendWouldBlock(t *testing.T) {
	f := newFixture(t, api.ModeEdge)
	f.sock.SendBudget = 1
	f.sock.Push(peerA, "x")
	f.sock.Push(peerB, "y", "z")

	require.NoError(t, f.eng.Activate(readable))
	assert.Equal(t, []string{"x"}, f.sock.SentPayloads())
	assert.Equal(t, 2, f.eng.QueueLen())
	assert.Equal(t, uint64(1), f.metrics.Get(control.MetricSendBlocked))
	assert.Equal(t, api.InterestReadWrite, f.eng.Interest())
	f.assertInterestMatchesQueue(t)

	f.sock.SendBudget = -1
	require.NoError(t, f.eng.Activate(writable))
	assert.Equal(t, []string{"x", "y", "z"}, f.sock.SentPayloads())
	assert.Equal(t, peerB, f.sock.Sent()[1].Peer)
	assert.Equal(t, peerB, f.sock.Sent()[2].Peer)
	assert.Equal(t, api.InterestRead, f.eng.Interest())
}

func TestEngine_InterestOnlyReregisteredOnChange(t *testing.T) {
	f := newFixture(t, api.ModeLevel)
	f.sock.SendBudget = 0
	f.sock.Push(peerA, "a", "b", "c")
	for i := 0; i < 3; i++ {
		require.NoError(t, f.eng.Activate(readable))
		f.assertInterestMatchesQueue(t)
	}
	assert.Equal(t, []api.Interest{api.InterestReadWrite}, f.reg.Reregistered)

	f.sock.SendBudget = -1
	for i := 0; i < 3; i++ {
		require.NoError(t, f.eng.Activate(writable))
		f.assertInterestMatchesQueue(t)
	}
	assert.Equal(t, []api.Interest{api.InterestReadWrite, api.InterestRead}, f.reg.Reregistered)
}

func TestEngine_DrainLimit(t *testing.T) {
	f := newFixture(t, api.ModeEdge, func(o *Options) { o.DrainLimit = 2 })
	f.sock.Push(peerA, "1", "2", "3", "4", "5")

	require.NoError(t, f.eng.Activate(readable))
	assert.Equal(t, []string{"1", "2"}, f.sock.SentPayloads())
	assert.True(t, f.eng.Runnable())

	resumes := 0
	for f.eng.Runnable() {
		require.NoError(t, f.eng.Resume())
		resumes++
		require.Less(t, resumes, 10)
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, f.sock.SentPayloads())
	assert.Zero(t, f.sock.Pending())
	assert.Equal(t, StateWaiting, f.eng.State())
}

func TestEngine_TruncatesToBufferSize(t *testing.T) {
	f := newFixture(t, api.ModeEdge, func(o *Options) { o.Buffers = pool.NewBytePool(4) })
	f.sock.Push(peerA, "abcdefgh")
	require.NoError(t, f.eng.Activate(readable))
	assert.Equal(t, []string{"abcd"}, f.sock.SentPayloads())
}

func TestEngine_FatalReceiveError(t *testing.T) {
	f := newFixture(t, api.ModeLevel)
	cause := errors.New("connection refused")
	f.sock.RecvErr = cause

	err := f.eng.Activate(readable)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrIO)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StateFailed, f.eng.State())
	assert.Same(t, err, f.eng.Err())

	// a failed engine stays failed
	assert.Same(t, err, f.eng.Activate(writable))
	assert.Same(t, err, f.eng.Resume())
}

func TestEngine_FatalSendError(t *testing.T) {
	f := newFixture(t, api.ModeEdge)
	f.sock.SendErr = errors.New("message too long")
	f.sock.Push(peerA, "a")

	err := f.eng.Activate(readable)
	assert.ErrorIs(t, err, api.ErrIO)
	assert.Equal(t, api.ErrCodeIO, api.CodeOf(err))
	assert.Equal(t, StateFailed, f.eng.State())
}

func TestEngine_ReregisterFailure(t *testing.T) {
	f := newFixture(t, api.ModeLevel)
	f.reg.Err = api.RegistrationError("reregister", api.ErrNotRegistered)
	f.sock.Push(peerA, "a")

	err := f.eng.Activate(readable)
	assert.ErrorIs(t, err, api.ErrRegistration)
	assert.Equal(t, StateFailed, f.eng.State())
}

func TestEngine_DropWarningsThrottledPerPeer(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t, api.ModeEdge, func(o *Options) {
		o.QueueCapacity = 1
		o.DropLogRate = 1
		o.Logger = control.NewLogger(&buf, logiface.LevelWarning)
	})
	f.sock.SendBudget = 0
	f.sock.Push(peerA, "1", "2", "3", "4")
	f.sock.Push(peerB, "5", "6")

	require.NoError(t, f.eng.Activate(readable))
	assert.Equal(t, uint64(5), f.metrics.Get(control.MetricDropped))
	assert.Equal(t, 2, strings.Count(buf.String(), "outgoing queue full"), "one warning per peer")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "waiting", StateWaiting.String())
	assert.Equal(t, "runnable", StateRunnable.String())
	assert.Equal(t, "failed", StateFailed.String())
}
