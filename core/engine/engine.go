// File: core/engine/engine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Echo engine state machine. Level mode performs at most one receive and one
// transmit per activation; edge mode drains until would-block and asks to be
// resumed while it keeps making progress.

package engine

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	catrate "github.com/joeycumines/go-catrate"

	"github.com/momentics/hioload-dgram/api"
	"github.com/momentics/hioload-dgram/control"
	"github.com/momentics/hioload-dgram/pool"
	"github.com/momentics/hioload-dgram/reactor"
)

// Socket is the datagram endpoint an engine drives.
type Socket interface {
	api.DatagramSocket
	reactor.Source
}

// Registrar is the subset of *reactor.Poller an engine needs.
type Registrar interface {
	Register(src reactor.Source, token api.Token, interest api.Interest, mode api.Mode) error
	Reregister(src reactor.Source, token api.Token, interest api.Interest, mode api.Mode) error
}

// Ensure compile-time interface compliance.
var (
	_ api.Handler = (*Engine)(nil)
	_ Registrar   = (*reactor.Poller)(nil)
)

// State is the scheduling state of an engine.
type State uint8

const (
	// StateWaiting: nothing to do until the poller reports readiness.
	StateWaiting State = iota
	// StateRunnable: the last cycle made progress in edge mode; Resume must
	// run before the next wait.
	StateRunnable
	// StateFailed: a fatal I/O or registration error occurred.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateRunnable:
		return "runnable"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Options configures an Engine.
type Options struct {
	Token api.Token
	Mode  api.Mode
	// QueueCapacity bounds the outgoing queue.
	QueueCapacity int
	// Buffers supplies receive buffers; its Size bounds a datagram.
	Buffers *pool.BytePool
	// DrainLimit caps operations of each kind per edge-mode cycle; 0 means
	// drain until would-block.
	DrainLimit int
	Logger     *control.Logger
	Metrics    *control.MetricsRegistry
	// DropLogRate limits drop warnings per peer per second; 0 logs all.
	DropLogRate int
}

// Engine echoes every datagram received on its socket back to the sender.
type Engine struct {
	reg   Registrar
	sock  Socket
	token api.Token
	mode  api.Mode

	queue      *pool.OutgoingQueue
	buffers    *pool.BytePool
	drainLimit int

	readable bool
	writable bool
	interest api.Interest
	state    State
	err      error

	log   *control.Logger
	drops *catrate.Limiter

	received *control.Counter
	sent     *control.Counter
	dropped  *control.Counter
	blocked  *control.Counter
}

// New creates an engine for sock. Call Register before the first wait.
func New(reg Registrar, sock Socket, opts Options) *Engine {
	buffers := opts.Buffers
	if buffers == nil {
		buffers = pool.NewBytePool(control.DefaultMaxMessageSize)
	}
	capacity := opts.QueueCapacity
	if capacity < 1 {
		capacity = control.DefaultMaxOutgoingMessages
	}
	e := &Engine{
		reg:        reg,
		sock:       sock,
		token:      opts.Token,
		mode:       opts.Mode,
		queue:      pool.NewOutgoingQueue(capacity),
		buffers:    buffers,
		drainLimit: opts.DrainLimit,
		log:        opts.Logger,
		received:   opts.Metrics.Counter(control.MetricReceived),
		sent:       opts.Metrics.Counter(control.MetricSent),
		dropped:    opts.Metrics.Counter(control.MetricDropped),
		blocked:    opts.Metrics.Counter(control.MetricSendBlocked),
	}
	if opts.DropLogRate > 0 {
		e.drops = catrate.NewLimiter(map[time.Duration]int{time.Second: opts.DropLogRate})
	}
	return e
}

// Register adds the socket to the poller with read interest.
func (e *Engine) Register() error {
	if err := e.reg.Register(e.sock, e.token, api.InterestRead, e.mode); err != nil {
		return e.fail(err)
	}
	e.interest = api.InterestRead
	return nil
}

// Token returns the token the socket is registered under.
func (e *Engine) Token() api.Token { return e.token }

// State returns the scheduling state.
func (e *Engine) State() State { return e.state }

// Interest returns the interest last registered with the poller.
func (e *Engine) Interest() api.Interest { return e.interest }

// QueueLen returns the number of datagrams awaiting transmission.
func (e *Engine) QueueLen() int { return e.queue.Len() }

// Err returns the fatal error, if any.
func (e *Engine) Err() error { return e.err }

// Runnable implements api.Handler.
func (e *Engine) Runnable() bool { return e.state == StateRunnable }

// Activate implements api.Handler: it folds r into the readiness flags and
// runs one cycle.
func (e *Engine) Activate(r api.Readiness) error {
	if e.state == StateFailed {
		return e.err
	}
	if r.Readable {
		e.readable = true
	}
	if r.Writable {
		e.writable = true
	}
	return e.cycle()
}

// Resume implements api.Handler: it continues a runnable engine with the
// readiness it still believes it has.
func (e *Engine) Resume() error {
	switch e.state {
	case StateFailed:
		return e.err
	case StateRunnable:
		e.state = StateWaiting
		return e.cycle()
	default:
		return nil
	}
}

func (e *Engine) cycle() error {
	progress, err := e.receive()
	if err != nil {
		return e.fail(err)
	}
	sent, err := e.transmit()
	if err != nil {
		return e.fail(err)
	}
	progress = progress || sent

	if e.mode == api.ModeLevel {
		// level readiness is re-reported by the next wait
		e.readable, e.writable = false, false
	}

	if err := e.syncInterest(); err != nil {
		return e.fail(err)
	}

	if e.mode == api.ModeEdge && progress {
		e.state = StateRunnable
	} else {
		e.state = StateWaiting
	}
	return nil
}

// receive reads datagrams while readable: once in level mode, until
// would-block or the drain limit in edge mode.
func (e *Engine) receive() (bool, error) {
	progress := false
	for n := 0; e.readable && e.withinLimit(n); n++ {
		buf := e.buffers.Get()
		size, peer, err := e.sock.RecvFrom(buf)
		if errors.Is(err, api.ErrWouldBlock) {
			e.buffers.Put(buf)
			e.readable = false
			break
		}
		if err != nil {
			e.buffers.Put(buf)
			return progress, api.IOError("recvfrom", err).WithContext("token", e.token)
		}
		progress = true
		e.received.Inc()
		e.log.Debug().Uint64("token", uint64(e.token)).Int("bytes", size).Stringer("peer", peer).Log("datagram received")

		d := api.Datagram{Payload: buf[:size], Peer: peer}
		if e.queue.Enqueue(d) == api.Dropped {
			e.buffers.Put(buf)
			e.dropped.Inc()
			e.logDrop(peer, size)
		} else if e.mode == api.ModeEdge {
			// writability is only polled for after a would-block
			e.writable = true
		}
		if e.mode == api.ModeLevel {
			break
		}
	}
	return progress, nil
}

// transmit sends queued datagrams while writable, putting a would-block
// datagram back at the front.
func (e *Engine) transmit() (bool, error) {
	progress := false
	for n := 0; e.writable && e.withinLimit(n); n++ {
		d, ok := e.queue.DequeueFront()
		if !ok {
			break
		}
		size, err := e.sock.SendTo(d.Payload, d.Peer)
		if errors.Is(err, api.ErrWouldBlock) {
			e.queue.RequeueFront(d)
			e.writable = false
			e.blocked.Inc()
			break
		}
		if err != nil {
			e.buffers.Put(d.Payload)
			return progress, api.IOError("sendto", err).
				WithContext("token", e.token).
				WithContext("peer", d.Peer.String())
		}
		progress = true
		e.sent.Inc()
		e.log.Debug().Uint64("token", uint64(e.token)).Int("bytes", size).Stringer("peer", d.Peer).Log("datagram sent")
		e.buffers.Put(d.Payload)
		if e.mode == api.ModeLevel {
			break
		}
	}
	return progress, nil
}

func (e *Engine) withinLimit(n int) bool {
	return e.drainLimit <= 0 || n < e.drainLimit
}

// syncInterest asks for Write only while replies are pending and reregisters
// only when the mask changes.
func (e *Engine) syncInterest() error {
	want := api.Interest{Read: true, Write: !e.queue.IsEmpty()}
	if want == e.interest {
		return nil
	}
	if err := e.reg.Reregister(e.sock, e.token, want, e.mode); err != nil {
		return err
	}
	e.interest = want
	return nil
}

func (e *Engine) logDrop(peer netip.AddrPort, size int) {
	if _, ok := e.drops.Allow(peer); !ok {
		return
	}
	e.log.Warning().
		Uint64("token", uint64(e.token)).
		Stringer("peer", peer).
		Int("bytes", size).
		Int("queue_len", e.queue.Len()).
		Log("outgoing queue full, datagram dropped")
}

func (e *Engine) fail(err error) error {
	e.state = StateFailed
	e.err = err
	e.log.Err().Err(err).Uint64("token", uint64(e.token)).Log("engine failed")
	return err
}
