// File: core/dispatch/dispatcher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Dispatcher fans poller readiness out to the handlers registered under each
// token, then resumes handlers that asked to run again before the next wait.

package dispatch

import (
	"context"
	"time"

	"github.com/momentics/hioload-dgram/api"
	"github.com/momentics/hioload-dgram/control"
	"github.com/momentics/hioload-dgram/reactor"
)

// Poller is the subset of *reactor.Poller the dispatcher drives.
type Poller interface {
	Wait(events *reactor.Events, timeout time.Duration) error
	Wakeup() error
	Wakeups() uint64
}

var _ Poller = (*reactor.Poller)(nil)

// Dispatcher owns the wait / activate / resume loop of one poller. All
// methods except those of the Poller it wraps run on one goroutine.
type Dispatcher struct {
	poller   Poller
	events   *reactor.Events
	handlers map[api.Token]api.Handler
	order    []api.Token
	merged   []api.Event
	slot     map[api.Token]int

	// IdleTimeout bounds a wait when no handler is runnable; negative blocks.
	IdleTimeout time.Duration

	log         *control.Logger
	activations *control.Counter
	resumes     *control.Counter
	unknown     *control.Counter
	wakeups     *control.Counter
	lastWakeups uint64
}

// New creates a dispatcher returning at most maxEvents events per wait.
func New(p Poller, maxEvents int, logger *control.Logger, metrics *control.MetricsRegistry) *Dispatcher {
	return &Dispatcher{
		poller:      p,
		events:      reactor.NewEvents(maxEvents),
		handlers:    make(map[api.Token]api.Handler),
		slot:        make(map[api.Token]int),
		IdleTimeout: -1,
		log:         logger,
		activations: metrics.Counter(control.MetricActivations),
		resumes:     metrics.Counter(control.MetricResumes),
		unknown:     metrics.Counter(control.MetricUnknownToken),
		wakeups:     metrics.Counter(control.MetricWakeups),
	}
}

// Add routes events for token to h.
func (d *Dispatcher) Add(token api.Token, h api.Handler) error {
	if h == nil {
		return api.NewError(api.ErrCodeInvalidArgument, "add handler", api.ErrInvalidArgument).
			WithContext("token", token)
	}
	if _, ok := d.handlers[token]; ok {
		return api.NewError(api.ErrCodeInvalidArgument, "add handler", api.ErrAlreadyRegistered).
			WithContext("token", token)
	}
	d.handlers[token] = h
	d.order = append(d.order, token)
	return nil
}

// Remove drops the handler of token; later events for it are ignored.
func (d *Dispatcher) Remove(token api.Token) {
	if _, ok := d.handlers[token]; !ok {
		return
	}
	delete(d.handlers, token)
	for i, t := range d.order {
		if t == token {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of handlers.
func (d *Dispatcher) Len() int { return len(d.handlers) }

// Turn runs one cycle: wait (without blocking when a handler is runnable),
// activate every ready handler once in poller order, then resume every
// runnable handler once in registration order. The first handler error
// aborts the cycle and is returned.
func (d *Dispatcher) Turn() error {
	timeout := d.IdleTimeout
	if d.anyRunnable() {
		timeout = 0
	}
	if err := d.poller.Wait(d.events, timeout); err != nil {
		return err
	}
	if w := d.poller.Wakeups(); w != d.lastWakeups {
		d.wakeups.Add(w - d.lastWakeups)
		d.lastWakeups = w
	}

	for _, ev := range d.coalesce(d.events.Slice()) {
		h, ok := d.handlers[ev.Token]
		if !ok {
			d.unknown.Inc()
			d.log.Debug().Uint64("token", uint64(ev.Token)).Stringer("readiness", ev.Readiness).Log("event for unknown token ignored")
			continue
		}
		d.activations.Inc()
		if err := h.Activate(ev.Readiness); err != nil {
			return err
		}
	}

	for _, token := range d.order {
		h := d.handlers[token]
		if !h.Runnable() {
			continue
		}
		d.resumes.Inc()
		if err := h.Resume(); err != nil {
			return err
		}
	}
	return nil
}

// Run loops Turn until ctx is cancelled, returning nil, or a turn fails.
// Cancellation wakes a blocked wait through Poller.Wakeup.
func (d *Dispatcher) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = d.poller.Wakeup()
	})
	defer stop()

	d.log.Info().Int("handlers", len(d.handlers)).Log("dispatcher started")
	for ctx.Err() == nil {
		if err := d.Turn(); err != nil {
			d.log.Err().Err(err).Log("dispatcher stopped")
			return err
		}
	}
	d.log.Info().Log("dispatcher stopped")
	return nil
}

func (d *Dispatcher) anyRunnable() bool {
	for _, token := range d.order {
		if d.handlers[token].Runnable() {
			return true
		}
	}
	return false
}

// coalesce merges events that share a token, keeping first-seen order, so
// each handler is activated at most once per turn.
func (d *Dispatcher) coalesce(events []api.Event) []api.Event {
	d.merged = d.merged[:0]
	clear(d.slot)
	for _, ev := range events {
		if i, ok := d.slot[ev.Token]; ok {
			d.merged[i].Readiness = d.merged[i].Readiness.Union(ev.Readiness)
			continue
		}
		d.slot[ev.Token] = len(d.merged)
		d.merged = append(d.merged, ev)
	}
	return d.merged
}
