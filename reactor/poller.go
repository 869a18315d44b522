// File: reactor/poller.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Poller: registration table plus one blocking Wait over kernel and
// user-space readiness sources.

package reactor

import (
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-dgram/api"
)

// fdReg is the registration table entry for one descriptor.
type fdReg struct {
	token    api.Token
	interest api.Interest
	mode     api.Mode
}

// Poller blocks until registered sources become ready.
//
// The registration table is owned by the goroutine that calls Wait; it is
// read and mutated only between waits.
type Poller struct {
	backend Backend
	sel     selector
	waker   waker
	fds     map[int]fdReg
	users   readinessQueue
	fdbuf   []fdEvent
	wakeups atomic.Uint64
	closed  atomic.Bool
}

// NewPoller creates a Poller on the given backend. maxEvents bounds the
// kernel batch size of one Wait.
func NewPoller(backend Backend, maxEvents int) (*Poller, error) {
	if maxEvents < 1 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "new poller", api.ErrInvalidArgument).
			WithContext("max_events", maxEvents)
	}
	sel, err := newSelector(backend, maxEvents)
	if err != nil {
		return nil, api.PollError("new poller", err).WithContext("backend", string(backend))
	}
	w, err := newWaker()
	if err != nil {
		_ = sel.close()
		return nil, api.PollError("new waker", err)
	}
	if err := sel.add(w.fd(), api.InterestRead, api.ModeLevel); err != nil {
		_ = w.close()
		_ = sel.close()
		return nil, api.PollError("register waker", err)
	}
	return &Poller{
		backend: backend,
		sel:     sel,
		waker:   w,
		fds:     make(map[int]fdReg),
		fdbuf:   make([]fdEvent, maxEvents),
	}, nil
}

// Backend reports the kernel mechanism in use.
func (p *Poller) Backend() Backend { return p.backend }

// Register associates src with token and interest.
func (p *Poller) Register(src Source, token api.Token, interest api.Interest, mode api.Mode) error {
	if p.closed.Load() {
		return api.RegistrationError("register", api.ErrPollerClosed)
	}
	return src.Register(p, token, interest, mode)
}

// Reregister replaces the interest set of an already registered source.
// The change is in effect for the next Wait.
func (p *Poller) Reregister(src Source, token api.Token, interest api.Interest, mode api.Mode) error {
	if p.closed.Load() {
		return api.RegistrationError("reregister", api.ErrPollerClosed)
	}
	return src.Reregister(p, token, interest, mode)
}

// Deregister removes src from the poller.
func (p *Poller) Deregister(src Source) error {
	if p.closed.Load() {
		return api.RegistrationError("deregister", api.ErrPollerClosed)
	}
	return src.Deregister(p)
}

// Wait blocks until at least one registered source is ready, the timeout
// elapses, or Wakeup is called. A negative timeout blocks indefinitely.
// events is reset first and receives at most events.Cap() entries; readiness
// that does not fit is reported by a later Wait.
//
// Wait may return with no events after a Wakeup or a timeout. Any error is
// an unrecoverable *api.Error with code ErrCodePoll.
func (p *Poller) Wait(events *Events, timeout time.Duration) error {
	events.Reset()
	if p.closed.Load() {
		return api.PollError("wait", api.ErrPollerClosed)
	}
	if p.users.hasPending() {
		timeout = 0
	}

	room := min(events.Cap(), len(p.fdbuf))
	n, err := p.sel.wait(p.fdbuf[:room], timeoutMillis(timeout))
	if err != nil {
		return api.PollError("wait", err).WithContext("backend", string(p.backend))
	}

	for _, fe := range p.fdbuf[:n] {
		if fe.fd == p.waker.fd() {
			p.wakeups.Add(1)
			if err := p.waker.drain(); err != nil {
				return api.PollError("drain waker", err)
			}
			continue
		}
		reg, ok := p.fds[fe.fd]
		if !ok {
			// deregistered while the kernel batch was in flight
			continue
		}
		r := fe.readiness.Filter(reg.interest)
		if r.IsEmpty() {
			continue
		}
		events.Push(api.Event{Token: reg.token, Readiness: r})
	}

	p.users.collect(p, events)
	return nil
}

// Wakeup makes a blocked Wait return promptly. Safe from any goroutine.
func (p *Poller) Wakeup() error {
	if p.closed.Load() {
		return api.ErrPollerClosed
	}
	return p.waker.wake()
}

// Wakeups returns how many times a Wait observed the waker.
func (p *Poller) Wakeups() uint64 { return p.wakeups.Load() }

// Close releases the kernel resources. Registered descriptors are not closed.
func (p *Poller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return errors.Join(p.waker.close(), p.sel.close())
}

func (p *Poller) registerFD(fd int, token api.Token, interest api.Interest, mode api.Mode) error {
	if fd < 0 || fd == p.waker.fd() {
		return api.RegistrationError("register", api.ErrInvalidArgument).WithContext("fd", fd)
	}
	if mode == api.ModeEdge && !p.backend.SupportsEdge() {
		return api.RegistrationError("register", api.ErrNotSupported).
			WithContext("backend", string(p.backend)).
			WithContext("mode", mode.String())
	}
	if _, ok := p.fds[fd]; ok {
		return api.RegistrationError("register", api.ErrAlreadyRegistered).WithContext("fd", fd)
	}
	if err := p.sel.add(fd, interest, mode); err != nil {
		return api.RegistrationError("register", err).WithContext("fd", fd)
	}
	p.fds[fd] = fdReg{token: token, interest: interest, mode: mode}
	return nil
}

func (p *Poller) reregisterFD(fd int, token api.Token, interest api.Interest, mode api.Mode) error {
	if _, ok := p.fds[fd]; !ok {
		return api.RegistrationError("reregister", api.ErrNotRegistered).WithContext("fd", fd)
	}
	if mode == api.ModeEdge && !p.backend.SupportsEdge() {
		return api.RegistrationError("reregister", api.ErrNotSupported).
			WithContext("backend", string(p.backend))
	}
	if err := p.sel.modify(fd, interest, mode); err != nil {
		return api.RegistrationError("reregister", err).WithContext("fd", fd)
	}
	p.fds[fd] = fdReg{token: token, interest: interest, mode: mode}
	return nil
}

func (p *Poller) deregisterFD(fd int) error {
	if _, ok := p.fds[fd]; !ok {
		return api.RegistrationError("deregister", api.ErrNotRegistered).WithContext("fd", fd)
	}
	delete(p.fds, fd)
	if err := p.sel.remove(fd); err != nil {
		return api.RegistrationError("deregister", err).WithContext("fd", fd)
	}
	return nil
}

// timeoutMillis converts a Wait timeout to the kernel convention:
// -1 blocks, sub-millisecond positive values round up so they do not spin.
func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}
