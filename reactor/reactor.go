// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral poller types: sources, backends and readiness results.

package reactor

import (
	"fmt"
	"strings"

	"github.com/momentics/hioload-dgram/api"
)

// Backend names the kernel readiness mechanism behind a Poller.
type Backend string

const (
	// BackendEpoll uses epoll(7) and supports level and edge registrations.
	BackendEpoll Backend = "epoll"
	// BackendPoll uses poll(2), a synchronous multiplexing call; level only.
	BackendPoll Backend = "poll"
)

// ParseBackend accepts "epoll" or "poll".
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendEpoll, BackendPoll:
		return b, nil
	case "":
		return BackendEpoll, nil
	default:
		return "", fmt.Errorf("unknown poller backend %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Backend) UnmarshalText(text []byte) error {
	v, err := ParseBackend(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// SupportsEdge reports whether edge-triggered registrations are accepted.
func (b Backend) SupportsEdge() bool {
	return b == BackendEpoll
}

// Source is anything that can be registered with a Poller. Poller.Register
// and friends delegate here, so descriptor-backed and user-space sources are
// handled uniformly.
type Source interface {
	Register(p *Poller, token api.Token, interest api.Interest, mode api.Mode) error
	Reregister(p *Poller, token api.Token, interest api.Interest, mode api.Mode) error
	Deregister(p *Poller) error
}

// FD adapts a raw, non-blocking file descriptor into a Source.
type FD int

// Register implements Source.
func (fd FD) Register(p *Poller, token api.Token, interest api.Interest, mode api.Mode) error {
	return p.registerFD(int(fd), token, interest, mode)
}

// Reregister implements Source.
func (fd FD) Reregister(p *Poller, token api.Token, interest api.Interest, mode api.Mode) error {
	return p.reregisterFD(int(fd), token, interest, mode)
}

// Deregister implements Source.
func (fd FD) Deregister(p *Poller) error {
	return p.deregisterFD(int(fd))
}

// Events is the bounded readiness result of one Wait call.
type Events struct {
	buf []api.Event
}

// NewEvents allocates room for capacity events per Wait.
func NewEvents(capacity int) *Events {
	if capacity < 1 {
		capacity = 1
	}
	return &Events{buf: make([]api.Event, 0, capacity)}
}

// Len returns the number of events reported by the last Wait.
func (e *Events) Len() int { return len(e.buf) }

// Cap returns the maximum number of events a Wait may report.
func (e *Events) Cap() int { return cap(e.buf) }

// At returns the i-th event.
func (e *Events) At(i int) api.Event { return e.buf[i] }

// Slice returns the events of the last Wait. The slice is reused by the next
// Wait call.
func (e *Events) Slice() []api.Event { return e.buf }

// Reset empties the set; Wait calls it before filling.
func (e *Events) Reset() { e.buf = e.buf[:0] }

func (e *Events) room() int { return cap(e.buf) - len(e.buf) }

// Push appends ev and reports false when the set is full. Wait fills the
// set itself; Push serves pollers layered on top of this one.
func (e *Events) Push(ev api.Event) bool {
	if len(e.buf) == cap(e.buf) {
		return false
	}
	e.buf = append(e.buf, ev)
	return true
}

// fdEvent is the kernel-facing form of a readiness report.
type fdEvent struct {
	fd        int
	readiness api.Readiness
}

// selector is the kernel half of a Poller.
type selector interface {
	add(fd int, interest api.Interest, mode api.Mode) error
	modify(fd int, interest api.Interest, mode api.Mode) error
	remove(fd int) error
	// wait fills out with at most len(out) ready descriptors.
	wait(out []fdEvent, timeoutMs int) (int, error)
	close() error
}

// waker interrupts a blocked Wait from another goroutine.
type waker interface {
	fd() int
	wake() error
	drain() error
	close() error
}
