// File: reactor/registration.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// User-space readiness sources: a Registration is registered with a Poller
// like any descriptor, while its SetReadiness half may be driven from any
// goroutine. Delivery goes through the poller's pending list and eventfd.

package reactor

import (
	"sync"

	"github.com/momentics/hioload-dgram/api"
)

// readinessNode is the state shared by a Registration and its SetReadiness.
type readinessNode struct {
	mu        sync.Mutex
	readiness api.Readiness
	poller    *Poller
	token     api.Token
	interest  api.Interest
	mode      api.Mode
	queued    bool // sits in poller.users.pending
}

// Registration is the poller-facing half of a user-space source.
type Registration struct {
	node *readinessNode
}

// SetReadiness is the signalling half of a user-space source.
type SetReadiness struct {
	node *readinessNode
}

// Ensure compile-time interface compliance.
var _ Source = (*Registration)(nil)

// NewRegistration creates a connected Registration / SetReadiness pair.
func NewRegistration() (*Registration, *SetReadiness) {
	n := &readinessNode{}
	return &Registration{node: n}, &SetReadiness{node: n}
}

// Register implements Source.
func (r *Registration) Register(p *Poller, token api.Token, interest api.Interest, mode api.Mode) error {
	n := r.node
	n.mu.Lock()
	switch {
	case n.poller == p:
		n.mu.Unlock()
		return api.RegistrationError("register", api.ErrAlreadyRegistered).WithContext("token", token)
	case n.poller != nil:
		n.mu.Unlock()
		return api.RegistrationError("register", api.ErrAlreadyRegistered).
			WithContext("token", token).
			WithContext("reason", "bound to another poller")
	}
	n.poller = p
	notify := n.bindLocked(token, interest, mode)
	n.mu.Unlock()
	if notify {
		p.users.schedule(n)
	}
	return nil
}

// Reregister implements Source.
func (r *Registration) Reregister(p *Poller, token api.Token, interest api.Interest, mode api.Mode) error {
	n := r.node
	n.mu.Lock()
	if n.poller != p {
		n.mu.Unlock()
		return api.RegistrationError("reregister", api.ErrNotRegistered).WithContext("token", token)
	}
	notify := n.bindLocked(token, interest, mode)
	n.mu.Unlock()
	if notify {
		p.users.schedule(n)
	}
	return nil
}

// Deregister implements Source.
func (r *Registration) Deregister(p *Poller) error {
	n := r.node
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.poller != p {
		return api.RegistrationError("deregister", api.ErrNotRegistered).WithContext("token", n.token)
	}
	n.poller = nil
	return nil
}

// bindLocked stores the registration and reports whether the node must be
// put on the pending list right away.
func (n *readinessNode) bindLocked(token api.Token, interest api.Interest, mode api.Mode) bool {
	n.token = token
	n.interest = interest
	n.mode = mode
	if n.queued || n.readiness.Filter(interest).IsEmpty() {
		return false
	}
	n.queued = true
	return true
}

// Set replaces the readiness of the source. Sets are idempotent and
// coalesce: any number of calls before the next Wait yield a single event.
// Non-blocking and safe from any goroutine; wakes a blocked Wait.
func (s *SetReadiness) Set(r api.Readiness) {
	n := s.node
	n.mu.Lock()
	n.readiness = r
	p := n.poller
	notify := p != nil && !n.queued && !r.Filter(n.interest).IsEmpty()
	if notify {
		n.queued = true
	}
	n.mu.Unlock()
	if notify {
		p.users.schedule(n)
	}
}

// Clear resets readiness. A consumer calls it after handling the event so a
// level-triggered registration is not reported again.
func (s *SetReadiness) Clear() {
	s.Set(api.Readiness{})
}

// Readiness returns the current readiness.
func (s *SetReadiness) Readiness() api.Readiness {
	s.node.mu.Lock()
	defer s.node.mu.Unlock()
	return s.node.readiness
}

// readinessQueue is the poller's list of user-space nodes awaiting delivery.
type readinessQueue struct {
	mu      sync.Mutex
	pending []*readinessNode
	spare   []*readinessNode
}

// schedule appends n and wakes the owning poller.
func (q *readinessQueue) schedule(n *readinessNode) {
	q.mu.Lock()
	q.pending = append(q.pending, n)
	q.mu.Unlock()
	n.mu.Lock()
	p := n.poller
	n.mu.Unlock()
	if p != nil {
		_ = p.Wakeup()
	}
}

func (q *readinessQueue) hasPending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) != 0
}

// collect moves deliverable nodes into events. Level registrations that are
// still ready stay pending so the next Wait reports them again; nodes that do
// not fit are kept for the next Wait.
func (q *readinessQueue) collect(p *Poller, events *Events) {
	q.mu.Lock()
	batch := q.pending
	q.pending = q.spare[:0]
	q.mu.Unlock()

	var keep []*readinessNode
	for i, n := range batch {
		batch[i] = nil
		n.mu.Lock()
		if n.poller != p {
			n.queued = false
			n.mu.Unlock()
			continue
		}
		r := n.readiness.Filter(n.interest)
		if r.IsEmpty() {
			n.queued = false
			n.mu.Unlock()
			continue
		}
		if events.room() == 0 {
			keep = append(keep, n)
			n.mu.Unlock()
			continue
		}
		events.Push(api.Event{Token: n.token, Readiness: r})
		if n.mode == api.ModeLevel {
			keep = append(keep, n)
		} else {
			n.queued = false
		}
		n.mu.Unlock()
	}

	q.mu.Lock()
	q.pending = append(q.pending, keep...)
	q.spare = batch[:0]
	q.mu.Unlock()
}
