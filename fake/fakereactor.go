// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-dgram/api"
	"github.com/momentics/hioload-dgram/reactor"
)

// Registrar records the interest masks registered for sources.
type Registrar struct {
	Registered   []api.Interest
	Reregistered []api.Interest
	// Err, when set, fails every call.
	Err error
}

// Register records interest.
func (r *Registrar) Register(_ reactor.Source, _ api.Token, interest api.Interest, _ api.Mode) error {
	if r.Err != nil {
		return r.Err
	}
	r.Registered = append(r.Registered, interest)
	return nil
}

// Reregister records interest.
func (r *Registrar) Reregister(_ reactor.Source, _ api.Token, interest api.Interest, _ api.Mode) error {
	if r.Err != nil {
		return r.Err
	}
	r.Reregistered = append(r.Reregistered, interest)
	return nil
}

// Poller hands out one scripted batch per Wait. Once the script is exhausted
// a zero timeout returns empty and any other timeout blocks until Wakeup.
type Poller struct {
	mu       sync.Mutex
	batches  [][]api.Event
	timeouts []time.Duration
	wake     chan struct{}
	wakeups  uint64
}

// NewPoller creates a poller replaying batches in order.
func NewPoller(batches ...[]api.Event) *Poller {
	return &Poller{batches: batches, wake: make(chan struct{}, 1)}
}

// Wait implements the dispatcher's poller contract.
func (p *Poller) Wait(events *reactor.Events, timeout time.Duration) error {
	events.Reset()
	p.mu.Lock()
	p.timeouts = append(p.timeouts, timeout)
	if len(p.batches) > 0 {
		batch := p.batches[0]
		p.batches = p.batches[1:]
		p.mu.Unlock()
		for _, ev := range batch {
			events.Push(ev)
		}
		return nil
	}
	p.mu.Unlock()
	if timeout == 0 {
		return nil
	}
	<-p.wake
	p.mu.Lock()
	p.wakeups++
	p.mu.Unlock()
	return nil
}

// Wakeup releases a blocked Wait.
func (p *Poller) Wakeup() error {
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Wakeups returns how many blocked waits were released.
func (p *Poller) Wakeups() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wakeups
}

// Timeouts returns the timeout of every Wait so far.
func (p *Poller) Timeouts() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.timeouts...)
}
