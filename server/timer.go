// File: server/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// PeriodicTimer is a user-space readiness source fed by a helper goroutine.

package server

import (
	"context"
	"time"

	"github.com/momentics/hioload-dgram/api"
	"github.com/momentics/hioload-dgram/reactor"
)

// PeriodicTimer marks its registration readable every interval.
type PeriodicTimer struct {
	reg      *reactor.Registration
	set      *reactor.SetReadiness
	interval time.Duration
}

// NewPeriodicTimer creates a timer; register Registration with a poller and
// start Run on its own goroutine.
func NewPeriodicTimer(interval time.Duration) *PeriodicTimer {
	reg, set := reactor.NewRegistration()
	return &PeriodicTimer{reg: reg, set: set, interval: interval}
}

// Registration returns the poller-facing half.
func (t *PeriodicTimer) Registration() *reactor.Registration { return t.reg }

// SetReadiness returns the signalling half.
func (t *PeriodicTimer) SetReadiness() *reactor.SetReadiness { return t.set }

// Interval returns the tick period.
func (t *PeriodicTimer) Interval() time.Duration { return t.interval }

// Run sets read readiness on every tick until ctx is done, then returns nil.
func (t *PeriodicTimer) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.set.Set(api.Readiness{Readable: true})
		}
	}
}
