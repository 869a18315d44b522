// File: core/dispatch/signal.go
// Author: momentics <momentics@gmail.com>
//
// Handler for user-space readiness sources.

package dispatch

import (
	"sync/atomic"

	"github.com/momentics/hioload-dgram/api"
	"github.com/momentics/hioload-dgram/reactor"
)

var _ api.Handler = (*SignalHandler)(nil)

// SignalHandler consumes the readiness of a Registration: every activation
// clears the readiness, so a level registration stops reporting, and then
// calls fn.
type SignalHandler struct {
	set   *reactor.SetReadiness
	fn    func(api.Readiness) error
	count atomic.Uint64
}

// NewSignalHandler creates a handler for the SetReadiness half of a source.
// fn may be nil.
func NewSignalHandler(set *reactor.SetReadiness, fn func(api.Readiness) error) *SignalHandler {
	return &SignalHandler{set: set, fn: fn}
}

// Activate implements api.Handler.
func (h *SignalHandler) Activate(r api.Readiness) error {
	h.set.Clear()
	h.count.Add(1)
	if h.fn == nil {
		return nil
	}
	return h.fn(r)
}

// Runnable implements api.Handler.
func (h *SignalHandler) Runnable() bool { return false }

// Resume implements api.Handler.
func (h *SignalHandler) Resume() error { return nil }

// Count returns the number of activations.
func (h *SignalHandler) Count() uint64 { return h.count.Load() }
