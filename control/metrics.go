// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for the datagram engines.
// Exposes monotonic counters in a thread-safe map with dynamic registration.

package control

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Counter names recorded by the engines, dispatcher and timer.
const (
	MetricReceived     = "datagrams_received"
	MetricSent         = "datagrams_sent"
	MetricDropped      = "datagrams_dropped"
	MetricSendBlocked  = "send_would_block"
	MetricWakeups      = "wakeups"
	MetricTimerTicks   = "timer_ticks"
	MetricActivations  = "activations"
	MetricResumes      = "resumes"
	MetricUnknownToken = "unknown_tokens"
)

// Counter is a monotonic uint64 counter.
type Counter struct {
	v atomic.Uint64
}

// Add increments the counter by n.
func (c *Counter) Add(n uint64) {
	if c != nil {
		c.v.Add(n)
	}
}

// Inc increments the counter by one.
func (c *Counter) Inc() { c.Add(1) }

// Load returns the current value.
func (c *Counter) Load() uint64 {
	if c == nil {
		return 0
	}
	return c.v.Load()
}

// MetricsRegistry holds named counters.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	updated  atomic.Int64
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*Counter),
	}
}

// Counter returns the counter registered under name, creating it on first
// use. Callers on hot paths should keep the returned pointer. A nil registry
// returns a nil counter, which discards updates.
func (mr *MetricsRegistry) Counter(name string) *Counter {
	if mr == nil {
		return nil
	}
	mr.mu.RLock()
	c := mr.counters[name]
	mr.mu.RUnlock()
	if c != nil {
		return c
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if c = mr.counters[name]; c == nil {
		c = &Counter{}
		mr.counters[name] = c
	}
	return c
}

// Add increments a counter by n.
func (mr *MetricsRegistry) Add(name string, n uint64) {
	if mr == nil {
		return
	}
	mr.Counter(name).Add(n)
	mr.updated.Store(time.Now().UnixNano())
}

// Get returns the value of a counter; unknown names read as zero.
func (mr *MetricsRegistry) Get(name string) uint64 {
	if mr == nil {
		return 0
	}
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.counters[name].Load()
}

// GetSnapshot returns the current value of every counter.
func (mr *MetricsRegistry) GetSnapshot() map[string]uint64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]uint64, len(mr.counters))
	for k, c := range mr.counters {
		out[k] = c.Load()
	}
	return out
}

// Names returns the registered counter names in sorted order.
func (mr *MetricsRegistry) Names() []string {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make([]string, 0, len(mr.counters))
	for k := range mr.counters {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Updated returns the time of the last Add, or the zero time.
func (mr *MetricsRegistry) Updated() time.Time {
	ns := mr.updated.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
