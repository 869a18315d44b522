// File: pool/outgoing.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded FIFO of datagrams awaiting transmission, with a drop-newest
// admission policy. Not thread-safe: owned by exactly one echo engine.

package pool

import (
	"github.com/eapache/queue"
	"github.com/momentics/hioload-dgram/api"
)

// OutgoingQueue holds admitted datagrams in arrival order.
//
// Requeued datagrams live on a small undo stack in front of the ring so that
// RequeueFront is O(1) and never disturbs the order of the others.
type OutgoingQueue struct {
	ring     *queue.Queue
	requeued []api.Datagram // top of stack is the front of the queue
	capacity int
}

// NewOutgoingQueue creates an empty queue admitting at most capacity items.
// A capacity below one is raised to one.
func NewOutgoingQueue(capacity int) *OutgoingQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &OutgoingQueue{
		ring:     queue.New(),
		capacity: capacity,
	}
}

// Enqueue appends d if a slot is free, otherwise refuses it.
// The queue is left untouched on Dropped.
func (q *OutgoingQueue) Enqueue(d api.Datagram) api.Admission {
	if q.Len() >= q.capacity {
		return api.Dropped
	}
	q.ring.Add(d)
	return api.Admitted
}

// DequeueFront removes and returns the oldest datagram.
func (q *OutgoingQueue) DequeueFront() (api.Datagram, bool) {
	if n := len(q.requeued); n > 0 {
		d := q.requeued[n-1]
		q.requeued[n-1] = api.Datagram{}
		q.requeued = q.requeued[:n-1]
		return d, true
	}
	if q.ring.Length() == 0 {
		return api.Datagram{}, false
	}
	return q.ring.Remove().(api.Datagram), true
}

// RequeueFront puts d back at the front. It undoes a DequeueFront whose
// transmit would block, so the admission check is not applied again.
func (q *OutgoingQueue) RequeueFront(d api.Datagram) {
	q.requeued = append(q.requeued, d)
}

// Front returns the oldest datagram without removing it.
func (q *OutgoingQueue) Front() (api.Datagram, bool) {
	if n := len(q.requeued); n > 0 {
		return q.requeued[n-1], true
	}
	if q.ring.Length() == 0 {
		return api.Datagram{}, false
	}
	return q.ring.Peek().(api.Datagram), true
}

// Len returns the number of queued datagrams.
func (q *OutgoingQueue) Len() int {
	return q.ring.Length() + len(q.requeued)
}

// IsEmpty reports whether nothing is waiting for transmission.
func (q *OutgoingQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Cap returns the admission bound.
func (q *OutgoingQueue) Cap() int {
	return q.capacity
}
