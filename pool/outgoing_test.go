package pool

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-dgram/api"
)

var peerA = netip.MustParseAddrPort("127.0.0.1:40001")

func dgram(b byte) api.Datagram {
	return api.Datagram{Payload: []byte{b}, Peer: peerA}
}

func drain(t *testing.T, q *OutgoingQueue) []byte {
	t.Helper()
	var out []byte
	for {
		d, ok := q.DequeueFront()
		if !ok {
			return out
		}
		require.Len(t, d.Payload, 1)
		out = append(out, d.Payload[0])
	}
}

func TestOutgoingQueue_FIFO(t *testing.T) {
	q := NewOutgoingQueue(8)
	assert.True(t, q.IsEmpty())
	for i := byte(0); i < 5; i++ {
		require.Equal(t, api.Admitted, q.Enqueue(dgram(i)))
	}
	assert.Equal(t, 5, q.Len())
	assert.Equal(t, []byte{0, 1, 2, 3, 4}, drain(t, q))
	assert.True(t, q.IsEmpty())

	_, ok := q.DequeueFront()
	assert.False(t, ok)
}

// Capacity 8, ten back-to-back arrivals: eight queued, two dropped, the
// queued ones come out in arrival order.
func TestOutgoingQueue_DropNewest(t *testing.T) {
	q := NewOutgoingQueue(8)
	var admitted, dropped int
	for i := byte(0); i < 10; i++ {
		before := q.Len()
		switch q.Enqueue(dgram(i)) {
		case api.Admitted:
			admitted++
		case api.Dropped:
			dropped++
			assert.Equal(t, before, q.Len(), "drop must not change length")
		}
		assert.LessOrEqual(t, q.Len(), q.Cap())
	}
	assert.Equal(t, 8, admitted)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7}, drain(t, q))
}

func TestOutgoingQueue_RequeueFront(t *testing.T) {
	q := NewOutgoingQueue(4)
	for i := byte(0); i < 4; i++ {
		q.Enqueue(dgram(i))
	}
	d, ok := q.DequeueFront()
	require.True(t, ok)
	require.Equal(t, byte(0), d.Payload[0])

	q.RequeueFront(d)
	assert.Equal(t, 4, q.Len())
	front, ok := q.Front()
	require.True(t, ok)
	assert.Equal(t, byte(0), front.Payload[0])

	// full again, so a new arrival is refused
	assert.Equal(t, api.Dropped, q.Enqueue(dgram(9)))
	assert.Equal(t, []byte{0, 1, 2, 3}, drain(t, q))
}

func TestOutgoingQueue_RequeueSkipsAdmission(t *testing.T) {
	q := NewOutgoingQueue(1)
	q.Enqueue(dgram(1))
	d, _ := q.DequeueFront()
	q.Enqueue(dgram(2))
	q.RequeueFront(d)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, []byte{1, 2}, drain(t, q))
}

func TestOutgoingQueue_NestedRequeue(t *testing.T) {
	q := NewOutgoingQueue(8)
	for i := byte(0); i < 4; i++ {
		q.Enqueue(dgram(i))
	}
	a, _ := q.DequeueFront()
	b, _ := q.DequeueFront()
	q.RequeueFront(b)
	q.RequeueFront(a)
	assert.Equal(t, []byte{0, 1, 2, 3}, drain(t, q))
}

func TestOutgoingQueue_MinimumCapacity(t *testing.T) {
	q := NewOutgoingQueue(0)
	assert.Equal(t, 1, q.Cap())
	assert.Equal(t, api.Admitted, q.Enqueue(dgram(0)))
	assert.Equal(t, api.Dropped, q.Enqueue(dgram(1)))
}

func TestBytePool(t *testing.T) {
	p := NewBytePool(1500)
	b := p.Get()
	require.Len(t, b, 1500)
	p.Put(b[:10])
	c := p.Get()
	assert.Len(t, c, 1500)
	// foreign slices are ignored rather than poisoning the size class
	p.Put(make([]byte, 3))
	assert.Len(t, p.Get(), 1500)
}
