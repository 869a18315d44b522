// File: pool/bufferpool.go
// Author: momentics <momentics@gmail.com>
//
// Fixed-size payload buffers for datagram receive. A buffer is handed out at
// receive time, travels with the datagram through the outgoing queue and is
// returned once the datagram is transmitted or dropped.

package pool

import (
	"sync"

	"github.com/momentics/hioload-dgram/api"
)

// Ensure compile-time interface compliance.
var _ api.BytePool = (*BytePool)(nil)

// BytePool recycles byte slices of one size class.
type BytePool struct {
	size int
	pool sync.Pool
}

// NewBytePool creates a pool of size-byte buffers.
func NewBytePool(size int) *BytePool {
	if size <= 0 {
		size = 1
	}
	p := &BytePool{size: size}
	p.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return p
}

// Get returns a buffer of full length Size().
func (p *BytePool) Get() []byte {
	return (*p.pool.Get().(*[]byte))[:p.size]
}

// Put returns b to the pool. Slices whose capacity does not match the size
// class are left to the garbage collector.
func (p *BytePool) Put(b []byte) {
	if cap(b) != p.size {
		return
	}
	b = b[:p.size]
	p.pool.Put(&b)
}

// Size returns the buffer length handed out by Get.
func (p *BytePool) Size() int {
	return p.size
}
