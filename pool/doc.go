// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for the datagram engines: fixed-size receive buffers recycled
// through a BytePool, and the bounded OutgoingQueue that holds received
// datagrams until they are echoed. See bufferpool.go and outgoing.go.
package pool
