// Package engine
// Author: momentics <momentics@gmail.com>
//
// Per-socket echo engine: receives datagrams into a bounded outgoing queue,
// transmits them back to their senders and keeps the poller interest in line
// with the queue. One engine serves one socket and is driven by a single
// dispatcher goroutine.
package engine
