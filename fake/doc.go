// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the socket, registrar and
// poller interfaces the engines and dispatcher depend on.
package fake
