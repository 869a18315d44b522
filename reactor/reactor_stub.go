//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"errors"

	"github.com/momentics/hioload-dgram/api"
)

var errUnsupported = errors.New("reactor: this platform is not supported")

func newSelector(Backend, int) (selector, error) {
	return nil, errors.Join(errUnsupported, api.ErrNotSupported)
}

func newWaker() (waker, error) {
	return nil, errors.Join(errUnsupported, api.ErrNotSupported)
}
