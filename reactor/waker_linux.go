//go:build linux

// File: reactor/waker_linux.go
// Author: momentics <momentics@gmail.com>
//
// eventfd(2) based waker: one descriptor serves as both read and write end.

package reactor

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

type eventfdWaker struct {
	efd int
}

func newWaker() (waker, error) {
	efd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &eventfdWaker{efd: efd}, nil
}

func (w *eventfdWaker) fd() int { return w.efd }

func (w *eventfdWaker) wake() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(w.efd, buf[:])
		switch err {
		case nil, unix.EAGAIN:
			// EAGAIN: counter saturated, a wake-up is already pending
			return nil
		case unix.EINTR:
			continue
		default:
			return err
		}
	}
}

func (w *eventfdWaker) drain() error {
	var buf [8]byte
	for {
		_, err := unix.Read(w.efd, buf[:])
		switch err {
		case nil:
			// eventfd read resets the counter; one read is enough
			return nil
		case unix.EAGAIN:
			return nil
		case unix.EINTR:
			continue
		default:
			return err
		}
	}
}

func (w *eventfdWaker) close() error {
	return unix.Close(w.efd)
}
