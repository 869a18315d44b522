//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based selector and backend factory.

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-dgram/api"
)

// newSelector constructs the kernel selector for backend.
func newSelector(backend Backend, maxEvents int) (selector, error) {
	switch backend {
	case BackendEpoll:
		return newEpollSelector(maxEvents)
	case BackendPoll:
		return newPollSelector(), nil
	default:
		return nil, fmt.Errorf("%w: backend %q", api.ErrNotSupported, backend)
	}
}

// epollSelector implements selector using Linux epoll.
type epollSelector struct {
	epfd   int
	events []unix.EpollEvent
}

func newEpollSelector(maxEvents int) (*epollSelector, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &epollSelector{
		epfd:   epfd,
		events: make([]unix.EpollEvent, maxEvents),
	}, nil
}

func (s *epollSelector) add(fd int, interest api.Interest, mode api.Mode) error {
	ev := unix.EpollEvent{Events: epollMask(interest, mode), Fd: int32(fd)}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

func (s *epollSelector) modify(fd int, interest api.Interest, mode api.Mode) error {
	ev := unix.EpollEvent{Events: epollMask(interest, mode), Fd: int32(fd)}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

func (s *epollSelector) remove(fd int) error {
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

func (s *epollSelector) wait(out []fdEvent, timeoutMs int) (int, error) {
	limit := min(len(out), len(s.events))
	if limit == 0 {
		return 0, nil
	}
	for {
		n, err := unix.EpollWait(s.epfd, s.events[:limit], timeoutMs)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("epoll wait: %w", err)
		}
		for i := 0; i < n; i++ {
			out[i] = fdEvent{
				fd:        int(s.events[i].Fd),
				readiness: epollReadiness(s.events[i].Events),
			}
		}
		return n, nil
	}
}

func (s *epollSelector) close() error {
	return unix.Close(s.epfd)
}

// epollMask converts an interest set to epoll event flags.
func epollMask(interest api.Interest, mode api.Mode) uint32 {
	var m uint32
	if interest.Read {
		m |= unix.EPOLLIN
	}
	if interest.Write {
		m |= unix.EPOLLOUT
	}
	if mode == api.ModeEdge {
		m |= unix.EPOLLET
	}
	return m
}

// epollReadiness converts epoll flags to readiness. Error and hang-up make
// the pending operation fail fast, so they count as both readable and
// writable and the consumer observes the error on its next attempt.
func epollReadiness(flags uint32) api.Readiness {
	errOrHup := flags&(unix.EPOLLERR|unix.EPOLLHUP) != 0
	return api.Readiness{
		Readable: flags&unix.EPOLLIN != 0 || errOrHup,
		Writable: flags&unix.EPOLLOUT != 0 || errOrHup,
	}
}
