//go:build linux

// File: reactor/poll_linux.go
// Author: momentics <momentics@gmail.com>
//
// poll(2) selector: the interest table is rebuilt into a pollfd array that
// the kernel scans on every call. Level-triggered by construction.

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-dgram/api"
)

type pollSelector struct {
	pfds  []unix.PollFd
	index map[int]int // fd -> position in pfds
	next  int         // first slot scanned when reporting
}

func newPollSelector() *pollSelector {
	return &pollSelector{index: make(map[int]int)}
}

func (s *pollSelector) add(fd int, interest api.Interest, mode api.Mode) error {
	if mode == api.ModeEdge {
		return fmt.Errorf("poll: %w: edge-triggered mode", api.ErrNotSupported)
	}
	if _, ok := s.index[fd]; ok {
		return fmt.Errorf("poll: %w: fd %d", api.ErrAlreadyRegistered, fd)
	}
	s.index[fd] = len(s.pfds)
	s.pfds = append(s.pfds, unix.PollFd{Fd: int32(fd), Events: pollMask(interest)})
	return nil
}

func (s *pollSelector) modify(fd int, interest api.Interest, mode api.Mode) error {
	if mode == api.ModeEdge {
		return fmt.Errorf("poll: %w: edge-triggered mode", api.ErrNotSupported)
	}
	i, ok := s.index[fd]
	if !ok {
		return fmt.Errorf("poll: %w: fd %d", api.ErrNotRegistered, fd)
	}
	s.pfds[i].Events = pollMask(interest)
	return nil
}

func (s *pollSelector) remove(fd int) error {
	i, ok := s.index[fd]
	if !ok {
		return fmt.Errorf("poll: %w: fd %d", api.ErrNotRegistered, fd)
	}
	last := len(s.pfds) - 1
	if i != last {
		s.pfds[i] = s.pfds[last]
		s.index[int(s.pfds[i].Fd)] = i
	}
	s.pfds = s.pfds[:last]
	delete(s.index, fd)
	return nil
}

func (s *pollSelector) wait(out []fdEvent, timeoutMs int) (int, error) {
	for i := range s.pfds {
		s.pfds[i].Revents = 0
	}
	for {
		_, err := unix.Poll(s.pfds, timeoutMs)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("poll: %w", err)
		}
		break
	}

	// Rotate the scan start so a full out slice does not always favour the
	// lowest slots; the rest stay ready and are reported by the next call.
	n := 0
	total := len(s.pfds)
	if total == 0 {
		return 0, nil
	}
	start := s.next % total
	for k := 0; k < total && n < len(out); k++ {
		pfd := s.pfds[(start+k)%total]
		if pfd.Revents == 0 {
			continue
		}
		out[n] = fdEvent{fd: int(pfd.Fd), readiness: pollReadiness(pfd.Revents)}
		n++
	}
	s.next = start + 1
	return n, nil
}

func (s *pollSelector) close() error {
	s.pfds = nil
	s.index = nil
	return nil
}

func pollMask(interest api.Interest) int16 {
	var m int16
	if interest.Read {
		m |= unix.POLLIN
	}
	if interest.Write {
		m |= unix.POLLOUT
	}
	return m
}

func pollReadiness(revents int16) api.Readiness {
	errOrHup := revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0
	return api.Readiness{
		Readable: revents&unix.POLLIN != 0 || errOrHup,
		Writable: revents&unix.POLLOUT != 0 || errOrHup,
	}
}
