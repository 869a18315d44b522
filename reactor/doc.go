// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness Poller used by the datagram engines.
//
// A Poller multiplexes two kinds of sources behind one Wait call:
//
//   - descriptor-backed sources (FD, or anything exposing one, such as a UDP
//     socket), watched by the kernel through epoll(7) or poll(2);
//   - user-space registrations (Registration / SetReadiness), whose readiness
//     is set from arbitrary goroutines and delivered through an eventfd.
//
// Level-triggered registrations are reported on every Wait while the
// condition holds. Edge-triggered registrations are reported once per
// transition, so the consumer must drain them until it observes
// api.ErrWouldBlock. The poll(2) backend supports level mode only.
//
// A Poller is owned by one goroutine. Only SetReadiness and Wakeup may be
// used concurrently with Wait.
package reactor
