// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package udp provides the non-blocking datagram socket the echo engines
// drive. Every call returns immediately; api.ErrWouldBlock reports that the
// kernel buffer is empty (receive) or full (transmit).
package udp
