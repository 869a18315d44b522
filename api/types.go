// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations: datagrams, interest sets, readiness
// results and the tokens that tie them to registered sources.

package api

import (
	"fmt"
	"net/netip"
	"strings"
)

// Token is an opaque identifier chosen by the caller at registration time.
// The poller reports it back verbatim in every Event for that source.
type Token uint64

// Mode selects the triggering semantics of a registration.
// It is fixed for the lifetime of a source within one program variant.
type Mode uint8

const (
	// ModeLevel reports readiness on every wait while the condition holds.
	ModeLevel Mode = iota
	// ModeEdge reports readiness once per not-ready -> ready transition.
	ModeEdge
)

func (m Mode) String() string {
	switch m {
	case ModeLevel:
		return "level"
	case ModeEdge:
		return "edge"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode accepts "level" or "edge" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "level", "lt", "":
		return ModeLevel, nil
	case "edge", "et":
		return ModeEdge, nil
	default:
		return 0, fmt.Errorf("unknown trigger mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Interest is the per-source desired notification mask.
type Interest struct {
	Read  bool
	Write bool
}

var (
	// InterestRead asks for read readiness only.
	InterestRead = Interest{Read: true}
	// InterestReadWrite asks for both read and write readiness.
	InterestReadWrite = Interest{Read: true, Write: true}
)

// IsEmpty reports whether no readiness is requested at all.
func (i Interest) IsEmpty() bool { return !i.Read && !i.Write }

func (i Interest) String() string {
	switch {
	case i.Read && i.Write:
		return "rw"
	case i.Read:
		return "r"
	case i.Write:
		return "w"
	default:
		return "-"
	}
}

// Readiness describes which operations are likely to make progress.
type Readiness struct {
	Readable bool
	Writable bool
}

// IsEmpty reports whether neither readable nor writable is set.
func (r Readiness) IsEmpty() bool { return !r.Readable && !r.Writable }

// Union merges two readiness values.
func (r Readiness) Union(o Readiness) Readiness {
	return Readiness{Readable: r.Readable || o.Readable, Writable: r.Writable || o.Writable}
}

// Filter keeps only the conditions present in the interest set.
func (r Readiness) Filter(i Interest) Readiness {
	return Readiness{Readable: r.Readable && i.Read, Writable: r.Writable && i.Write}
}

func (r Readiness) String() string {
	return Interest{Read: r.Readable, Write: r.Writable}.String()
}

// Event is one entry of a readiness result: the token of a ready source and
// the conditions it is ready for. Valid for a single wait cycle only.
type Event struct {
	Token     Token
	Readiness Readiness
}

// Datagram is a captured payload together with the address it came from,
// which is also where the echo goes. Immutable once captured.
type Datagram struct {
	Payload []byte
	Peer    netip.AddrPort
}

// Admission is the outcome of offering a datagram to a bounded queue.
type Admission uint8

const (
	// Admitted means the datagram now occupies a queue slot.
	Admitted Admission = iota
	// Dropped means the queue was at capacity and the datagram was refused.
	Dropped
)

func (a Admission) String() string {
	if a == Admitted {
		return "admitted"
	}
	return "dropped"
}
