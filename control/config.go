// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Runtime configuration: reference defaults, TOML loading and validation.

package control

import (
	"errors"
	"fmt"
	"net/netip"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/momentics/hioload-dgram/api"
	"github.com/momentics/hioload-dgram/reactor"
)

// Reference values.
const (
	DefaultMaxMessageSize      = 1500
	DefaultMaxOutgoingMessages = 8
	DefaultMaxEvents           = 16
	DefaultPort                = 2000
	DefaultMultiSockets        = 10
	DefaultTimerInterval       = 3 * time.Second
)

// Duration is a time.Duration that decodes from strings such as "3s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds every tunable of the datagram server.
type Config struct {
	// MaxMessageSize bounds a datagram payload; longer datagrams are truncated.
	MaxMessageSize int `toml:"max_message_size"`
	// MaxOutgoingMessages is the per-source outgoing queue capacity.
	MaxOutgoingMessages int `toml:"max_outgoing_messages"`
	// MaxEvents bounds the events returned by one poller wait.
	MaxEvents int `toml:"max_events"`

	BindAddr string   `toml:"bind_addr"`
	Ports    []uint16 `toml:"ports"`

	Mode    api.Mode        `toml:"mode"`
	Backend reactor.Backend `toml:"backend"`

	// DrainLimit caps receives and transmits per activation in edge mode;
	// 0 drains until would-block.
	DrainLimit int `toml:"drain_limit"`

	// TimerInterval is the period of the mixed-source timer; 0 disables it.
	TimerInterval Duration `toml:"timer_interval"`

	// CPU pins the poller thread to one logical CPU; -1 leaves it unpinned.
	CPU int `toml:"cpu"`

	LogLevel string `toml:"log_level"`
	// DropLogRate is the number of drop warnings logged per peer per second;
	// 0 logs every drop.
	DropLogRate int `toml:"drop_log_rate"`
}

// DefaultConfig returns the reference configuration: loopback port 2000,
// level-triggered epoll, 1500-byte datagrams, 8 queued replies.
func DefaultConfig() *Config {
	return &Config{
		MaxMessageSize:      DefaultMaxMessageSize,
		MaxOutgoingMessages: DefaultMaxOutgoingMessages,
		MaxEvents:           DefaultMaxEvents,
		BindAddr:            "127.0.0.1",
		Ports:               []uint16{DefaultPort},
		Mode:                api.ModeLevel,
		Backend:             reactor.BackendEpoll,
		TimerInterval:       Duration(DefaultTimerInterval),
		CPU:                 -1,
		LogLevel:            "info",
		DropLogRate:         5,
	}
}

// LoadConfig decodes a TOML file over the defaults. Keys the file does not
// mention keep their default value; unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("load config %s: unknown keys %v", path, undecoded)
	}
	return cfg, cfg.Validate()
}

// Addrs returns one bind address per configured port.
func (c *Config) Addrs() ([]netip.AddrPort, error) {
	addr, err := netip.ParseAddr(c.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("bind_addr: %w", err)
	}
	out := make([]netip.AddrPort, len(c.Ports))
	for i, port := range c.Ports {
		out[i] = netip.AddrPortFrom(addr, port)
	}
	return out, nil
}

// PortRange returns n consecutive ports starting at first.
func PortRange(first uint16, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = first + uint16(i)
	}
	return out
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxMessageSize < 1 || c.MaxMessageSize > 65507 {
		errs = append(errs, fmt.Errorf("max_message_size %d out of range [1, 65507]", c.MaxMessageSize))
	}
	if c.MaxOutgoingMessages < 1 {
		errs = append(errs, fmt.Errorf("max_outgoing_messages must be positive, got %d", c.MaxOutgoingMessages))
	}
	if c.MaxEvents < 1 {
		errs = append(errs, fmt.Errorf("max_events must be positive, got %d", c.MaxEvents))
	}
	if len(c.Ports) == 0 {
		errs = append(errs, errors.New("no ports configured"))
	}
	seen := make(map[uint16]bool, len(c.Ports))
	for _, p := range c.Ports {
		if p != 0 && seen[p] {
			errs = append(errs, fmt.Errorf("port %d listed twice", p))
		}
		seen[p] = true
	}
	if _, err := c.Addrs(); err != nil {
		errs = append(errs, err)
	}
	if c.Mode == api.ModeEdge && !c.Backend.SupportsEdge() {
		errs = append(errs, fmt.Errorf("backend %q does not support edge mode", c.Backend))
	}
	if c.DrainLimit < 0 {
		errs = append(errs, fmt.Errorf("drain_limit must not be negative, got %d", c.DrainLimit))
	}
	if c.TimerInterval < 0 {
		errs = append(errs, errors.New("timer_interval must not be negative"))
	}
	if c.CPU < -1 || c.CPU >= runtime.NumCPU() {
		errs = append(errs, fmt.Errorf("cpu %d out of range [-1, %d)", c.CPU, runtime.NumCPU()))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.DropLogRate < 0 {
		errs = append(errs, fmt.Errorf("drop_log_rate must not be negative, got %d", c.DropLogRate))
	}
	if len(errs) == 0 {
		return nil
	}
	return api.NewError(api.ErrCodeInvalidArgument, "validate config", errors.Join(errs...))
}
