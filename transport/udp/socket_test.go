//go:build linux

package udp

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-dgram/api"
)

func bindLoopback(t *testing.T) *Socket {
	t.Helper()
	s, err := Bind(netip.MustParseAddrPort("127.0.0.1:0"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBind_EphemeralPort(t *testing.T) {
	s := bindLoopback(t)
	assert.NotZero(t, s.LocalAddr().Port())
	assert.Equal(t, netip.MustParseAddr("127.0.0.1"), s.LocalAddr().Addr())
	assert.GreaterOrEqual(t, s.Fd(), 0)
}

func TestBind_Invalid(t *testing.T) {
	_, err := Bind(netip.AddrPort{})
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestBind_PortInUse(t *testing.T) {
	s := bindLoopback(t)
	_, err := Bind(s.LocalAddr())
	assert.Error(t, err)
}

func TestSocket_RecvWouldBlock(t *testing.T) {
	s := bindLoopback(t)
	n, peer, err := s.RecvFrom(make([]byte, 16))
	assert.ErrorIs(t, err, api.ErrWouldBlock)
	assert.Zero(t, n)
	assert.False(t, peer.IsValid())
}

func TestSocket_RoundTrip(t *testing.T) {
	a, b := bindLoopback(t), bindLoopback(t)

	n, err := a.SendTo([]byte("hello"), b.LocalAddr())
	require.NoError(t, err)
	require.Equal(t, 5, n)

	buf := make([]byte, 1500)
	n, peer, err := b.RecvFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
	assert.Equal(t, a.LocalAddr(), peer)

	// datagram boundaries are preserved
	_, err = a.SendTo([]byte("one"), b.LocalAddr())
	require.NoError(t, err)
	_, err = a.SendTo([]byte("two"), b.LocalAddr())
	require.NoError(t, err)
	n, _, err = b.RecvFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "one", string(buf[:n]))
	n, _, err = b.RecvFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "two", string(buf[:n]))
}

func TestSocket_Truncation(t *testing.T) {
	a, b := bindLoopback(t), bindLoopback(t)
	_, err := a.SendTo([]byte("0123456789"), b.LocalAddr())
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, _, err := b.RecvFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "0123", string(buf))
}

func TestSockaddrConversion(t *testing.T) {
	for _, s := range []string{"127.0.0.1:2000", "[::1]:53", "10.1.2.3:65535"} {
		ap := netip.MustParseAddrPort(s)
		assert.Equal(t, ap, fromSockaddr(toSockaddr(ap)), s)
	}
	mapped := netip.MustParseAddrPort("[::ffff:192.0.2.1]:7")
	assert.Equal(t, netip.MustParseAddrPort("192.0.2.1:7"), fromSockaddr(toSockaddr(mapped)))
}
