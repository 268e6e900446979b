package netio

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newPeer(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestSendAndWaitRecvRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)

	peer := newPeer(t)
	ch, err := Dial(peer.LocalAddr().(*net.UDPAddr), time.Second)
	require.NoError(t, err)
	defer func() { require.NoError(t, ch.Close()) }()

	require.NoError(t, ch.Send([]byte("ping")))

	buf := make([]byte, 32)
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(time.Second)))
	n, from, err := peer.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))

	_, err = peer.WriteToUDP([]byte("pong"), from)
	require.NoError(t, err)

	n, timedOut, err := ch.WaitRecv(buf, time.Second, true)
	require.NoError(t, err)
	require.False(t, timedOut)
	require.Equal(t, "pong", string(buf[:n]))
}

func TestWaitRecvReportsExpiredBound(t *testing.T) {
	defer goleak.VerifyNone(t)

	peer := newPeer(t)
	ch, err := Dial(peer.LocalAddr().(*net.UDPAddr), time.Second)
	require.NoError(t, err)
	defer func() { require.NoError(t, ch.Close()) }()

	buf := make([]byte, 32)
	start := time.Now()
	n, timedOut, err := ch.WaitRecv(buf, 20*time.Millisecond, true)
	require.NoError(t, err)
	require.True(t, timedOut)
	require.Zero(t, n)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestDrainReturnsQueuedThenNothing(t *testing.T) {
	defer goleak.VerifyNone(t)

	peer := newPeer(t)
	ch, err := Dial(peer.LocalAddr().(*net.UDPAddr), time.Second)
	require.NoError(t, err)
	defer func() { require.NoError(t, ch.Close()) }()

	// Learn the channel's port, then queue two datagrams at it.
	require.NoError(t, ch.Send([]byte("hello")))
	buf := make([]byte, 32)
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(time.Second)))
	_, from, err := peer.ReadFromUDP(buf)
	require.NoError(t, err)

	_, err = peer.WriteToUDP([]byte("a"), from)
	require.NoError(t, err)
	_, err = peer.WriteToUDP([]byte("bb"), from)
	require.NoError(t, err)

	// First packet through the bounded wait, the rest via drain.
	n, timedOut, err := ch.WaitRecv(buf, time.Second, true)
	require.NoError(t, err)
	require.False(t, timedOut)
	require.Equal(t, 1, n)

	deadline := time.Now().Add(time.Second)
	got := 0
	for time.Now().Before(deadline) {
		n, pending, err := ch.Drain(buf)
		require.NoError(t, err)
		if pending {
			require.Equal(t, "bb", string(buf[:n]))
			got++
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, 1, got)

	_, pending, err := ch.Drain(buf)
	require.NoError(t, err)
	require.False(t, pending)
}

func TestDialMatchesPeerFamily(t *testing.T) {
	defer goleak.VerifyNone(t)

	peer := newPeer(t)
	ch, err := Dial(peer.LocalAddr().(*net.UDPAddr), time.Second)
	require.NoError(t, err)
	defer func() { require.NoError(t, ch.Close()) }()

	require.NotNil(t, ch.LocalAddr().IP.To4())
	require.Equal(t, peer.LocalAddr().(*net.UDPAddr).Port, ch.Peer().Port)
}
