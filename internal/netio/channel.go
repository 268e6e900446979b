// Package netio provides the datagram channel the benchmark loop pumps
// packets through: one UDP socket with a deadline-bounded wait-then-drain
// receive path and a retry-on-pressure send path.
package netio

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/jpillora/backoff"
)

// Channel is a connected-style UDP socket to a single peer.
type Channel struct {
	conn *net.UDPConn
	peer *net.UDPAddr

	// send retry bound; a socket refusing writes for this long is broken.
	sendTimeout time.Duration
}

// Dial binds an ephemeral local port in the peer's address family.
func Dial(peer *net.UDPAddr, sendTimeout time.Duration) (*Channel, error) {
	bind := &net.UDPAddr{IP: net.IPv4zero}
	if peer.IP.To4() == nil {
		bind = &net.UDPAddr{IP: net.IPv6zero}
	}

	conn, err := net.ListenUDP("udp", bind)
	if err != nil {
		return nil, fmt.Errorf("failed to bind UDP socket: %w", err)
	}

	return &Channel{conn: conn, peer: peer, sendTimeout: sendTimeout}, nil
}

// LocalAddr reports the bound local endpoint.
func (c *Channel) LocalAddr() *net.UDPAddr {
	return c.conn.LocalAddr().(*net.UDPAddr)
}

// Peer reports the remote endpoint.
func (c *Channel) Peer() *net.UDPAddr {
	return c.peer
}

// WaitRecv blocks for at most bound until a datagram arrives and reads it
// into buf. With ok=false the wait is unbounded. timedOut reports that the
// bound elapsed with nothing to read; that is not an error.
func (c *Channel) WaitRecv(buf []byte, bound time.Duration, ok bool) (int, bool, error) {
	var deadline time.Time
	if ok {
		deadline = time.Now().Add(bound)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return 0, false, err
	}

	n, _, err := c.conn.ReadFromUDP(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, true, nil
		}
		return 0, false, fmt.Errorf("recv failed: %w", err)
	}
	return n, false, nil
}

// Drain reads one pending datagram without blocking. pending=false means
// nothing more is queued right now.
func (c *Channel) Drain(buf []byte) (n int, pending bool, err error) {
	if err := c.conn.SetReadDeadline(time.Now()); err != nil {
		return 0, false, err
	}

	n, _, err = c.conn.ReadFromUDP(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("recv failed: %w", err)
	}
	return n, true, nil
}

// Send writes one datagram to the peer. Local buffer pressure (EAGAIN or
// ENOBUFS) is retried with exponential backoff up to the channel's send
// timeout; any other error is returned as-is.
func (c *Channel) Send(pkt []byte) error {
	b := &backoff.Backoff{
		Min:    time.Millisecond,
		Max:    250 * time.Millisecond,
		Factor: 2,
		Jitter: true,
	}

	start := time.Now()
	for {
		_, err := c.conn.WriteToUDP(pkt, c.peer)
		if err == nil {
			return nil
		}
		if !wouldBlock(err) {
			return fmt.Errorf("send failed: %w", err)
		}
		if time.Since(start) > c.sendTimeout {
			return fmt.Errorf("send stalled for %s: %w", c.sendTimeout, err)
		}
		time.Sleep(b.Duration())
	}
}

// Close releases the socket.
func (c *Channel) Close() error {
	return c.conn.Close()
}

func wouldBlock(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.ENOBUFS)
}
