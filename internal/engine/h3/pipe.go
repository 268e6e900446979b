package h3

import (
	"net"
	"sync"
	"time"

	"github.com/eapache/queue"
)

// packetPipe is the net.PacketConn handed to quic-go. The benchmark loop owns
// the real UDP socket; ingested datagrams are queued here for quic-go's
// receive goroutine, and datagrams quic-go writes are queued for the loop's
// flush pass.
type packetPipe struct {
	local net.Addr
	peer  net.Addr

	mu       sync.Mutex
	readable *sync.Cond
	inbound  *queue.Queue
	outbound *queue.Queue
	closed   bool
}

func newPacketPipe(local, peer net.Addr) *packetPipe {
	p := &packetPipe{
		local:    local,
		peer:     peer,
		inbound:  queue.New(),
		outbound: queue.New(),
	}
	p.readable = sync.NewCond(&p.mu)
	return p
}

// pushInbound queues one received datagram for quic-go.
func (p *packetPipe) pushInbound(pkt []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return net.ErrClosed
	}
	cp := make([]byte, len(pkt))
	copy(cp, pkt)
	p.inbound.Add(cp)
	p.readable.Signal()
	return nil
}

// popOutbound moves the next datagram quic-go produced into buf. ok=false
// when nothing is pending.
func (p *packetPipe) popOutbound(buf []byte) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.outbound.Length() == 0 {
		return 0, false
	}
	pkt := p.outbound.Remove().([]byte)
	return copy(buf, pkt), true
}

// ReadFrom blocks until an ingested datagram is available or the pipe closes.
func (p *packetPipe) ReadFrom(b []byte) (int, net.Addr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.inbound.Length() == 0 && !p.closed {
		p.readable.Wait()
	}
	if p.closed {
		return 0, nil, net.ErrClosed
	}
	pkt := p.inbound.Remove().([]byte)
	return copy(b, pkt), p.peer, nil
}

// WriteTo never blocks; the datagram waits for the loop's next flush.
func (p *packetPipe) WriteTo(b []byte, _ net.Addr) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, net.ErrClosed
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	p.outbound.Add(cp)
	return len(b), nil
}

func (p *packetPipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.readable.Broadcast()
	return nil
}

func (p *packetPipe) LocalAddr() net.Addr { return p.local }

// Deadlines are unused: quic-go relies on Close to unblock its read loop.
func (p *packetPipe) SetDeadline(time.Time) error      { return nil }
func (p *packetPipe) SetReadDeadline(time.Time) error  { return nil }
func (p *packetPipe) SetWriteDeadline(time.Time) error { return nil }
