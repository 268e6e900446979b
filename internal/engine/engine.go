// Package engine defines the contract between the benchmark loop and the
// QUIC/HTTP-3 engine that terminates the secure transport and the
// request/response session layer. The loop owns the UDP socket and pumps raw
// datagrams through an Engine; the Session turns responses into a stream of
// polled events.
package engine

import (
	"errors"
	"time"
)

// ErrDone signals "nothing more right now": no pending outbound datagram, no
// queued event, no buffered body bytes. It is a control signal, not a failure.
var ErrDone = errors.New("engine: done")

// Header is one request or response header. Pseudo-headers use the ":name"
// form.
type Header struct {
	Name  string
	Value string
}

// EventKind discriminates session events.
type EventKind int

const (
	EventHeaders EventKind = iota
	EventData
	EventFinished
	EventReset
	EventGoAway
	EventPriorityUpdate
)

func (k EventKind) String() string {
	switch k {
	case EventHeaders:
		return "headers"
	case EventData:
		return "data"
	case EventFinished:
		return "finished"
	case EventReset:
		return "reset"
	case EventGoAway:
		return "goaway"
	case EventPriorityUpdate:
		return "priority_update"
	}
	return "unknown"
}

// Event is one session-layer occurrence. Headers carries the response header
// list; ErrorCode is set for Reset. Time, when non-zero, is the moment the
// engine observed the occurrence; consumers should prefer it over their own
// clock so that poll granularity does not skew measurements.
type Event struct {
	Kind      EventKind
	StreamID  uint64
	Headers   []Header
	ErrorCode uint64
	Time      time.Time
}

// TransferStats are aggregate counters for one connection.
type TransferStats struct {
	PacketsSent uint64
	PacketsRecv uint64
	PacketsLost uint64
	BytesSent   uint64
	BytesRecv   uint64

	// RTT and MinRTT are valid only when HasPath is true, i.e. at least one
	// path measurement completed.
	HasPath bool
	RTT     time.Duration
	MinRTT  time.Duration
}

// Engine is the transport half of the contract: a secure connection fed and
// drained one datagram at a time by the caller's event loop.
type Engine interface {
	// Recv ingests one received datagram. An error is local to that packet
	// and does not invalidate the connection.
	Recv(pkt []byte) error

	// Send fills buf with the next datagram to put on the wire. It returns
	// ErrDone when nothing is pending.
	Send(buf []byte) (int, error)

	// Timeout reports the bound for the caller's next readiness wait. ok is
	// false when the engine needs no wakeup.
	Timeout() (d time.Duration, ok bool)

	// OnTimeout must be called when the readiness wait expires without data.
	OnTimeout()

	IsEstablished() bool
	IsClosed() bool

	// Close initiates connection shutdown with an application error code and
	// reason. graceful distinguishes an orderly close from an abort.
	Close(graceful bool, code uint64, reason []byte) error

	Stats() TransferStats
}

// Session is the request/response half, created once the connection is
// established.
type Session interface {
	// SendRequest issues a request with the given header list and returns an
	// opaque stream handle. fin marks the request as having no body.
	SendRequest(hdrs []Header, fin bool) (uint64, error)

	// Poll pops the next session event. It returns ErrDone when the queue is
	// empty for now.
	Poll() (Event, error)

	// ReadBody copies buffered response body bytes for the stream into buf.
	// It returns ErrDone when no more bytes are available right now.
	ReadBody(streamID uint64, buf []byte) (int, error)
}
