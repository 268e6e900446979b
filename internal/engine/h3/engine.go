// Package h3 implements the engine contract on top of quic-go. The benchmark
// loop keeps ownership of the UDP socket and pumps datagrams through a pipe
// PacketConn; quic-go terminates QUIC and HTTP/3 behind it.
package h3

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/quic-go/logging"

	"h3bench/internal/engine"
)

// pollBound caps the loop's readiness wait. quic-go runs its own loss and
// idle timers internally, so the engine cannot export an exact deadline; a
// short bound keeps timer-driven sends flowing promptly.
const pollBound = 10 * time.Millisecond

// Options configure the connection.
type Options struct {
	Local       net.Addr
	Peer        net.Addr
	ServerName  string
	CACert      string
	Insecure    bool
	IdleTimeout time.Duration
}

// Engine drives one QUIC connection through the pipe PacketConn.
type Engine struct {
	pipe   *packetPipe
	conn   quic.EarlyConnection
	tracer *statsTracer
}

// Dial sets up the connection and hands the first handshake flight to the
// pipe. The handshake itself completes as the caller pumps packets.
func Dial(ctx context.Context, opts Options) (*Engine, error) {
	tlsConf, err := buildTLSConfig(opts)
	if err != nil {
		return nil, err
	}

	tracer := newStatsTracer()
	quicConf := &quic.Config{
		MaxIdleTimeout:          opts.IdleTimeout,
		DisablePathMTUDiscovery: true,
		Tracer: func(context.Context, logging.Perspective, quic.ConnectionID) *logging.ConnectionTracer {
			return tracer.connectionTracer()
		},
	}

	pipe := newPacketPipe(opts.Local, opts.Peer)
	conn, err := quic.DialEarly(ctx, pipe, opts.Peer, tlsConf, quicConf)
	if err != nil {
		_ = pipe.Close()
		return nil, fmt.Errorf("QUIC connect failed: %w", err)
	}

	return &Engine{pipe: pipe, conn: conn, tracer: tracer}, nil
}

func buildTLSConfig(opts Options) (*tls.Config, error) {
	conf := &tls.Config{
		ServerName:         opts.ServerName,
		NextProtos:         []string{http3.NextProtoH3},
		InsecureSkipVerify: opts.Insecure, //nolint:gosec // --insecure is an explicit user choice
	}

	if opts.CACert != "" {
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		pem, err := os.ReadFile(opts.CACert) //nolint:gosec // CA path is user-provided on purpose
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", opts.CACert)
		}
		conf.RootCAs = pool
	}

	return conf, nil
}

// Recv ingests one received datagram.
func (e *Engine) Recv(pkt []byte) error {
	return e.pipe.pushInbound(pkt)
}

// Send fills buf with the next produced datagram, engine.ErrDone when none.
func (e *Engine) Send(buf []byte) (int, error) {
	n, ok := e.pipe.popOutbound(buf)
	if !ok {
		return 0, engine.ErrDone
	}
	return n, nil
}

// Timeout reports the readiness-wait bound.
func (e *Engine) Timeout() (time.Duration, bool) {
	return pollBound, true
}

// OnTimeout is called when the wait expired. Timer state lives inside
// quic-go, so there is nothing to advance here.
func (e *Engine) OnTimeout() {}

func (e *Engine) IsEstablished() bool {
	select {
	case <-e.conn.HandshakeComplete():
		return true
	default:
		return false
	}
}

func (e *Engine) IsClosed() bool {
	select {
	case <-e.conn.Context().Done():
		return true
	default:
		return false
	}
}

// Close initiates connection shutdown with the given application error.
func (e *Engine) Close(_ bool, code uint64, reason []byte) error {
	return e.conn.CloseWithError(quic.ApplicationErrorCode(code), string(reason))
}

func (e *Engine) Stats() engine.TransferStats {
	return e.tracer.snapshot()
}

// Shutdown releases the pipe after the run. Safe to call more than once.
func (e *Engine) Shutdown() {
	_ = e.pipe.Close()
}
