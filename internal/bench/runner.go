// Package bench drives one benchmark run: it pumps datagrams between the
// channel and the engine, sequences requests one at a time, and records
// per-request timings.
package bench

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"h3bench/internal/engine"
)

const (
	maxDatagramSize = 1350
	recvBufferSize  = 65535
)

// PacketChannel is the readiness-driven datagram channel the runner pumps.
// netio.Channel is the production implementation.
type PacketChannel interface {
	WaitRecv(buf []byte, bound time.Duration, bounded bool) (n int, timedOut bool, err error)
	Drain(buf []byte) (n int, pending bool, err error)
	Send(pkt []byte) error
}

// SessionFactory builds the request/response session once the connection is
// established. It is invoked at most once per run.
type SessionFactory func() (engine.Session, error)

// Runner owns the connection for the whole run and decides when it ends.
type Runner struct {
	eng        engine.Engine
	ch         PacketChannel
	newSession SessionFactory
	pipe       *pipeline
	log        *zap.Logger
}

// NewRunner wires a runner for warmup+requests sequential requests carrying
// the given header set.
func NewRunner(eng engine.Engine, ch PacketChannel, newSession SessionFactory,
	hdrs []engine.Header, warmup, requests uint32, rec *Recorder, log *zap.Logger) *Runner {
	return &Runner{
		eng:        eng,
		ch:         ch,
		newSession: newSession,
		pipe:       newPipeline(eng, hdrs, warmup, requests, rec, log),
		log:        log,
	}
}

// Run executes the connection loop until the engine reports the connection
// closed. Handshake, session-construction, and send failures are fatal;
// per-packet and per-event failures are logged and recovered.
func (r *Runner) Run(ctx context.Context) error {
	in := make([]byte, recvBufferSize)
	out := make([]byte, maxDatagramSize)

	// Put the first handshake flight on the wire before waiting for the
	// peer; nothing arrives until we speak first.
	if err := r.flush(out); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			_ = r.eng.Close(false, closeCodeFail, []byte("canceled"))
			return err
		}

		bound, bounded := r.eng.Timeout()
		n, timedOut, err := r.ch.WaitRecv(in, bound, bounded)
		if err != nil {
			return err
		}

		if timedOut {
			r.eng.OnTimeout()
		} else {
			r.ingest(in[:n])
			for {
				n, pending, err := r.ch.Drain(in)
				if err != nil {
					return err
				}
				if !pending {
					break
				}
				r.ingest(in[:n])
			}
		}

		if r.eng.IsClosed() {
			break
		}

		if r.eng.IsEstablished() && r.pipe.sess == nil {
			sess, err := r.newSession()
			if err != nil {
				return fmt.Errorf("failed to create session: %w", err)
			}
			r.pipe.bind(sess)
		}

		if err := r.pipe.issueNext(); err != nil {
			return err
		}
		r.pipe.drainEvents()

		if err := r.flush(out); err != nil {
			return err
		}

		if r.eng.IsClosed() {
			break
		}
	}

	// Best effort: put anything the close produced on the wire, so the peer
	// sees CONNECTION_CLOSE instead of waiting out its idle timer.
	for {
		n, err := r.eng.Send(out)
		if err != nil {
			break
		}
		if err := r.ch.Send(out[:n]); err != nil {
			break
		}
	}

	return nil
}

// ingest feeds one received datagram to the engine. A failure is local to
// that packet: a single malformed datagram must not abort the connection.
func (r *Runner) ingest(pkt []byte) {
	if err := r.eng.Recv(pkt); err != nil {
		r.log.Warn("packet ingest failed", zap.Error(err))
	}
}

// flush sends produced datagrams until the engine has nothing pending. A
// send-layer failure is fatal: best-effort immediate close, then surface.
func (r *Runner) flush(out []byte) error {
	for {
		n, err := r.eng.Send(out)
		if err != nil {
			if errors.Is(err, engine.ErrDone) {
				return nil
			}
			_ = r.eng.Close(false, closeCodeFail, []byte("fail"))
			return fmt.Errorf("send failed: %w", err)
		}
		if err := r.ch.Send(out[:n]); err != nil {
			_ = r.eng.Close(false, closeCodeFail, []byte("fail"))
			return err
		}
	}
}
