package bench

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"h3bench/internal/engine"
)

// Application close codes sent with CONNECTION_CLOSE. 0x100 is H3_NO_ERROR.
const (
	closeCodeDone = 0x100
	closeCodeFail = 0x1
)

// inflight is the single request currently outstanding. Exactly one exists
// between issue and Finished/Reset; the slot is nil otherwise.
type inflight struct {
	streamID  uint64
	start     time.Time
	firstByte time.Time
	status    int
	bytes     uint64
}

// pipeline enforces single-in-flight request sequencing and translates
// session events into request lifecycle transitions.
type pipeline struct {
	eng  engine.Engine
	sess engine.Session
	log  *zap.Logger

	hdrs   []engine.Header
	warmup uint32
	total  uint32

	sent uint32
	done uint32
	req  *inflight

	rec     *Recorder
	bodyBuf []byte

	// issueHook, when set, observes every request issue. Used by tests to
	// verify that no second request is issued while one is outstanding.
	issueHook func(streamID uint64)
}

func newPipeline(eng engine.Engine, hdrs []engine.Header, warmup, requests uint32, rec *Recorder, log *zap.Logger) *pipeline {
	return &pipeline{
		eng:     eng,
		log:     log,
		hdrs:    hdrs,
		warmup:  warmup,
		total:   warmup + requests,
		rec:     rec,
		bodyBuf: make([]byte, 64*1024),
	}
}

func (p *pipeline) bind(sess engine.Session) {
	p.sess = sess
}

// issueNext sends the next request when the slot is free and requests remain.
// Requests are strictly sequential: the next one is never issued before the
// previous resolved.
func (p *pipeline) issueNext() error {
	if p.sess == nil || p.req != nil || p.sent >= p.total {
		return nil
	}

	streamID, err := p.sess.SendRequest(p.hdrs, true)
	if err != nil {
		return fmt.Errorf("failed to issue request: %w", err)
	}

	p.req = &inflight{streamID: streamID, start: time.Now()}
	p.sent++

	if p.issueHook != nil {
		p.issueHook(streamID)
	}
	return nil
}

// drainEvents pops session events until the queue is empty for this pass.
// Event-source errors are recovered locally: logged, drain stops, the loop
// continues.
func (p *pipeline) drainEvents() {
	if p.sess == nil {
		return
	}
	for {
		ev, err := p.sess.Poll()
		if err != nil {
			if !errors.Is(err, engine.ErrDone) {
				p.log.Warn("session poll failed", zap.Error(err))
			}
			return
		}
		p.handle(ev)
	}
}

func (p *pipeline) handle(ev engine.Event) {
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	switch ev.Kind {
	case engine.EventHeaders:
		if p.req == nil || ev.StreamID != p.req.streamID {
			return
		}
		if p.req.firstByte.IsZero() {
			p.req.firstByte = ts
		}
		for _, h := range ev.Headers {
			if h.Name == ":status" {
				status, err := strconv.Atoi(h.Value)
				if err != nil {
					status = 0
				}
				p.req.status = status
			}
		}

	case engine.EventData:
		if p.req == nil || ev.StreamID != p.req.streamID {
			return
		}
		for {
			n, err := p.sess.ReadBody(ev.StreamID, p.bodyBuf)
			if err != nil {
				if !errors.Is(err, engine.ErrDone) {
					p.log.Warn("body read failed",
						zap.Uint64("stream", ev.StreamID), zap.Error(err))
				}
				break
			}
			p.req.bytes += uint64(n)
		}

	case engine.EventFinished:
		if p.req == nil || ev.StreamID != p.req.streamID {
			return
		}
		req := p.req
		p.req = nil

		if p.done >= p.warmup {
			p.rec.Record(p.done-p.warmup, req.status, req.start, req.firstByte, ts, req.bytes)
		}
		p.done++
		p.maybeClose()

	case engine.EventReset:
		if p.req == nil || ev.StreamID != p.req.streamID {
			return
		}
		p.log.Warn("stream reset by peer",
			zap.Uint64("stream", ev.StreamID), zap.Uint64("code", ev.ErrorCode))
		p.req = nil
		p.done++
		p.maybeClose()

	case engine.EventGoAway:
		p.log.Warn("received GOAWAY")
		p.requestClose("goaway")

	default:
		// priority updates and future event kinds carry no state here
	}
}

// maybeClose requests a graceful connection close once every request has
// resolved, whether by completion or by reset.
func (p *pipeline) maybeClose() {
	if p.done >= p.total {
		p.requestClose("done")
	}
}

func (p *pipeline) requestClose(reason string) {
	if err := p.eng.Close(true, closeCodeDone, []byte(reason)); err != nil {
		p.log.Debug("close request failed", zap.Error(err))
	}
}
