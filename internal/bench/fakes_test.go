package bench

import (
	"errors"
	"time"

	"h3bench/internal/engine"
)

// fakeChannel never blocks: every WaitRecv reports either a queued packet or
// an expired wait. A call budget guards against runaway loops.
type fakeChannel struct {
	packets  [][]byte
	budget   int
	sendErr  error
	sent     [][]byte
	sendseen int
}

func newFakeChannel(budget int) *fakeChannel {
	return &fakeChannel{budget: budget}
}

func (c *fakeChannel) WaitRecv(buf []byte, _ time.Duration, _ bool) (int, bool, error) {
	c.budget--
	if c.budget < 0 {
		return 0, false, errors.New("test loop budget exhausted")
	}
	if len(c.packets) == 0 {
		return 0, true, nil
	}
	pkt := c.packets[0]
	c.packets = c.packets[1:]
	return copy(buf, pkt), false, nil
}

func (c *fakeChannel) Drain([]byte) (int, bool, error) {
	return 0, false, nil
}

func (c *fakeChannel) Send(pkt []byte) error {
	c.sendseen++
	if c.sendErr != nil {
		return c.sendErr
	}
	cp := make([]byte, len(pkt))
	copy(cp, pkt)
	c.sent = append(c.sent, cp)
	return nil
}

type closeCall struct {
	graceful bool
	code     uint64
	reason   string
}

// fakeEngine is a scriptable engine: establishment after a number of timeout
// ticks, optional close after a number of ticks, optional outbound datagrams
// and ingest errors.
type fakeEngine struct {
	establishAfter int
	closeAfter     int // <0 means never close on its own
	ticks          int

	outbound [][]byte
	recvErr  error
	recvd    int

	closed     bool
	closeCalls []closeCall
	stats      engine.TransferStats
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{closeAfter: -1}
}

func (e *fakeEngine) Recv([]byte) error {
	e.recvd++
	return e.recvErr
}

func (e *fakeEngine) Send(buf []byte) (int, error) {
	if len(e.outbound) == 0 {
		return 0, engine.ErrDone
	}
	pkt := e.outbound[0]
	e.outbound = e.outbound[1:]
	return copy(buf, pkt), nil
}

func (e *fakeEngine) Timeout() (time.Duration, bool) {
	return time.Millisecond, true
}

func (e *fakeEngine) OnTimeout() {
	e.ticks++
	if e.closeAfter >= 0 && e.ticks >= e.closeAfter {
		e.closed = true
	}
}

func (e *fakeEngine) IsEstablished() bool {
	return e.ticks >= e.establishAfter
}

func (e *fakeEngine) IsClosed() bool {
	return e.closed
}

func (e *fakeEngine) Close(graceful bool, code uint64, reason []byte) error {
	e.closeCalls = append(e.closeCalls, closeCall{graceful, code, string(reason)})
	e.closed = true
	return nil
}

func (e *fakeEngine) Stats() engine.TransferStats {
	return e.stats
}

// scripted response describes what the fake session plays back for one
// issued request.
type scriptedResponse struct {
	status    string // ":status" value; empty omits the headers event
	bodySizes []int  // one Data event per entry
	reset     bool   // end in Reset instead of Finished
	resetCode uint64
}

// fakeSession replays a scripted response per request the moment it is
// issued. Extra events can be injected directly into the queue.
type fakeSession struct {
	script  []scriptedResponse
	events  []engine.Event
	pending map[uint64][]int // unread body chunk sizes per stream

	issued  int
	nextID  uint64
	pollErr error
}

func newFakeSession(script ...scriptedResponse) *fakeSession {
	return &fakeSession{script: script, pending: make(map[uint64][]int)}
}

func (s *fakeSession) SendRequest([]engine.Header, bool) (uint64, error) {
	if s.issued >= len(s.script) {
		return 0, errors.New("no scripted response left")
	}
	resp := s.script[s.issued]
	id := s.nextID
	s.nextID += 4
	s.issued++

	if resp.status != "" {
		s.events = append(s.events, engine.Event{
			Kind:     engine.EventHeaders,
			StreamID: id,
			Headers:  []engine.Header{{Name: ":status", Value: resp.status}},
		})
	}
	for _, size := range resp.bodySizes {
		s.pending[id] = append(s.pending[id], size)
		s.events = append(s.events, engine.Event{Kind: engine.EventData, StreamID: id})
	}
	if resp.reset {
		s.events = append(s.events, engine.Event{
			Kind: engine.EventReset, StreamID: id, ErrorCode: resp.resetCode,
		})
	} else {
		s.events = append(s.events, engine.Event{Kind: engine.EventFinished, StreamID: id})
	}
	return id, nil
}

func (s *fakeSession) Poll() (engine.Event, error) {
	if s.pollErr != nil {
		err := s.pollErr
		s.pollErr = nil
		return engine.Event{}, err
	}
	if len(s.events) == 0 {
		return engine.Event{}, engine.ErrDone
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func (s *fakeSession) ReadBody(streamID uint64, buf []byte) (int, error) {
	sizes := s.pending[streamID]
	if len(sizes) == 0 {
		return 0, engine.ErrDone
	}
	n := sizes[0]
	if n > len(buf) {
		n = len(buf)
		s.pending[streamID][0] -= n
	} else {
		s.pending[streamID] = sizes[1:]
	}
	return n, nil
}
