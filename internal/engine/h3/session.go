package h3

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/valyala/bytebufferpool"

	"h3bench/internal/engine"
)

// Session adapts http3.ClientConn to the polled event contract. Each request
// runs in its own goroutine that re-emits response progress as events; the
// caller's loop observes them through Poll and ReadBody.
type Session struct {
	cc *http3.ClientConn

	mu         sync.Mutex
	events     *queue.Queue
	bodies     map[uint64]*bodyBuffer
	nextStream uint64
}

// bodyBuffer holds response body chunks not yet consumed through ReadBody.
type bodyBuffer struct {
	chunks *queue.Queue
	offset int
}

// NewSession binds the HTTP/3 session to the established connection.
func (e *Engine) NewSession() (engine.Session, error) {
	if !e.IsEstablished() {
		return nil, errors.New("connection not established")
	}
	tr := &http3.Transport{}
	return &Session{
		cc:     tr.NewClientConn(e.conn),
		events: queue.New(),
		bodies: make(map[uint64]*bodyBuffer),
	}, nil
}

// SendRequest issues one request built from the header list. The returned
// handle follows the client bidirectional stream numbering (0, 4, 8, ...).
func (s *Session) SendRequest(hdrs []engine.Header, fin bool) (uint64, error) {
	req, err := buildRequest(hdrs)
	if err != nil {
		return 0, err
	}
	if !fin {
		return 0, errors.New("requests with bodies are not supported")
	}

	s.mu.Lock()
	id := s.nextStream
	s.nextStream += 4
	s.bodies[id] = &bodyBuffer{chunks: queue.New()}
	s.mu.Unlock()

	go s.roundTrip(id, req)
	return id, nil
}

func buildRequest(hdrs []engine.Header) (*http.Request, error) {
	var method, scheme, authority, path string
	fields := http.Header{}

	for _, h := range hdrs {
		switch h.Name {
		case ":method":
			method = h.Value
		case ":scheme":
			scheme = h.Value
		case ":authority":
			authority = h.Value
		case ":path":
			path = h.Value
		default:
			fields.Add(h.Name, h.Value)
		}
	}
	if method == "" || scheme == "" || authority == "" || path == "" {
		return nil, errors.New("incomplete pseudo-header set")
	}

	u, err := url.Parse(scheme + "://" + authority + path)
	if err != nil {
		return nil, fmt.Errorf("invalid request target: %w", err)
	}

	req, err := http.NewRequest(method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header = fields
	return req, nil
}

func (s *Session) roundTrip(id uint64, req *http.Request) {
	resp, err := s.cc.RoundTrip(req)
	if err != nil {
		s.pushFailure(id, err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	respHdrs := make([]engine.Header, 0, len(resp.Header)+1)
	respHdrs = append(respHdrs, engine.Header{Name: ":status", Value: strconv.Itoa(resp.StatusCode)})
	for name, values := range resp.Header {
		for _, v := range values {
			respHdrs = append(respHdrs, engine.Header{Name: strings.ToLower(name), Value: v})
		}
	}
	s.push(engine.Event{Kind: engine.EventHeaders, StreamID: id, Headers: respHdrs})

	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			s.pushChunk(id, buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.push(engine.Event{Kind: engine.EventFinished, StreamID: id})
			} else {
				s.pushFailure(id, err)
			}
			return
		}
	}
}

// pushFailure maps transport errors onto session events: a rejected request
// means the server is going away, stream-level errors are resets.
func (s *Session) pushFailure(id uint64, err error) {
	s.dropBody(id)

	var h3err *http3.Error
	if errors.As(err, &h3err) {
		if h3err.ErrorCode == http3.ErrCodeRequestRejected {
			s.push(engine.Event{Kind: engine.EventGoAway, StreamID: id})
			return
		}
		s.push(engine.Event{Kind: engine.EventReset, StreamID: id, ErrorCode: uint64(h3err.ErrorCode)})
		return
	}

	var serr *quic.StreamError
	if errors.As(err, &serr) {
		s.push(engine.Event{Kind: engine.EventReset, StreamID: id, ErrorCode: uint64(serr.ErrorCode)})
		return
	}

	s.push(engine.Event{Kind: engine.EventReset, StreamID: id})
}

func (s *Session) push(ev engine.Event) {
	ev.Time = time.Now()
	s.mu.Lock()
	s.events.Add(ev)
	s.mu.Unlock()
}

func (s *Session) pushChunk(id uint64, data []byte) {
	bb := bytebufferpool.Get()
	_, _ = bb.Write(data)

	s.mu.Lock()
	if body, ok := s.bodies[id]; ok {
		body.chunks.Add(bb)
	} else {
		bytebufferpool.Put(bb)
	}
	s.mu.Unlock()

	s.push(engine.Event{Kind: engine.EventData, StreamID: id})
}

func (s *Session) dropBody(id uint64) {
	s.mu.Lock()
	if body, ok := s.bodies[id]; ok {
		for body.chunks.Length() > 0 {
			bytebufferpool.Put(body.chunks.Remove().(*bytebufferpool.ByteBuffer))
		}
		delete(s.bodies, id)
	}
	s.mu.Unlock()
}

// Poll pops the next session event, engine.ErrDone when the queue is empty.
func (s *Session) Poll() (engine.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.events.Length() == 0 {
		return engine.Event{}, engine.ErrDone
	}
	return s.events.Remove().(engine.Event), nil
}

// ReadBody copies buffered body bytes for the stream into buf,
// engine.ErrDone when nothing is buffered right now.
func (s *Session) ReadBody(streamID uint64, buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, ok := s.bodies[streamID]
	if !ok || body.chunks.Length() == 0 {
		return 0, engine.ErrDone
	}

	copied := 0
	for copied < len(buf) && body.chunks.Length() > 0 {
		bb := body.chunks.Peek().(*bytebufferpool.ByteBuffer)
		n := copy(buf[copied:], bb.B[body.offset:])
		copied += n
		body.offset += n

		if body.offset == len(bb.B) {
			body.chunks.Remove()
			body.offset = 0
			bytebufferpool.Put(bb)
		}
	}
	return copied, nil
}
