package bench

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"h3bench/internal/engine"
)

func newTestPipeline(sess engine.Session, warmup, requests uint32) (*pipeline, *fakeEngine, *Recorder) {
	eng := newFakeEngine()
	rec := NewRecorder(requests)
	p := newPipeline(eng, nil, warmup, requests, rec, zap.NewNop())
	p.bind(sess)
	return p, eng, rec
}

func TestStaleStreamEventsAreIgnored(t *testing.T) {
	defer goleak.VerifyNone(t)

	sess := newFakeSession(scriptedResponse{status: "200"})
	p, eng, rec := newTestPipeline(sess, 0, 1)

	require.NoError(t, p.issueNext())
	require.NotNil(t, p.req)

	// Events for a stream that is not the inflight one must not touch it.
	stale := p.req.streamID + 4
	p.handle(engine.Event{Kind: engine.EventHeaders, StreamID: stale,
		Headers: []engine.Header{{Name: ":status", Value: "503"}}})
	p.handle(engine.Event{Kind: engine.EventData, StreamID: stale})
	p.handle(engine.Event{Kind: engine.EventFinished, StreamID: stale})
	p.handle(engine.Event{Kind: engine.EventReset, StreamID: stale})

	require.NotNil(t, p.req)
	require.Zero(t, p.done)
	require.Empty(t, rec.Results())
	require.Empty(t, eng.closeCalls)
}

func TestStatusParseFailureDefaultsToZero(t *testing.T) {
	defer goleak.VerifyNone(t)

	sess := newFakeSession(scriptedResponse{status: "banana"})
	p, _, rec := newTestPipeline(sess, 0, 1)

	require.NoError(t, p.issueNext())
	p.drainEvents()

	results := rec.Results()
	require.Len(t, results, 1)
	require.Zero(t, results[0].Status)
}

func TestFinishedWithoutHeadersYieldsTTFBEqualTotal(t *testing.T) {
	defer goleak.VerifyNone(t)

	sess := newFakeSession(scriptedResponse{})
	p, _, rec := newTestPipeline(sess, 0, 1)

	require.NoError(t, p.issueNext())
	p.drainEvents()

	results := rec.Results()
	require.Len(t, results, 1)
	require.Equal(t, results[0].TotalTime, results[0].TTFB)
}

func TestEventTimestampPreferredOverClock(t *testing.T) {
	defer goleak.VerifyNone(t)

	sess := newFakeSession(scriptedResponse{status: "200"})
	p, _, rec := newTestPipeline(sess, 0, 1)

	require.NoError(t, p.issueNext())

	firstByte := p.req.start.Add(3 * time.Millisecond)
	finished := p.req.start.Add(7 * time.Millisecond)
	id := p.req.streamID

	p.handle(engine.Event{Kind: engine.EventHeaders, StreamID: id, Time: firstByte,
		Headers: []engine.Header{{Name: ":status", Value: "200"}}})
	p.handle(engine.Event{Kind: engine.EventFinished, StreamID: id, Time: finished})

	results := rec.Results()
	require.Len(t, results, 1)
	require.Equal(t, 3*time.Millisecond, results[0].TTFB)
	require.Equal(t, 7*time.Millisecond, results[0].TotalTime)
}

func TestGoAwayRequestsDistinctCloseReason(t *testing.T) {
	defer goleak.VerifyNone(t)

	sess := newFakeSession(scriptedResponse{status: "200"})
	p, eng, _ := newTestPipeline(sess, 0, 2)

	p.handle(engine.Event{Kind: engine.EventGoAway})

	require.Len(t, eng.closeCalls, 1)
	require.True(t, eng.closeCalls[0].graceful)
	require.Equal(t, "goaway", eng.closeCalls[0].reason)
}

func TestPollErrorStopsDrainWithoutAborting(t *testing.T) {
	defer goleak.VerifyNone(t)

	sess := newFakeSession(scriptedResponse{status: "200"})
	sess.pollErr = errors.New("transient decode failure")
	p, _, rec := newTestPipeline(sess, 0, 1)

	require.NoError(t, p.issueNext())
	p.drainEvents() // consumes the error, drains nothing
	require.Empty(t, rec.Results())

	p.drainEvents() // next pass picks the queued events back up
	require.Len(t, rec.Results(), 1)
}

func TestNoIssueBeyondConfiguredTotal(t *testing.T) {
	defer goleak.VerifyNone(t)

	sess := newFakeSession(scriptedResponse{status: "200"})
	p, _, _ := newTestPipeline(sess, 0, 1)

	require.NoError(t, p.issueNext())
	p.drainEvents()
	require.NoError(t, p.issueNext())

	require.Equal(t, 1, sess.issued)
}

func TestRecorderTTFBFallback(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := NewRecorder(2)
	start := time.Now()

	rec.Record(0, 200, start, start.Add(time.Millisecond), start.Add(5*time.Millisecond), 10)
	rec.Record(1, 204, start, time.Time{}, start.Add(2*time.Millisecond), 0)

	results := rec.Results()
	require.Len(t, results, 2)
	require.Equal(t, time.Millisecond, results[0].TTFB)
	require.Equal(t, 5*time.Millisecond, results[0].TotalTime)
	require.Equal(t, results[1].TotalTime, results[1].TTFB)
}
