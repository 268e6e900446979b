package bench

import "time"

// Result is one completed measured request. Results are immutable once
// recorded.
type Result struct {
	Index         uint32
	Status        int
	TTFB          time.Duration
	TotalTime     time.Duration
	BytesReceived uint64
}

// Recorder owns the ordered sequence of measured results, appended in
// completion order and never mutated afterwards.
type Recorder struct {
	results []Result
}

func NewRecorder(capacity uint32) *Recorder {
	return &Recorder{results: make([]Result, 0, capacity)}
}

// Record appends one result. When no first-byte moment was observed before
// completion, TTFB falls back to the total time.
func (r *Recorder) Record(index uint32, status int, start, firstByte, end time.Time, bytes uint64) {
	ttfb := end.Sub(start)
	if !firstByte.IsZero() {
		ttfb = firstByte.Sub(start)
	}
	r.results = append(r.results, Result{
		Index:         index,
		Status:        status,
		TTFB:          ttfb,
		TotalTime:     end.Sub(start),
		BytesReceived: bytes,
	})
}

// Results returns the recorded sequence in completion order.
func (r *Recorder) Results() []Result {
	return r.results
}
