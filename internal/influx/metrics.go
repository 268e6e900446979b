package influx

import (
	"time"

	"github.com/InfluxCommunity/influxdb3-go/influxdb3"

	"h3bench/internal/bench"
)

// WriteRequestLatencies exports one point per measured request. Points are
// spaced a microsecond apart so InfluxDB keeps them distinct.
func (c *Client) WriteRequestLatencies(runID, endpoint string, results []bench.Result) {
	if c == nil {
		return
	}

	baseTime := time.Now()
	points := make([]*influxdb3.Point, 0, min(len(results), writeBatchSize))
	for i, r := range results {
		if c.ctx != nil && c.ctx.Err() != nil {
			return
		}
		points = append(points, influxdb3.NewPoint(
			"request_latency",
			map[string]string{
				"run_id":   runID,
				"endpoint": endpoint,
				"method":   "GET",
			},
			map[string]any{
				"index":    int64(r.Index),
				"status":   int64(r.Status),
				"ttfb_ns":  r.TTFB.Nanoseconds(),
				"total_ns": r.TotalTime.Nanoseconds(),
				"bytes":    int64(r.BytesReceived),
			},
			baseTime.Add(time.Duration(i)*time.Microsecond),
		))
		if len(points) >= writeBatchSize {
			c.writePoints(points)
			points = points[:0]
		}
	}
	c.writePoints(points)
}

// WriteRunMeta records run-level metadata.
func (c *Client) WriteRunMeta(runID, endpoint string, requests, warmup uint32) {
	if c == nil {
		return
	}

	c.writePoints([]*influxdb3.Point{influxdb3.NewPoint(
		"run_meta",
		map[string]string{
			"run_id":   runID,
			"endpoint": endpoint,
		},
		map[string]any{
			"requests": int64(requests),
			"warmup":   int64(warmup),
		},
		time.Now(),
	)})
}
