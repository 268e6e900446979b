// Package influx exports per-request latencies to InfluxDB 3 when enabled.
// A nil client is valid and turns every operation into a no-op, so callers
// never need to guard the export path.
package influx

import (
	"context"
	"time"

	"github.com/InfluxCommunity/influxdb3-go/influxdb3"

	"h3bench/internal/config"
	"h3bench/internal/printer"
)

const writeBatchSize = 5000

// Client wraps InfluxDB write operations.
type Client struct {
	client *influxdb3.Client
	ctx    context.Context
}

// NewClient connects to InfluxDB. It returns nil when export is disabled or
// the connection cannot be set up (graceful degradation).
func NewClient(ctx context.Context, cfg config.InfluxConfig) *Client {
	if !cfg.Enabled {
		return nil
	}

	client, err := influxdb3.New(influxdb3.ClientConfig{
		Host:     cfg.URL,
		Token:    cfg.Token,
		Database: cfg.Database,
	})
	if err != nil {
		printer.Warnf("InfluxDB not available at %s, metrics export disabled: %v", cfg.URL, err)
		return nil
	}

	printer.Infof("InfluxDB connected: %s", cfg.URL)
	return &Client{client: client, ctx: ctx}
}

// Close releases the connection.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if err := c.client.Close(); err != nil {
		printer.Warnf("InfluxDB close failed: %v", err)
	}
}

func (c *Client) writePoints(points []*influxdb3.Point) {
	if c == nil || len(points) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()

	if err := c.client.WritePoints(ctx, points); err != nil {
		printer.Warnf("InfluxDB write error: %v", err)
	}
}

// RunID generates a unique run identifier from timestamp.
func RunID(t time.Time) string {
	return t.UTC().Format("20060102-150405")
}
