// Package report renders run output: per-request CSV rows on stdout and a
// human-readable summary on stderr.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"h3bench/internal/bench"
	"h3bench/internal/config"
	"h3bench/internal/engine"
	"h3bench/internal/printer"
)

// WriteCSV emits the result rows in completion order, millisecond timings
// with 3 decimal places.
func WriteCSV(w io.Writer, results []bench.Result) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"index", "status", "ttfb_ms", "total_time_ms", "bytes"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range results {
		row := []string{
			strconv.FormatUint(uint64(r.Index), 10),
			strconv.Itoa(r.Status),
			fmt.Sprintf("%.3f", float64(r.TTFB.Nanoseconds())/1e6),
			fmt.Sprintf("%.3f", float64(r.TotalTime.Nanoseconds())/1e6),
			strconv.FormatUint(r.BytesReceived, 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// PrintSummary writes the endpoint, request counts, RTT estimate, and
// transfer counters to stderr.
func PrintSummary(cfg *config.Config, stats engine.TransferStats, measured int) {
	printer.Rule()
	printer.KeyValue("endpoint", cfg.URL)
	printer.KeyValue("requests", fmt.Sprintf("%d (+ %d warmup)", cfg.Requests, cfg.Warmup))
	printer.KeyValue("measured rows", strconv.Itoa(measured))

	if stats.HasPath {
		printer.KeyValue("rtt", fmt.Sprintf("%s (min: %s)",
			printer.FormatMillis(stats.RTT), printer.FormatMillis(stats.MinRTT)))
	}

	printer.KeyValue("packets", fmt.Sprintf("sent=%d recv=%d lost=%d",
		stats.PacketsSent, stats.PacketsRecv, stats.PacketsLost))
	printer.KeyValue("bytes", fmt.Sprintf("sent=%d recv=%d",
		stats.BytesSent, stats.BytesRecv))
}
