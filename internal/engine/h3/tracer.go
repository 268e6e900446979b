package h3

import (
	"sync"
	"time"

	"github.com/quic-go/quic-go/logging"

	"h3bench/internal/engine"
)

// statsTracer accumulates transfer counters from quic-go's tracer callbacks.
type statsTracer struct {
	mu sync.Mutex

	packetsSent uint64
	packetsRecv uint64
	packetsLost uint64
	bytesSent   uint64
	bytesRecv   uint64

	hasPath bool
	rtt     time.Duration
	minRTT  time.Duration
}

func newStatsTracer() *statsTracer {
	return &statsTracer{}
}

func (t *statsTracer) connectionTracer() *logging.ConnectionTracer {
	return &logging.ConnectionTracer{
		SentShortHeaderPacket: func(_ *logging.ShortHeader, size logging.ByteCount, _ logging.ECN, _ *logging.AckFrame, _ []logging.Frame) {
			t.addSent(uint64(size))
		},
		SentLongHeaderPacket: func(_ *logging.ExtendedHeader, size logging.ByteCount, _ logging.ECN, _ *logging.AckFrame, _ []logging.Frame) {
			t.addSent(uint64(size))
		},
		ReceivedShortHeaderPacket: func(_ *logging.ShortHeader, size logging.ByteCount, _ logging.ECN, _ []logging.Frame) {
			t.addRecv(uint64(size))
		},
		ReceivedLongHeaderPacket: func(_ *logging.ExtendedHeader, size logging.ByteCount, _ logging.ECN, _ []logging.Frame) {
			t.addRecv(uint64(size))
		},
		LostPacket: func(_ logging.EncryptionLevel, _ logging.PacketNumber, _ logging.PacketLossReason) {
			t.mu.Lock()
			t.packetsLost++
			t.mu.Unlock()
		},
		UpdatedMetrics: func(rttStats *logging.RTTStats, _, _ logging.ByteCount, _ int) {
			t.mu.Lock()
			t.hasPath = true
			t.rtt = rttStats.SmoothedRTT()
			t.minRTT = rttStats.MinRTT()
			t.mu.Unlock()
		},
	}
}

func (t *statsTracer) addSent(size uint64) {
	t.mu.Lock()
	t.packetsSent++
	t.bytesSent += size
	t.mu.Unlock()
}

func (t *statsTracer) addRecv(size uint64) {
	t.mu.Lock()
	t.packetsRecv++
	t.bytesRecv += size
	t.mu.Unlock()
}

func (t *statsTracer) snapshot() engine.TransferStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return engine.TransferStats{
		PacketsSent: t.packetsSent,
		PacketsRecv: t.packetsRecv,
		PacketsLost: t.packetsLost,
		BytesSent:   t.bytesSent,
		BytesRecv:   t.bytesRecv,
		HasPath:     t.hasPath,
		RTT:         t.rtt,
		MinRTT:      t.minRTT,
	}
}
