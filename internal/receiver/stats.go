// Package receiver implements the receive-side pipeline: per-peer
// ordered-emit demultiplexing, rolling loss/latency/volume statistics,
// and the periodic status line a receiver prints while running.
package receiver

import (
	"fmt"
	"net"
	"time"

	"soundsync/internal/rolling"
)

// Window, VolumeWindow and UpdateInterval are the built-in defaults,
// used whenever a caller constructs a Stats without going through a
// loaded config.Config (e.g. in tests).
const (
	Window         = 10 * time.Second
	VolumeWindow   = 200 * time.Millisecond
	UpdateInterval = 200 * time.Millisecond
)

// Stats accumulates one peer's receive-side telemetry: loss/order
// counters plus the rolling rate, latency and volume aggregates that
// feed the status line.
type Stats struct {
	TotalBytesReceived   uint64
	TotalPacketsReceived uint64
	LostPackets          uint64
	OutOfOrderPackets    uint64

	byteRate    *rolling.Rate
	latencyMean *rolling.Mean
	Volume      *rolling.Volume
}

// NewStats constructs a Stats with the built-in default window sizes.
func NewStats() *Stats {
	return NewStatsWithWindows(Window, VolumeWindow)
}

// NewStatsWithWindows constructs a Stats whose rolling aggregates use
// the given window and volume-window durations, letting callers thread
// config.Config.StatsWindow/VolumeWindow through per peer.
func NewStatsWithWindows(window, volumeWindow time.Duration) *Stats {
	if window <= 0 {
		window = Window
	}
	if volumeWindow <= 0 {
		volumeWindow = VolumeWindow
	}
	return &Stats{
		byteRate:    rolling.NewRate(window),
		latencyMean: rolling.NewMean(window),
		Volume:      rolling.NewVolume(volumeWindow),
	}
}

// OnPacket records one received data frame: its wire size for the byte
// total, its payload length for the rate aggregate, and its computed
// one-way latency for the latency mean.
func (s *Stats) OnPacket(now time.Time, bytesReceived, payloadLen int, latencyMS float64) {
	s.TotalBytesReceived += uint64(bytesReceived)
	s.TotalPacketsReceived++
	s.byteRate.Record(now, uint64(payloadLen))
	s.latencyMean.Record(now, latencyMS)
}

// MarkLost records a gap of lostCount sequence numbers that were never
// seen.
func (s *Stats) MarkLost(lostCount uint64) { s.LostPackets += lostCount }

// MarkOutOfOrder records one packet that arrived behind the already
// advanced expected sequence (a late or duplicate delivery).
func (s *Stats) MarkOutOfOrder() { s.OutOfOrderPackets++ }

// FormatStatusLine renders the single-line, carriage-return-prefixed
// status string a receiver prints for this peer.
func (s *Stats) FormatStatusLine(now time.Time, expectedSequence uint64, src net.Addr, offsetMS, driftPPM float64) string {
	bytesPerSec := s.byteRate.PerSecond(now)
	avgRateKBs := bytesPerSec / 1024.0
	avgLatencyMS := s.latencyMean.Average(now)
	db := s.Volume.DBFS(now)

	lossPct := 0.0
	if expectedSequence > 0 {
		lossPct = (float64(s.LostPackets) / float64(expectedSequence)) * 100.0
	}
	totalMB := float64(s.TotalBytesReceived) / (1024.0 * 1024.0)

	return fmt.Sprintf(
		"\r[%s] Recv: %d | Lost: %d (%.2f%%) | Late: %d | Total: %.2f MB | "+
			"Avg10s: %.2f KB/s | Lat10s: %.2f ms | Vol: %6.1f dBFS | "+
			"Off: %+.2f ms | Drift: %+.1f ppm   ",
		src, s.TotalPacketsReceived, s.LostPackets, lossPct, s.OutOfOrderPackets,
		totalMB, avgRateKBs, avgLatencyMS, db, offsetMS, driftPPM,
	)
}
