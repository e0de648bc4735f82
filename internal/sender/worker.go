// Package sender implements the send-side pipeline: a Worker that turns
// captured PCM chunks into wire DataFrames with silence collapsing and
// periodic telemetry, plus the ping/pong handshake and time-sync
// responder a sender runs alongside it.
package sender

import (
	"net"
	"sync"
	"time"

	"soundsync/internal/clock"
	"soundsync/internal/rolling"
	"soundsync/internal/wire"
)

// MaxPayload bounds a single chunk's payload, matching capture.MaxPayload.
// Kept as a separate constant so this package does not need to import
// capture just for the number.
const MaxPayload = 1024

// StatsWindow sizes the byte and packet rate aggregates the worker
// maintains; VolumeWindow is a default volume window for callers (the
// worker itself meters into whatever Volume it is given); UpdateInterval
// throttles how often Stats are emitted.
const (
	StatsWindow    = 10 * time.Second
	VolumeWindow   = time.Second
	UpdateInterval = 200 * time.Millisecond
)

// Stats is a point-in-time snapshot of the worker's rolling send
// telemetry, emitted at most once per UpdateInterval.
type Stats struct {
	TotalBytesSent       uint64
	AverageRateBps       float64
	AveragePacketsPerSec float64
}

// udpConn is the narrow socket contract the worker needs.
type udpConn interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
}

// Worker turns ProcessChunk calls from a capture.Source into framed,
// sequenced UDP datagrams. It is not safe for concurrent calls to
// Process; a capture source is expected to deliver chunks serially.
type Worker struct {
	conn       udpConn
	dest       net.Addr
	meta       wire.Meta
	volume     *rolling.Volume
	volumeMu   *sync.Mutex
	stats      chan<- Stats
	bytesTotal uint64
	sequence   uint64
	byteRate   *rolling.Rate
	packetRate *rolling.Rate
	lastUpdate time.Time
	prevSilent bool
	encodeBuf  []byte

	onWarnAlign func(payloadLen, bps int)
}

// NewWorker constructs a Worker. volume and volumeMu let the caller
// share one VolumeMeter-equivalent with a stats-printing goroutine,
// mirroring the Arc<Mutex<VolumeMeter>> shared between the worker and
// the original's main thread.
func NewWorker(conn udpConn, dest net.Addr, meta wire.Meta, volume *rolling.Volume, volumeMu *sync.Mutex, stats chan<- Stats) *Worker {
	now := time.Now()
	return &Worker{
		conn:       conn,
		dest:       dest,
		meta:       meta,
		volume:     volume,
		volumeMu:   volumeMu,
		stats:      stats,
		byteRate:   rolling.NewRate(StatsWindow),
		packetRate: rolling.NewRate(StatsWindow),
		lastUpdate: now,
	}
}

// OnWarnAlign installs a callback invoked (at most once) the first time
// a captured chunk's length isn't a multiple of the sample format's
// byte width. Optional; nil disables the warning entirely.
func (w *Worker) OnWarnAlign(fn func(payloadLen, bps int)) {
	w.onWarnAlign = fn
}

// Process handles one captured chunk: detects silence, collapses
// consecutive silent chunks to an empty payload (the sequence number
// still advances, so the receiver sees no gap and counts no loss), encodes and sends a DataFrame, updates the volume meter and
// rolling rate aggregates, and emits a Stats snapshot at most once per
// UpdateInterval.
func (w *Worker) Process(chunk []byte) error {
	ts := clock.NowMS()

	bps := w.meta.SampleFormat.BytesPerSample()
	aligned := bps <= 1 || len(chunk)%bps == 0
	silent := aligned && isSilentChunk(w.meta.SampleFormat, chunk)

	payload := chunk
	if silent && w.prevSilent {
		payload = nil
	}
	w.prevSilent = silent

	w.encodeBuf = wire.EncodeDataFrame(w.encodeBuf[:0], w.sequence, ts, w.meta, payload)
	_, _ = w.conn.WriteTo(w.encodeBuf, w.dest)

	if !aligned {
		if w.onWarnAlign != nil {
			w.onWarnAlign(len(chunk), bps)
			w.onWarnAlign = nil
		}
	} else if w.volume != nil {
		now := time.Now()
		w.volumeMu.Lock()
		w.volume.AddSamples(now, w.meta.SampleFormat, chunk)
		w.volumeMu.Unlock()
	}

	now := time.Now()
	sent := len(w.encodeBuf)
	w.bytesTotal += uint64(sent)
	w.byteRate.Record(now, uint64(sent))
	w.packetRate.Record(now, 1)

	if now.Sub(w.lastUpdate) >= UpdateInterval {
		if w.stats != nil {
			select {
			case w.stats <- Stats{
				TotalBytesSent:       w.bytesTotal,
				AverageRateBps:       w.byteRate.PerSecond(now),
				AveragePacketsPerSec: w.packetRate.PerSecond(now),
			}:
			default:
			}
		}
		w.lastUpdate = now
	}

	w.sequence++
	return nil
}

func isSilentChunk(format wire.SampleFormat, data []byte) bool {
	switch format {
	case wire.FormatF32:
		if len(data)%4 != 0 {
			return false
		}
		for i := 0; i+4 <= len(data); i += 4 {
			if data[i] != 0 || data[i+1] != 0 || data[i+2] != 0 || data[i+3] != 0 {
				return false
			}
		}
		return true
	case wire.FormatI16, wire.FormatU16:
		if len(data)%2 != 0 {
			return false
		}
		neutral := uint16(0)
		if format == wire.FormatU16 {
			neutral = 0x8000
		}
		for i := 0; i+2 <= len(data); i += 2 {
			v := uint16(data[i]) | uint16(data[i+1])<<8
			if v != neutral {
				return false
			}
		}
		return true
	case wire.FormatU32:
		if len(data)%4 != 0 {
			return false
		}
		for i := 0; i+4 <= len(data); i += 4 {
			v := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
			if v != 0x80000000 {
				return false
			}
		}
		return true
	default:
		return false
	}
}
