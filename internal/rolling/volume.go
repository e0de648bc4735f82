package rolling

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/gammazero/deque"

	"soundsync/internal/wire"
)

// Volume accumulates sum-of-squares of normalized PCM samples over a
// sliding window and reports RMS amplitude and a dBFS reading.
type Volume struct {
	window  time.Duration
	history deque.Deque[volumeEntry]
	sumSq   float64
	count   int
}

type volumeEntry struct {
	at    time.Time
	sumSq float64
	n     int
}

// NewVolume constructs a Volume meter over the given window.
func NewVolume(window time.Duration) *Volume {
	return &Volume{window: window}
}

// AddSamples normalizes raw PCM bytes in the given format to [-1, 1] and
// folds their sum of squares into the window. Trailing bytes that do
// not form a whole sample are ignored.
func (v *Volume) AddSamples(now time.Time, format wire.SampleFormat, data []byte) {
	var sumSq float64
	var n int

	switch format {
	case wire.FormatF32:
		n = len(data) / 4
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint32(data[i*4:])
			x := float64(math.Float32frombits(bits))
			sumSq += x * x
		}
	case wire.FormatI16:
		n = len(data) / 2
		const norm = 32768.0
		for i := 0; i < n; i++ {
			s := int16(binary.LittleEndian.Uint16(data[i*2:]))
			x := float64(s) / norm
			sumSq += x * x
		}
	case wire.FormatU16:
		n = len(data) / 2
		const center, norm = 32768.0, 32768.0
		for i := 0; i < n; i++ {
			s := binary.LittleEndian.Uint16(data[i*2:])
			x := (float64(s) - center) / norm
			sumSq += x * x
		}
	case wire.FormatU32:
		n = len(data) / 4
		const center, norm = 2147483648.0, 2147483648.0
		for i := 0; i < n; i++ {
			s := binary.LittleEndian.Uint32(data[i*4:])
			x := (float64(s) - center) / norm
			sumSq += x * x
		}
	default:
		return
	}

	v.push(now, sumSq, n)
}

func (v *Volume) push(now time.Time, sumSq float64, n int) {
	v.history.PushBack(volumeEntry{at: now, sumSq: sumSq, n: n})
	v.sumSq += sumSq
	v.count += n
	v.prune(now)
}

func (v *Volume) prune(now time.Time) {
	for v.history.Len() > 0 {
		entry := v.history.Front()
		if now.Sub(entry.at) <= v.window {
			break
		}
		v.sumSq -= entry.sumSq
		v.count -= entry.n
		v.history.PopFront()
	}
}

// RMS returns the root-mean-square amplitude over the window, or 0 if
// the window holds no samples.
func (v *Volume) RMS(now time.Time) float64 {
	v.prune(now)
	if v.count == 0 {
		return 0
	}
	return math.Sqrt(v.sumSq / float64(v.count))
}

// DBFS returns 20*log10(rms), or -120 when the RMS is zero (silence).
func (v *Volume) DBFS(now time.Time) float64 {
	rms := v.RMS(now)
	if rms <= 0 {
		return -120
	}
	return 20 * math.Log10(rms)
}
