// Package rolling implements time-windowed aggregates used for sender
// and receiver telemetry: a rate counter, a mean, and an RMS volume
// meter. Each keeps a FIFO history of timestamped entries and evicts
// anything older than its window on every mutation or read.
package rolling

import (
	"time"

	"github.com/gammazero/deque"
)

// Rate records timestamped counts and reports their sum or average
// per-second rate over a sliding window.
type Rate struct {
	window  time.Duration
	history deque.Deque[rateEntry]
	sum     uint64
}

type rateEntry struct {
	at    time.Time
	count uint64
}

// NewRate constructs a Rate over the given window.
func NewRate(window time.Duration) *Rate {
	return &Rate{window: window}
}

// Record adds count at time now.
func (r *Rate) Record(now time.Time, count uint64) {
	r.history.PushBack(rateEntry{at: now, count: count})
	r.sum += count
	r.prune(now)
}

// Total returns the sum of counts currently inside the window.
func (r *Rate) Total(now time.Time) uint64 {
	r.prune(now)
	return r.sum
}

// PerSecond returns the average rate (sum / window seconds).
func (r *Rate) PerSecond(now time.Time) float64 {
	r.prune(now)
	if r.window <= 0 {
		return 0
	}
	return float64(r.sum) / r.window.Seconds()
}

func (r *Rate) prune(now time.Time) {
	for r.history.Len() > 0 {
		entry := r.history.Front()
		if now.Sub(entry.at) <= r.window {
			break
		}
		if r.sum < entry.count {
			r.sum = 0
		} else {
			r.sum -= entry.count
		}
		r.history.PopFront()
	}
}
