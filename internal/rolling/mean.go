package rolling

import (
	"time"

	"github.com/gammazero/deque"
)

// Mean records timestamped values and reports their arithmetic mean
// across the sliding window, or zero when the window is empty.
type Mean struct {
	window  time.Duration
	history deque.Deque[meanEntry]
	sum     float64
}

type meanEntry struct {
	at    time.Time
	value float64
}

// NewMean constructs a Mean over the given window.
func NewMean(window time.Duration) *Mean {
	return &Mean{window: window}
}

// Record adds value at time now.
func (m *Mean) Record(now time.Time, value float64) {
	m.history.PushBack(meanEntry{at: now, value: value})
	m.sum += value
	m.prune(now)
}

// Average returns the arithmetic mean of values currently in the window.
func (m *Mean) Average(now time.Time) float64 {
	m.prune(now)
	if m.history.Len() == 0 {
		return 0
	}
	return m.sum / float64(m.history.Len())
}

func (m *Mean) prune(now time.Time) {
	for m.history.Len() > 0 {
		entry := m.history.Front()
		if now.Sub(entry.at) <= m.window {
			break
		}
		m.sum -= entry.value
		m.history.PopFront()
	}
}
