package receiver

import (
	"net"
	"time"

	"soundsync/internal/config"
	"soundsync/internal/sink"
	"soundsync/internal/syncctl"
)

// IdleTimeout is the built-in default, used whenever a caller constructs
// a PeerContext without going through a loaded config.Config.
const IdleTimeout = 60 * time.Second

// PeerContext is everything the receive loop tracks per source address:
// its own playback sink, its ordered-emit cursor, its rolling stats, its
// own time-sync controller (each peer has an independent clock
// relationship with us), and the wall-clock moment it was last heard
// from. The sink is owned by the PeerContext, not shared across peers:
// two senders streaming concurrently each get their own player process
// (or writer) rather than one playback stream interleaving both.
type PeerContext struct {
	Addr             net.Addr
	ExpectedSequence uint64
	HaveSeenPacket   bool
	Stats            *Stats
	Sync             *syncctl.Controller
	Sink             sink.Sink
	LastSeen         time.Time
	LastUpdate       time.Time
	idleTimeout      time.Duration
}

// NewPeerContext constructs a PeerContext for a newly observed source
// address using the built-in default tunables and sinkFactory to build
// its own playback sink.
func NewPeerContext(addr net.Addr, now time.Time, sinkFactory func() sink.Sink) *PeerContext {
	return NewPeerContextWithConfig(addr, now, config.Default(), sinkFactory)
}

// NewPeerContextWithConfig constructs a PeerContext whose rolling
// windows, sync-controller gains and idle timeout come from cfg,
// letting a loaded config.Config actually govern per-peer behavior
// instead of every peer silently falling back to package defaults.
// sinkFactory is called once to build this peer's own Sink.
func NewPeerContextWithConfig(addr net.Addr, now time.Time, cfg config.Config, sinkFactory func() sink.Sink) *PeerContext {
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = IdleTimeout
	}
	return &PeerContext{
		Addr:        addr,
		Stats:       NewStatsWithWindows(cfg.StatsWindow, cfg.VolumeWindow),
		Sync:        syncctl.NewWithGains(cfg.PingInterval, cfg.Alpha, cfg.Beta),
		Sink:        sinkFactory(),
		LastSeen:    now,
		LastUpdate:  now,
		idleTimeout: idle,
	}
}

// Idle reports whether the peer hasn't been heard from in its configured
// idle timeout.
func (p *PeerContext) Idle(now time.Time) bool {
	timeout := p.idleTimeout
	if timeout <= 0 {
		timeout = IdleTimeout
	}
	return now.Sub(p.LastSeen) >= timeout
}

// Observe records a data-frame arrival with the given sequence number,
// applying the ordered-emit decision from §8: equal to expected is
// in-order, greater means a gap (the packet is still delivered, loss is
// counted for the skipped range), less is late/duplicate (counted, not
// delivered). The initial packet from a peer is always in-order
// regardless of its sequence number: HaveSeenPacket tracks that
// separately from ExpectedSequence so a stream that doesn't start at
// sequence zero isn't misclassified as having lost its opening run.
func (p *PeerContext) Observe(seq uint64) (deliver bool, lost uint64, lateOrOutOfOrder bool) {
	if !p.HaveSeenPacket {
		p.HaveSeenPacket = true
		p.ExpectedSequence = seq + 1
		return true, 0, false
	}
	switch {
	case seq == p.ExpectedSequence:
		p.ExpectedSequence++
		return true, 0, false
	case seq > p.ExpectedSequence:
		lost = seq - p.ExpectedSequence
		p.ExpectedSequence = seq + 1
		return true, lost, false
	default:
		return false, 0, true
	}
}
