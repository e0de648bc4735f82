// Package syncctl tracks the most recent peer address and drives the
// periodic ping/pong exchange that feeds a timesync.Estimator, exposing
// the estimated offset for latency adjustment.
package syncctl

import (
	"net"
	"time"

	"soundsync/internal/clock"
	"soundsync/internal/timesync"
	"soundsync/internal/wire"
)

// DefaultPingInterval is how often MaybeSendPing will fire once a peer
// is registered, unless a Controller is given another interval.
const DefaultPingInterval = time.Second

// Controller owns one timesync.Estimator and the address of the most
// recently observed data source ("last peer"). It is not safe for
// concurrent use; callers that share a Controller across goroutines
// must serialize access themselves.
type Controller struct {
	estimator    *timesync.Estimator
	lastPeer     net.Addr
	havePeer     bool
	lastPingMS   uint64
	pingInterval time.Duration
}

// New constructs a Controller with the default EWMA estimator and the
// given ping interval (DefaultPingInterval when pingInterval <= 0).
func New(pingInterval time.Duration) *Controller {
	return NewWithGains(pingInterval, timesync.DefaultAlpha, timesync.DefaultBeta)
}

// NewWithGains constructs a Controller with explicit EWMA gains, letting
// callers thread config.Config.Alpha/Beta through instead of always
// falling back to the package defaults.
func NewWithGains(pingInterval time.Duration, alpha, beta float64) *Controller {
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	if alpha <= 0 {
		alpha = timesync.DefaultAlpha
	}
	if beta <= 0 {
		beta = timesync.DefaultBeta
	}
	return &Controller{
		estimator:    timesync.New(alpha, beta),
		pingInterval: pingInterval,
	}
}

// RegisterSender records addr as the last peer, the destination for the
// next outgoing ping.
func (c *Controller) RegisterSender(addr net.Addr) {
	c.lastPeer = addr
	c.havePeer = true
}

// OnPong samples t3 = now and feeds the estimator with the full
// four-timestamp exchange.
func (c *Controller) OnPong(t0, t1, t2 uint64) {
	c.estimator.Update(t0, t1, t2, clock.NowMS())
}

// State returns the current offset/delay/drift estimate.
func (c *Controller) State() timesync.State {
	return c.estimator.State()
}

// ComputeLatencyMS returns the estimated one-way latency of a frame
// sent at sentTS, adjusting "now" by the estimated clock offset and
// saturating at zero rather than going negative.
func (c *Controller) ComputeLatencyMS(sentTS uint64) float64 {
	nowMS := float64(clock.NowMS())
	// OffsetMS is positive when the peer's clock is ahead of ours
	// (peer = local + offset); sentTS is in the peer's clock domain, so
	// "now" must be shifted into that same domain by adding the offset,
	// not subtracting it.
	adjNow := nowMS + c.estimator.State().OffsetMS
	if adjNow < 0 {
		adjNow = 0
	}
	latency := adjNow - float64(sentTS)
	if latency < 0 {
		return 0
	}
	return latency
}

// udpSender is the narrow slice of net.UDPConn that MaybeSendPing needs,
// kept as an interface so tests can substitute a fake.
type udpSender interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
}

// MaybeSendPing sends a ping to the last peer if one is registered and
// at least pingInterval has elapsed since the previous ping.
func (c *Controller) MaybeSendPing(sock udpSender) {
	if !c.havePeer {
		return
	}
	now := clock.NowMS()
	if now-c.lastPingMS < uint64(c.pingInterval.Milliseconds()) {
		return
	}
	buf := wire.EncodePing(nil, now)
	_, _ = sock.WriteTo(buf, c.lastPeer)
	c.lastPingMS = now
}
