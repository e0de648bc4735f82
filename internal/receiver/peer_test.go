package receiver

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"soundsync/internal/sink"
)

func newTestPeer(addr net.Addr, now time.Time) *PeerContext {
	return NewPeerContext(addr, now, func() sink.Sink { return &fakeSink{} })
}

func TestObserveFirstPacketAlwaysDelivered(t *testing.T) {
	p := newTestPeer(&net.UDPAddr{}, time.Now())
	deliver, lost, late := p.Observe(57)
	assert.True(t, deliver)
	assert.Zero(t, lost)
	assert.False(t, late)
	assert.Equal(t, uint64(58), p.ExpectedSequence)
}

func TestObserveInOrder(t *testing.T) {
	p := newTestPeer(&net.UDPAddr{}, time.Now())
	p.Observe(0)
	deliver, lost, late := p.Observe(1)
	assert.True(t, deliver)
	assert.Zero(t, lost)
	assert.False(t, late)
}

func TestObserveGapCountsLossButStillDelivers(t *testing.T) {
	p := newTestPeer(&net.UDPAddr{}, time.Now())
	p.Observe(0)
	deliver, lost, late := p.Observe(5)
	assert.True(t, deliver)
	assert.Equal(t, uint64(4), lost)
	assert.False(t, late)
	assert.Equal(t, uint64(6), p.ExpectedSequence)
}

func TestObserveLateIsNotDelivered(t *testing.T) {
	p := newTestPeer(&net.UDPAddr{}, time.Now())
	p.Observe(0)
	p.Observe(1)
	deliver, lost, late := p.Observe(0)
	assert.False(t, deliver)
	assert.Zero(t, lost)
	assert.True(t, late)
}

func TestIdleAfterTimeout(t *testing.T) {
	now := time.Now()
	p := newTestPeer(&net.UDPAddr{}, now)
	assert.False(t, p.Idle(now))
	assert.True(t, p.Idle(now.Add(IdleTimeout+time.Second)))
}
