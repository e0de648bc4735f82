package syncctl

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent [][]byte
	to   []net.Addr
}

func (f *fakeSender) WriteTo(b []byte, addr net.Addr) (int, error) {
	f.sent = append(f.sent, append([]byte(nil), b...))
	f.to = append(f.to, addr)
	return len(b), nil
}

func TestMaybeSendPingNoopWithoutPeer(t *testing.T) {
	c := New(time.Second)
	f := &fakeSender{}
	c.MaybeSendPing(f)
	assert.Empty(t, f.sent)
}

func TestMaybeSendPingOncePerInterval(t *testing.T) {
	c := New(time.Hour)
	f := &fakeSender{}
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9000}
	c.RegisterSender(addr)

	c.MaybeSendPing(f)
	require.Len(t, f.sent, 1)
	assert.Equal(t, addr, f.to[0])

	// Interval is an hour, so a second immediate call should not fire.
	c.MaybeSendPing(f)
	assert.Len(t, f.sent, 1)
}

func TestComputeLatencyMSSaturatesAtZero(t *testing.T) {
	c := New(time.Second)
	// No pong ever received; offset is zero, so latency for a
	// send timestamp far in the future must clamp to zero rather than
	// go negative.
	latency := c.ComputeLatencyMS(^uint64(0) / 2)
	assert.GreaterOrEqual(t, latency, 0.0)
}

func TestOnPongFeedsEstimator(t *testing.T) {
	c := New(time.Second)
	c.OnPong(1000, 1010, 1010)
	// OnPong samples t3 from the wall clock, so the resulting offset
	// depends on the current time; assert only that feeding a pong leaves
	// the estimate finite.
	st := c.State()
	assert.False(t, isNaN(st.OffsetMS))
}

func isNaN(f float64) bool { return f != f }
