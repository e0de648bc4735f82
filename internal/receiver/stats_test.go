package receiver

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOnPacketAccumulatesTotals(t *testing.T) {
	s := NewStats()
	now := time.Now()
	s.OnPacket(now, 100, 80, 5.0)
	s.OnPacket(now, 50, 40, 7.0)
	assert.Equal(t, uint64(150), s.TotalBytesReceived)
	assert.Equal(t, uint64(2), s.TotalPacketsReceived)
}

func TestMarkLostAndOutOfOrder(t *testing.T) {
	s := NewStats()
	s.MarkLost(3)
	s.MarkLost(2)
	s.MarkOutOfOrder()
	assert.Equal(t, uint64(5), s.LostPackets)
	assert.Equal(t, uint64(1), s.OutOfOrderPackets)
}

func TestFormatStatusLineIncludesAddrAndCounts(t *testing.T) {
	s := NewStats()
	now := time.Now()
	s.OnPacket(now, 100, 80, 5.0)
	s.MarkLost(1)
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9000}
	line := s.FormatStatusLine(now, 10, addr, 1.5, -2.0)
	assert.True(t, strings.Contains(line, "127.0.0.1:9000"))
	assert.True(t, strings.Contains(line, "Recv: 1"))
	assert.True(t, strings.Contains(line, "Lost: 1"))
}

func TestFormatStatusLineZeroExpectedIsZeroPercentLoss(t *testing.T) {
	s := NewStats()
	addr := &net.UDPAddr{}
	line := s.FormatStatusLine(time.Now(), 0, addr, 0, 0)
	assert.True(t, strings.Contains(line, "(0.00%)"))
}
