package receiver

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sinkpkg "soundsync/internal/sink"
	"soundsync/internal/wire"
)

type fakeSink struct {
	writes [][]byte
}

func (f *fakeSink) Process(_ wire.Meta, payload []byte) error {
	f.writes = append(f.writes, append([]byte(nil), payload...))
	return nil
}
func (f *fakeSink) Close() error { return nil }

// closeTrackingSink records whether Close was called, for asserting
// eviction tears down a peer's sink.
type closeTrackingSink struct {
	fakeSink
	closed bool
}

func (c *closeTrackingSink) Close() error {
	c.closed = true
	return nil
}

// fakeConn replays a scripted sequence of inbound datagrams, one per
// ReadFromUDP call, then returns io.ErrUnexpectedEOF, a non-timeout
// error that ends Loop.Run.
type fakeConn struct {
	datagrams [][]byte
	from      []*net.UDPAddr
	idx       int
	writes    [][]byte
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func (f *fakeConn) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	if f.idx >= len(f.datagrams) {
		return 0, nil, io.ErrUnexpectedEOF
	}
	n := copy(b, f.datagrams[f.idx])
	addr := f.from[f.idx]
	f.idx++
	return n, addr, nil
}

func (f *fakeConn) WriteTo(b []byte, _ net.Addr) (int, error) {
	f.writes = append(f.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }

func TestRunDeliversInOrderPayloads(t *testing.T) {
	meta := wire.Meta{Channels: 1, SampleRate: 48000, SampleFormat: wire.FormatI16}
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5000}

	var d0, d1 []byte
	d0 = wire.EncodeDataFrame(nil, 0, 1000, meta, []byte{1, 2})
	d1 = wire.EncodeDataFrame(nil, 1, 1010, meta, []byte{3, 4})

	conn := &fakeConn{datagrams: [][]byte{d0, d1}, from: []*net.UDPAddr{addr, addr}}
	fs := &fakeSink{}
	loop := New(conn, func() sinkpkg.Sink { return fs }, nil)

	err := loop.Run()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	require.Len(t, fs.writes, 2)
	assert.Equal(t, []byte{1, 2}, fs.writes[0])
	assert.Equal(t, []byte{3, 4}, fs.writes[1])

	p := loop.peers[addr.String()]
	require.NotNil(t, p)
	assert.Equal(t, uint64(2), p.ExpectedSequence)
	assert.Zero(t, p.Stats.LostPackets)
}

func TestRunCountsLossOnGapButStillDelivers(t *testing.T) {
	meta := wire.Meta{Channels: 1, SampleRate: 48000, SampleFormat: wire.FormatI16}
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5001}

	d0 := wire.EncodeDataFrame(nil, 0, 1000, meta, []byte{1})
	d5 := wire.EncodeDataFrame(nil, 5, 1050, meta, []byte{9})

	conn := &fakeConn{datagrams: [][]byte{d0, d5}, from: []*net.UDPAddr{addr, addr}}
	fs := &fakeSink{}
	loop := New(conn, func() sinkpkg.Sink { return fs }, nil)

	_ = loop.Run()

	require.Len(t, fs.writes, 2)
	p := loop.peers[addr.String()]
	require.NotNil(t, p)
	assert.Equal(t, uint64(4), p.Stats.LostPackets)
	assert.Equal(t, uint64(6), p.ExpectedSequence)
}

func TestRunLateDuplicateNotDeliveredButCounted(t *testing.T) {
	meta := wire.Meta{Channels: 1, SampleRate: 48000, SampleFormat: wire.FormatI16}
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5002}

	d0 := wire.EncodeDataFrame(nil, 0, 1000, meta, []byte{1})
	d1 := wire.EncodeDataFrame(nil, 1, 1010, meta, []byte{2})
	dLate := wire.EncodeDataFrame(nil, 0, 1020, meta, []byte{3})

	conn := &fakeConn{datagrams: [][]byte{d0, d1, dLate}, from: []*net.UDPAddr{addr, addr, addr}}
	fs := &fakeSink{}
	loop := New(conn, func() sinkpkg.Sink { return fs }, nil)

	_ = loop.Run()

	require.Len(t, fs.writes, 2)
	p := loop.peers[addr.String()]
	require.NotNil(t, p)
	assert.Equal(t, uint64(1), p.Stats.OutOfOrderPackets)
}

func TestRunGivesEachPeerItsOwnSink(t *testing.T) {
	meta := wire.Meta{Channels: 1, SampleRate: 48000, SampleFormat: wire.FormatI16}
	addrA := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 6000}
	addrB := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 6001}

	dA := wire.EncodeDataFrame(nil, 0, 1000, meta, []byte{1})
	dB := wire.EncodeDataFrame(nil, 0, 1000, meta, []byte{2})

	conn := &fakeConn{datagrams: [][]byte{dA, dB}, from: []*net.UDPAddr{addrA, addrB}}
	loop := New(conn, func() sinkpkg.Sink { return &fakeSink{} }, nil)

	_ = loop.Run()

	pA := loop.peers[addrA.String()]
	pB := loop.peers[addrB.String()]
	require.NotNil(t, pA)
	require.NotNil(t, pB)
	assert.NotSame(t, pA.Sink, pB.Sink)

	sinkA := pA.Sink.(*fakeSink)
	sinkB := pB.Sink.(*fakeSink)
	assert.Equal(t, [][]byte{{1}}, sinkA.writes)
	assert.Equal(t, [][]byte{{2}}, sinkB.writes)
}

func TestEvictIdleClosesPeerSink(t *testing.T) {
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 6002}
	closing := &closeTrackingSink{}
	conn := &fakeConn{}
	loop := New(conn, func() sinkpkg.Sink { return closing }, nil)

	now := time.Now()
	loop.peers[addr.String()] = NewPeerContextWithConfig(addr, now.Add(-2*IdleTimeout), loop.cfg, loop.sinkFactory)

	loop.evictIdle(now)

	assert.True(t, closing.closed)
	assert.Empty(t, loop.peers)
}
