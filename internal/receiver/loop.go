package receiver

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sort"
	"time"

	"github.com/mattn/go-isatty"

	"soundsync/internal/config"
	"soundsync/internal/sink"
	"soundsync/internal/wire"
)

// RecvBufferSize is the receive buffer: larger than MaxPayload plus the
// data-frame header, to stay safe against any sender-side chunk larger
// than the usual 1024-byte target.
const RecvBufferSize = 2048

// udpConn is the narrow socket contract the receive loop needs.
type udpConn interface {
	ReadFromUDP(b []byte) (int, *net.UDPAddr, error)
	WriteTo(b []byte, addr net.Addr) (int, error)
	SetReadDeadline(time.Time) error
}

// Loop owns the per-peer demultiplexing table and drives the receive
// socket until it closes or its context is canceled externally by the
// caller closing conn. Each PeerContext owns its own Sink, built by
// sinkFactory; Loop itself never writes to a sink directly.
type Loop struct {
	conn        udpConn
	sinkFactory func() sink.Sink
	log         *slog.Logger
	peers       map[string]*PeerContext
	tty         bool
	cfg         config.Config

	progress     bool
	cursorHidden bool
	blockLines   int
	lastRender   time.Time
}

// New constructs a receive Loop over conn, using sinkFactory to build a
// fresh Sink for each newly observed peer and the built-in default
// tunables.
func New(conn udpConn, sinkFactory func() sink.Sink, log *slog.Logger) *Loop {
	return NewWithConfig(conn, sinkFactory, log, config.Default())
}

// NewWithConfig constructs a receive Loop whose per-peer rolling
// windows, sync-controller gains and idle timeout come from cfg.
// sinkFactory is called once per newly observed peer to build that
// peer's own Sink.
func NewWithConfig(conn udpConn, sinkFactory func() sink.Sink, log *slog.Logger, cfg config.Config) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		conn:        conn,
		sinkFactory: sinkFactory,
		log:         log,
		peers:       make(map[string]*PeerContext),
		tty:         isatty.IsTerminal(os.Stdout.Fd()),
		cfg:         cfg,
	}
}

// Progress toggles the multi-peer terminal status block: when enabled,
// Run redraws every known peer's status line in place using ANSI
// cursor-movement escapes instead of each peer printing its own line
// independently. Has no effect once Run has already rendered a block;
// call it before Run.
func (l *Loop) Progress(enabled bool) {
	l.progress = enabled
}

// Run blocks, processing datagrams until ReadFromUDP returns a
// non-timeout error (typically because conn was closed by the caller).
func (l *Loop) Run() error {
	interval := l.cfg.UpdateInterval
	if interval <= 0 {
		interval = UpdateInterval
	}

	buf := make([]byte, RecvBufferSize)
	// Evict idle peers after every datagram and, when no traffic arrives,
	// on each read timeout (the deadline is the status-line update
	// interval), so a dead sender's aggregates don't linger indefinitely.
	_ = l.conn.SetReadDeadline(time.Now().Add(interval))

	for {
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				l.evictIdle(time.Now())
				_ = l.conn.SetReadDeadline(time.Now().Add(interval))
				continue
			}
			return fmt.Errorf("receiver: read failed: %w", err)
		}
		_ = l.conn.SetReadDeadline(time.Now().Add(interval))

		msg, decodeErr := wire.Decode(buf[:n])
		if decodeErr != nil {
			continue
		}

		switch msg.Kind {
		case wire.MessageSync:
			l.handleSync(addr, msg.Sync)
		case wire.MessageData:
			l.handleData(addr, n, msg.Data)
		}

		now := time.Now()
		l.evictIdle(now)
		l.maybePing(addr, now)
		if l.progress {
			l.maybeRenderBlock(now)
		}
	}
}

func (l *Loop) peerFor(addr *net.UDPAddr, now time.Time) *PeerContext {
	key := addr.String()
	p, ok := l.peers[key]
	if !ok {
		p = NewPeerContextWithConfig(addr, now, l.cfg, l.sinkFactory)
		l.peers[key] = p
	}
	return p
}

func (l *Loop) handleSync(addr *net.UDPAddr, sf wire.SyncFrame) {
	if sf.Kind != wire.SyncPong {
		return // receivers never answer pings; only senders do
	}
	p, ok := l.peers[addr.String()]
	if !ok {
		return // pong from a peer we've never exchanged data with
	}
	p.Sync.OnPong(sf.T0, sf.T1, sf.T2)
}

func (l *Loop) handleData(addr *net.UDPAddr, bytesReceived int, df wire.DataFrame) {
	now := time.Now()
	p := l.peerFor(addr, now)
	p.Sync.RegisterSender(addr)
	p.LastSeen = now

	latencyMS := p.Sync.ComputeLatencyMS(df.Timestamp)
	p.Stats.OnPacket(now, bytesReceived, len(df.Payload), latencyMS)
	if len(df.Payload) > 0 {
		p.Stats.Volume.AddSamples(now, df.Meta.SampleFormat, df.Payload)
	}

	deliver, lost, late := p.Observe(df.Sequence)
	if lost > 0 {
		p.Stats.MarkLost(lost)
	}
	if late {
		p.Stats.MarkOutOfOrder()
	}
	if deliver && len(df.Payload) > 0 {
		if err := p.Sink.Process(df.Meta, df.Payload); err != nil {
			l.log.Warn("sink write failed", "err", err, "peer", addr.String())
		}
	}
}

// maybePing sends this peer's periodic sync ping (rate-limited inside
// syncctl.Controller) and, when progress mode is off, prints this
// peer's own status line independently of any other peer.
func (l *Loop) maybePing(addr *net.UDPAddr, now time.Time) {
	p, ok := l.peers[addr.String()]
	if !ok {
		return
	}
	interval := l.cfg.UpdateInterval
	if interval <= 0 {
		interval = UpdateInterval
	}
	if now.Sub(p.LastUpdate) < interval {
		return
	}
	p.LastUpdate = now
	p.Sync.MaybeSendPing(l.conn)

	if l.progress {
		return
	}
	state := p.Sync.State()
	line := p.Stats.FormatStatusLine(now, p.ExpectedSequence, p.Addr, state.OffsetMS, state.DriftPPM)
	if l.tty {
		fmt.Fprint(os.Stderr, line)
	} else {
		l.log.Info("receive status", "peer", p.Addr.String(), "line", line)
	}
}

// ansiClearLine and friends implement the minimal cursor-control
// subset needed for the multi-peer progress block: clear the current
// line, move the cursor up n lines, and hide/show the cursor.
const (
	ansiClearLine  = "\x1b[2K"
	ansiHideCursor = "\x1b[?25l"
	ansiShowCursor = "\x1b[?25h"
)

func ansiCursorUp(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("\x1b[%dA", n)
}

// maybeRenderBlock redraws every known peer's status line as a single
// in-place block, used when progress mode is on. It throttles itself
// to UpdateInterval regardless of how many peers are sending.
func (l *Loop) maybeRenderBlock(now time.Time) {
	interval := l.cfg.UpdateInterval
	if interval <= 0 {
		interval = UpdateInterval
	}
	if now.Sub(l.lastRender) < interval {
		return
	}
	l.lastRender = now

	if !l.cursorHidden && l.tty {
		fmt.Fprint(os.Stderr, ansiHideCursor)
		l.cursorHidden = true
	}

	keys := make([]string, 0, len(l.peers))
	for k := range l.peers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if l.blockLines > 0 {
		fmt.Fprint(os.Stderr, ansiCursorUp(l.blockLines))
	}
	for _, k := range keys {
		p := l.peers[k]
		state := p.Sync.State()
		line := p.Stats.FormatStatusLine(now, p.ExpectedSequence, p.Addr, state.OffsetMS, state.DriftPPM)
		fmt.Fprintf(os.Stderr, "%s%s\n", ansiClearLine, line)
	}
	l.blockLines = len(keys)
}

func (l *Loop) evictIdle(now time.Time) {
	for key, p := range l.peers {
		if p.Idle(now) {
			if err := p.Sink.Close(); err != nil {
				l.log.Warn("sink teardown failed on eviction", "err", err, "peer", key)
			}
			delete(l.peers, key)
			l.log.Info("evicted idle peer", "peer", key, "since", p.LastSeen.Format(time.RFC3339))
		}
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
