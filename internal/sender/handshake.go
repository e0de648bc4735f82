package sender

import (
	"errors"
	"fmt"
	"net"
	"time"

	"soundsync/internal/clock"
	"soundsync/internal/wire"
)

// MaxHandshakeAttempts and HandshakeTimeout bound the ping/pong
// handshake a sender runs before it starts streaming data: roughly ten
// seconds total before giving up.
const (
	MaxHandshakeAttempts = 20
	HandshakeTimeout     = 500 * time.Millisecond
)

// ErrHandshakeFailed is returned when no matching Pong arrived within
// MaxHandshakeAttempts tries.
var ErrHandshakeFailed = errors.New("sender: failed to complete ping/pong handshake with receiver")

// WaitForPongHandshake blocks the sender from sending data until the
// receiver has proven it is alive: it repeatedly pings dest and waits
// up to HandshakeTimeout for a Pong whose echoed t0 matches the ping it
// just sent, discarding anything else (stale pongs from a previous run,
// unrelated sync traffic).
//
// conn's read deadline is mutated for the duration of the call and
// restored to none before returning.
func WaitForPongHandshake(conn *net.UDPConn, dest *net.UDPAddr) error {
	defer conn.SetReadDeadline(time.Time{})

	buf := make([]byte, 128)
	for attempt := 1; attempt <= MaxHandshakeAttempts; attempt++ {
		now := clock.NowMS()
		ping := wire.EncodePing(nil, now)
		_, _ = conn.WriteToUDP(ping, dest)

		if err := conn.SetReadDeadline(time.Now().Add(HandshakeTimeout)); err != nil {
			return fmt.Errorf("sender: set handshake read deadline: %w", err)
		}

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return fmt.Errorf("sender: handshake recv failed: %w", err)
		}

		msg, err := wire.Decode(buf[:n])
		if err != nil || msg.Kind != wire.MessageSync || msg.Sync.Kind != wire.SyncPong {
			continue
		}
		if msg.Sync.T0 == now {
			return nil
		}
	}
	return ErrHandshakeFailed
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
