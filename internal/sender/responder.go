package sender

import (
	"errors"
	"log/slog"
	"net"
	"time"

	"soundsync/internal/clock"
	"soundsync/internal/wire"
)

// SpawnTimesyncResponder starts a goroutine that runs for the lifetime of
// conn, replying to any Ping it receives with a Pong stamped t1 = t2 =
// the moment the ping was observed (the sender side never distinguishes
// "received" from "about to reply" the way a buffering receiver might).
// It returns immediately; the goroutine stops once conn is closed or a
// non-timeout read error occurs.
func SpawnTimesyncResponder(conn *net.UDPConn, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	go func() {
		buf := make([]byte, 64)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					time.Sleep(2 * time.Millisecond)
					continue
				}
				log.Debug("timesync responder stopped", "err", err)
				return
			}

			msg, err := wire.Decode(buf[:n])
			if err != nil || msg.Kind != wire.MessageSync || msg.Sync.Kind != wire.SyncPing {
				continue
			}
			now := clock.NowMS()
			pong := wire.EncodePong(nil, msg.Sync.T0, now, now)
			_, _ = conn.WriteToUDP(pong, addr)
		}
	}()
}
