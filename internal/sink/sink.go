// Package sink implements the receiver's playback output: either a raw
// PCM stream written to stdout, or an external child process (e.g. a
// "pw-cat"-style PipeWire player) fed over its own stdin, respawned
// whenever the stream format changes or a write fails.
package sink

import "soundsync/internal/wire"

// Sink is the playback contract the receive loop writes decoded
// payloads through.
type Sink interface {
	// Process writes one payload for the given stream metadata, spawning
	// or respawning any backing process as needed.
	Process(meta wire.Meta, payload []byte) error
	// Close tears down any backing process or file handle.
	Close() error
}
