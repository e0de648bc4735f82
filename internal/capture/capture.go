// Package capture defines the uniform contract the send pipeline uses
// to pull PCM chunks from a local source, plus three implementations:
// a raw byte stream over stdin, the OS default input device, and OS
// loopback capture of the default render device.
package capture

import "soundsync/internal/wire"

// MaxPayload bounds every chunk handed to ProcessChunk: 1024 bytes,
// i.e. every 2.67ms at 48kHz stereo f32. Implementations that split
// driver-delivered buffers must cut along frame-stride boundaries no
// larger than this.
const MaxPayload = 1024

// ProcessChunk is handed a chunk's raw bytes; returning an error aborts
// the capture. Implementations must assume it runs on a single thread
// at a time, but must not assume any particular thread.
type ProcessChunk func(chunk []byte) error

// Options carries the caller-supplied overrides for the stdin source;
// other sources reject a non-zero Options as invalid.
type Options struct {
	Channels   uint8 // 0 means "unset"
	SampleRate int   // 0 means "unset"
	Format     wire.SampleFormat
}

// Source is the uniform capture contract described in the package doc.
type Source interface {
	// ValidateOptions rejects options the source cannot honor, e.g. a
	// device source given --channels/--rate/--format.
	ValidateOptions(opts Options) error
	// PrepareMeta resolves the final Meta for the stream, consulting
	// the device or opts as appropriate.
	PrepareMeta(opts Options) (wire.Meta, error)
	// Start begins delivering chunks to process. It returns once
	// capture has started (the delivery itself typically continues on
	// a background thread); a non-nil error means capture never began.
	Start(meta wire.Meta, process ProcessChunk) error
}

// unsupportedOptionsError is what ValidateOptions returns when a
// non-stdin source is given --channels/--rate/--format.
type unsupportedOptionsError struct{}

func (unsupportedOptionsError) Error() string {
	return "--channels/--rate/--format are only valid with --input stdin"
}

// ErrOptionsNotSupported is the sentinel returned for the above.
var ErrOptionsNotSupported error = unsupportedOptionsError{}

func optionsRequested(opts Options) bool {
	return opts.Channels != 0 || opts.SampleRate != 0 || opts.Format != wire.FormatUnknown
}
