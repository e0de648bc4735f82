package capture

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"runtime"

	"soundsync/internal/wire"
)

// Stdin reads a raw PCM byte stream from os.Stdin, with no framing of
// its own: whatever bytes the OS hands back on a given read become one
// chunk. It is the only source that honors Options overrides, since
// there is no device or driver to ask.
type Stdin struct {
	log *slog.Logger
}

// NewStdin constructs a Stdin source.
func NewStdin(log *slog.Logger) *Stdin {
	if log == nil {
		log = slog.Default()
	}
	return &Stdin{log: log}
}

func (s *Stdin) ValidateOptions(Options) error {
	return nil
}

func (s *Stdin) PrepareMeta(opts Options) (wire.Meta, error) {
	meta := wire.Meta{
		Channels:     opts.Channels,
		SampleRate:   opts.SampleRate,
		SampleFormat: opts.Format,
	}
	if meta.Channels == 0 {
		meta.Channels = 2
	}
	if meta.SampleRate == 0 {
		meta.SampleRate = 48000
	}
	if meta.SampleFormat == wire.FormatUnknown {
		meta.SampleFormat = wire.FormatU32
	}
	return meta, nil
}

// Start spawns a single reader goroutine that feeds process with
// whatever stdin hands back, up to MaxPayload bytes per read. It
// returns immediately; the goroutine runs until EOF, a read error, or
// process returns an error.
func (s *Stdin) Start(_ wire.Meta, process ProcessChunk) error {
	s.log.Info("capture source selected", "source", "stdin")
	go func() {
		boostCurrentThreadPriority(s.log)
		r := bufio.NewReaderSize(os.Stdin, MaxPayload)
		buf := make([]byte, MaxPayload)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				if processErr := process(buf[:n]); processErr != nil {
					s.log.Debug("stdin capture stopped by consumer", "err", processErr)
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					s.log.Warn("stdin capture read failed", "err", err)
				}
				return
			}
		}
	}()
	return nil
}

// boostCurrentThreadPriority raises the scheduling priority of the
// calling goroutine's underlying OS thread, after locking the goroutine
// to it: SetThreadPriority on Windows, a lower nice value via
// setpriority elsewhere. It is best-effort: failures are logged, not
// fatal.
func boostCurrentThreadPriority(log *slog.Logger) {
	runtime.LockOSThread()
	if err := setHighThreadPriority(); err != nil {
		log.Debug("could not raise capture thread priority", "err", err)
	}
}
