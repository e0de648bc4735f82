package capture

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/gordonklaus/portaudio"

	"soundsync/internal/wire"
)

// Device captures from the host's default input device via PortAudio,
// the portable counterpart to the original project's cpal backend. It
// always reports float32 samples: PortAudio normalizes every backend
// to whatever Go type the caller asks for, and float32 keeps the wire
// format's volume metering simple.
type Device struct {
	log    *slog.Logger
	stream *portaudio.Stream
}

// NewDevice constructs a Device source. portaudio.Initialize must have
// already been called by the caller (typically once at process start)
// and portaudio.Terminate deferred at shutdown.
func NewDevice(log *slog.Logger) *Device {
	if log == nil {
		log = slog.Default()
	}
	return &Device{log: log}
}

func (d *Device) ValidateOptions(opts Options) error {
	if optionsRequested(opts) {
		return ErrOptionsNotSupported
	}
	return nil
}

func (d *Device) PrepareMeta(Options) (wire.Meta, error) {
	hostIn, err := portaudio.DefaultInputDevice()
	if err != nil {
		return wire.Meta{}, fmt.Errorf("no default input device: %w", err)
	}
	channels := hostIn.MaxInputChannels
	if channels <= 0 {
		channels = 2
	}
	if channels > 255 {
		channels = 255
	}
	rate := hostIn.DefaultSampleRate
	if rate <= 0 {
		rate = 48000
	}
	d.log.Info("capture source selected", "source", "device", "device", hostIn.Name,
		"channels", channels, "sample_rate", rate)
	return wire.Meta{
		Channels:     uint8(channels),
		SampleRate:   int(math.Round(rate)),
		SampleFormat: wire.FormatF32,
	}, nil
}

// Start opens and starts a blocking PortAudio input stream and a reader
// goroutine that forwards each buffer it reads, cast to bytes, straight
// to process.
// PortAudio frees us from the cpal-style per-sample-type stream
// builder: we always ask for float32 and let the driver convert.
func (d *Device) Start(meta wire.Meta, process ProcessChunk) error {
	framesPerBuffer := MaxPayload / (int(meta.Channels) * 4)
	if framesPerBuffer < 1 {
		framesPerBuffer = 1
	}
	buf := make([]float32, framesPerBuffer*int(meta.Channels))
	stream, err := portaudio.OpenDefaultStream(
		int(meta.Channels), 0, float64(meta.SampleRate), len(buf)/int(meta.Channels), buf,
	)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		return fmt.Errorf("start input stream: %w", err)
	}
	d.stream = stream

	go func() {
		for {
			if err := stream.Read(); err != nil {
				d.log.Warn("device capture read failed", "err", err)
				return
			}
			if err := process(float32SliceToBytes(buf)); err != nil {
				d.log.Debug("device capture stopped by consumer", "err", err)
				return
			}
		}
	}()
	return nil
}

// Close stops and closes the underlying stream, if one was opened.
func (d *Device) Close() error {
	if d.stream == nil {
		return nil
	}
	_ = d.stream.Stop()
	return d.stream.Close()
}
