//go:build !windows

package capture

import (
	"fmt"
	"log/slog"

	"soundsync/internal/wire"
)

// Loopback is unavailable outside Windows: there is no portable WASAPI
// equivalent, and the original project restricted this source to
// target_os = "windows" for the same reason.
type Loopback struct{}

func NewLoopback(*slog.Logger) *Loopback { return &Loopback{} }

var errLoopbackUnsupported = fmt.Errorf("loopback capture is only supported on Windows")

func (l *Loopback) ValidateOptions(Options) error { return errLoopbackUnsupported }

func (l *Loopback) PrepareMeta(Options) (wire.Meta, error) {
	return wire.Meta{}, errLoopbackUnsupported
}

func (l *Loopback) Start(wire.Meta, ProcessChunk) error {
	return errLoopbackUnsupported
}
