package sink

import (
	"io"

	"soundsync/internal/wire"
)

// Stdout writes every payload straight to an io.Writer (normally
// os.Stdout) with no framing of its own: the consumer downstream is
// expected to already know the format out of band.
type Stdout struct {
	w io.Writer
}

// NewStdout constructs a Stdout sink writing to w.
func NewStdout(w io.Writer) *Stdout {
	return &Stdout{w: w}
}

func (s *Stdout) Process(_ wire.Meta, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := s.w.Write(payload)
	return err
}

func (s *Stdout) Close() error { return nil }
