package sink

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"

	"soundsync/internal/wire"
)

// ProcessSink pipes decoded payloads into the stdin of an external
// player process, spawned on demand and respawned whenever the stream
// format changes or a write to it fails. It mirrors the BinarySink
// "pw-cat" backend: the command line is built fresh from each stream's
// Meta, so a mid-stream format change (a source that reopens its
// device at a different rate) gets a freshly configured child rather
// than bytes misinterpreted by a stale one.
type ProcessSink struct {
	log     *slog.Logger
	argv    func(meta wire.Meta) (name string, args []string)
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	lastMet wire.Meta
	haveMet bool
}

// NewPwCatSink builds a ProcessSink that drives "pw-cat --playback",
// PipeWire's command-line player, the original project's external
// sink.
func NewPwCatSink(log *slog.Logger) *ProcessSink {
	return NewProcessSink(log, pwCatArgv)
}

// NewProcessSink builds a ProcessSink around an arbitrary command line,
// computed fresh from each stream's Meta by argv.
func NewProcessSink(log *slog.Logger, argv func(meta wire.Meta) (string, []string)) *ProcessSink {
	if log == nil {
		log = slog.Default()
	}
	return &ProcessSink{log: log, argv: argv}
}

func pwCatArgv(meta wire.Meta) (string, []string) {
	format := "f32"
	switch meta.SampleFormat {
	case wire.FormatF32:
		format = "f32"
	case wire.FormatI16:
		format = "s16"
	case wire.FormatU16:
		format = "u16"
	}
	return "pw-cat", []string{
		"--playback",
		"--rate", strconv.Itoa(meta.SampleRate),
		"--channels", strconv.Itoa(int(meta.Channels)),
		"--format", format,
		"-",
	}
}

func (s *ProcessSink) metaChanged(meta wire.Meta) bool {
	return !s.haveMet || s.lastMet != meta
}

func (s *ProcessSink) spawn(meta wire.Meta) error {
	name, args := s.argv(meta)
	cmd := exec.Command(name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("sink: open stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("sink: start %s: %w", name, err)
	}
	s.cmd = cmd
	s.stdin = stdin
	s.lastMet = meta
	s.haveMet = true
	s.log.Info("playback sink spawned", "command", name, "rate", meta.SampleRate, "channels", meta.Channels)
	return nil
}

func (s *ProcessSink) teardown() {
	if s.cmd == nil {
		return
	}
	if s.stdin != nil {
		_ = s.stdin.Close()
		s.stdin = nil
	}
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	s.cmd = nil
}

// Process writes payload to the child's stdin, (re)spawning it first
// if there is none yet or the format changed, and retrying once with a
// fresh child if the write fails.
func (s *ProcessSink) Process(meta wire.Meta, payload []byte) error {
	if s.stdin == nil || s.metaChanged(meta) {
		s.teardown()
		if err := s.spawn(meta); err != nil {
			return err
		}
	}

	if _, err := s.stdin.Write(payload); err != nil {
		s.log.Warn("playback sink write failed, restarting", "err", err)
		s.teardown()
		if spawnErr := s.spawn(meta); spawnErr != nil {
			return spawnErr
		}
		if _, err2 := s.stdin.Write(payload); err2 != nil {
			return fmt.Errorf("sink: write failed after restart (original error: %v): %w", err, err2)
		}
	}
	return nil
}

func (s *ProcessSink) Close() error {
	s.teardown()
	return nil
}
