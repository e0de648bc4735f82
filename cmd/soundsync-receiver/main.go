// Command soundsync-receiver listens for UDP data and sync frames from
// one or more senders, demultiplexing by source address, tracking
// per-peer ordering/loss/latency/volume statistics, and writing decoded
// payloads to a playback sink (stdout raw PCM by default, or an
// external player process with --pipewire-like-sink).
package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/spf13/pflag"

	"soundsync/internal/config"
	"soundsync/internal/receiver"
	"soundsync/internal/sink"
)

func main() {
	if err := run(); err != nil {
		slog.Error("soundsync-receiver failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		pipewireLike = pflag.Bool("pipewire-like-sink", false, "write to an external player process instead of stdout")
		progress     = pflag.Bool("progress", false, "render a multi-peer terminal status block")
		configPath   = pflag.String("config", "", "optional YAML tunables file")
	)
	pflag.Parse()

	args := pflag.Args()
	if len(args) != 1 {
		pflag.Usage()
		return fmt.Errorf("usage: soundsync-receiver <listen:port> [--pipewire-like-sink] [--progress]")
	}
	listenAddr, err := net.ResolveUDPAddr("udp", args[0])
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	conn, err := net.ListenUDP("udp", listenAddr)
	if err != nil {
		return fmt.Errorf("bind UDP socket: %w", err)
	}
	defer conn.Close()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	log.Info("listening", "addr", conn.LocalAddr().String())

	// Each peer gets its own Sink instance: with --pipewire-like-sink,
	// concurrent senders each get their own child player process instead
	// of interleaving into one playback stream.
	sinkFactory := func() sink.Sink {
		if *pipewireLike {
			return sink.NewPwCatSink(log)
		}
		return sink.NewStdout(os.Stdout)
	}

	loop := receiver.NewWithConfig(conn, sinkFactory, log, cfg)
	loop.Progress(*progress)
	return loop.Run()
}
