// Command soundsync-sender captures local audio and streams it as
// sequenced UDP data frames to a receiver, performing a ping/pong
// handshake before the first frame and answering the receiver's
// ongoing time-sync pings for the rest of the run.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/spf13/pflag"

	"soundsync/internal/capture"
	"soundsync/internal/config"
	"soundsync/internal/rolling"
	"soundsync/internal/sender"
	"soundsync/internal/wire"
)

func main() {
	if err := run(); err != nil {
		slog.Error("soundsync-sender failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		inputFlag    = pflag.StringP("input", "i", "default-capture", "input source: stdin|loopback|default-capture")
		channelsFlag = pflag.Uint8P("channels", "c", 0, "channels for stdin input (1..255)")
		rateFlag     = pflag.IntP("rate", "r", 0, "sample rate in Hz for stdin input")
		formatFlag   = pflag.StringP("format", "f", "", "sample format for stdin input: f32|i16|u16|u32")
		statusIcon   = pflag.BoolP("status-icon", "s", false, "show a platform tray icon instead of printing stats")
		configPath   = pflag.String("config", "", "optional YAML tunables file")
	)
	pflag.Parse()

	if *statusIcon {
		return fmt.Errorf("--status-icon requires a platform tray integration not built into this binary")
	}

	args := pflag.Args()
	if len(args) != 1 {
		pflag.Usage()
		return fmt.Errorf("usage: soundsync-sender <addr:port> [options]")
	}
	destAddr, err := net.ResolveUDPAddr("udp", args[0])
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	opts := capture.Options{Channels: *channelsFlag, SampleRate: *rateFlag}
	if *formatFlag != "" {
		format, err := parseSampleFormat(*formatFlag)
		if err != nil {
			return err
		}
		opts.Format = format
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	source, err := buildInputSource(*inputFlag, log)
	if err != nil {
		return err
	}
	if err := source.ValidateOptions(opts); err != nil {
		return fmt.Errorf("invalid options for --input %s: %w", *inputFlag, err)
	}
	meta, err := source.PrepareMeta(opts)
	if err != nil {
		return fmt.Errorf("prepare capture metadata: %w", err)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return fmt.Errorf("bind UDP socket: %w", err)
	}
	defer conn.Close()
	fmt.Printf("Destination: %s\n", destAddr)

	volume := rolling.NewVolume(cfg.VolumeWindow)
	var volumeMu sync.Mutex
	stats := make(chan sender.Stats, 4)

	worker := sender.NewWorker(conn, destAddr, meta, volume, &volumeMu, stats)
	worker.OnWarnAlign(func(payloadLen, bps int) {
		log.Warn("payload length is not a multiple of one sample", "payload_len", payloadLen, "bytes_per_sample", bps)
	})

	if err := sender.WaitForPongHandshake(conn, destAddr); err != nil {
		return err
	}
	fmt.Println("Handshake complete.")

	sender.SpawnTimesyncResponder(conn, log)

	if err := source.Start(meta, worker.Process); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	fmt.Println("Sending started. Press Ctrl+C to stop.")
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-stats:
			if !ok {
				return nil
			}
			volumeMu.Lock()
			db := volume.DBFS(time.Now())
			volumeMu.Unlock()
			fmt.Printf("\rTotal: %7.2f MB | Last 10s avg: %7.2f KB/s | Pkts/s: %6.1f | Vol1s: %6.1f dBFS   ",
				float64(s.TotalBytesSent)/(1024*1024), s.AverageRateBps/1024, s.AveragePacketsPerSec, db)
		}
	}
}

func buildInputSource(mode string, log *slog.Logger) (capture.Source, error) {
	switch strings.ToLower(mode) {
	case "stdin":
		return capture.NewStdin(log), nil
	case "loopback", "wasapi":
		return capture.NewLoopback(log), nil
	case "default-capture", "device", "cpal":
		if err := portaudio.Initialize(); err != nil {
			return nil, fmt.Errorf("initialize audio backend: %w", err)
		}
		return capture.NewDevice(log), nil
	default:
		return nil, fmt.Errorf("invalid input mode: %s (expected stdin|loopback|default-capture)", mode)
	}
}

func parseSampleFormat(s string) (wire.SampleFormat, error) {
	switch strings.ToLower(s) {
	case "f32":
		return wire.FormatF32, nil
	case "i16":
		return wire.FormatI16, nil
	case "u16":
		return wire.FormatU16, nil
	case "u32":
		return wire.FormatU32, nil
	default:
		return wire.FormatUnknown, fmt.Errorf("invalid sample format: %s (expected f32|i16|u16|u32)", s)
	}
}
