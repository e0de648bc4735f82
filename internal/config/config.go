// Package config loads the optional YAML tunables file shared by both
// binaries: everything that has a sensible default and only occasionally
// needs overriding (sync estimator gains, timers, idle eviction), as
// opposed to the per-invocation flags (destination address, input
// source) that belong on the command line.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPingInterval   = time.Second
	defaultUpdateInterval = 200 * time.Millisecond
	defaultStatsWindow    = 10 * time.Second
	defaultVolumeWindow   = time.Second
	defaultIdleTimeout    = 60 * time.Second
	defaultAlpha          = 0.2
	defaultBeta           = 0.2
)

// Config collects every tunable either binary may load from a YAML
// file; CLI flags take precedence over whatever is set here, and this
// struct's zero value is never used directly (Load always fills in
// the defaults above first).
type Config struct {
	PingInterval   time.Duration
	UpdateInterval time.Duration
	StatsWindow    time.Duration
	VolumeWindow   time.Duration
	IdleTimeout    time.Duration
	Alpha          float64
	Beta           float64
}

// Default returns a Config with every field at its built-in default.
func Default() Config {
	return Config{
		PingInterval:   defaultPingInterval,
		UpdateInterval: defaultUpdateInterval,
		StatsWindow:    defaultStatsWindow,
		VolumeWindow:   defaultVolumeWindow,
		IdleTimeout:    defaultIdleTimeout,
		Alpha:          defaultAlpha,
		Beta:           defaultBeta,
	}
}

type yamlConfig struct {
	Timesync struct {
		PingInterval string  `yaml:"ping_interval"`
		Alpha        float64 `yaml:"alpha"`
		Beta         float64 `yaml:"beta"`
	} `yaml:"timesync"`
	Stats struct {
		UpdateInterval string `yaml:"update_interval"`
		Window         string `yaml:"window"`
		VolumeWindow   string `yaml:"volume_window"`
	} `yaml:"stats"`
	Peer struct {
		IdleTimeout string `yaml:"idle_timeout"`
	} `yaml:"peer"`
}

// Load reads path and overlays it onto Default(). A missing file is
// not an error: both binaries are expected to run with no config file
// at all, relying entirely on defaults and flags.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if yc.Timesync.PingInterval != "" {
		d, err := time.ParseDuration(yc.Timesync.PingInterval)
		if err != nil {
			return Config{}, fmt.Errorf("config: timesync.ping_interval: %w", err)
		}
		cfg.PingInterval = d
	}
	if yc.Timesync.Alpha > 0 {
		cfg.Alpha = yc.Timesync.Alpha
	}
	if yc.Timesync.Beta > 0 {
		cfg.Beta = yc.Timesync.Beta
	}

	if yc.Stats.UpdateInterval != "" {
		d, err := time.ParseDuration(yc.Stats.UpdateInterval)
		if err != nil {
			return Config{}, fmt.Errorf("config: stats.update_interval: %w", err)
		}
		cfg.UpdateInterval = d
	}
	if yc.Stats.Window != "" {
		d, err := time.ParseDuration(yc.Stats.Window)
		if err != nil {
			return Config{}, fmt.Errorf("config: stats.window: %w", err)
		}
		cfg.StatsWindow = d
	}
	if yc.Stats.VolumeWindow != "" {
		d, err := time.ParseDuration(yc.Stats.VolumeWindow)
		if err != nil {
			return Config{}, fmt.Errorf("config: stats.volume_window: %w", err)
		}
		cfg.VolumeWindow = d
	}

	if yc.Peer.IdleTimeout != "" {
		d, err := time.ParseDuration(yc.Peer.IdleTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("config: peer.idle_timeout: %w", err)
		}
		cfg.IdleTimeout = d
	}

	return cfg, nil
}
