package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysProvidedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soundsync.yaml")
	contents := "timesync:\n  ping_interval: 2s\n  alpha: 0.5\nstats:\n  window: 30s\npeer:\n  idle_timeout: 5m\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.PingInterval)
	assert.Equal(t, 0.5, cfg.Alpha)
	assert.Equal(t, defaultBeta, cfg.Beta)
	assert.Equal(t, 30*time.Second, cfg.StatsWindow)
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout)
}

func TestLoadInvalidDurationErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stats:\n  window: not-a-duration\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
