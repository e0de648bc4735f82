package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soundsync/internal/wire"
)

func TestStdinPrepareMetaDefaults(t *testing.T) {
	s := NewStdin(nil)
	meta, err := s.PrepareMeta(Options{})
	require.NoError(t, err)
	assert.Equal(t, uint8(2), meta.Channels)
	assert.Equal(t, 48000, meta.SampleRate)
	assert.Equal(t, wire.FormatU32, meta.SampleFormat)
}

func TestStdinPrepareMetaHonorsOverrides(t *testing.T) {
	s := NewStdin(nil)
	meta, err := s.PrepareMeta(Options{Channels: 1, SampleRate: 16000, Format: wire.FormatI16})
	require.NoError(t, err)
	assert.Equal(t, uint8(1), meta.Channels)
	assert.Equal(t, 16000, meta.SampleRate)
	assert.Equal(t, wire.FormatI16, meta.SampleFormat)
}

func TestStdinValidateOptionsAlwaysOK(t *testing.T) {
	s := NewStdin(nil)
	assert.NoError(t, s.ValidateOptions(Options{Channels: 9, SampleRate: 1, Format: wire.FormatF32}))
}

func TestDeviceRejectsOptions(t *testing.T) {
	d := NewDevice(nil)
	err := d.ValidateOptions(Options{Channels: 2})
	assert.ErrorIs(t, err, ErrOptionsNotSupported)
}

func TestDeviceAcceptsZeroOptions(t *testing.T) {
	d := NewDevice(nil)
	assert.NoError(t, d.ValidateOptions(Options{}))
}

func TestFloat32SliceToBytesLength(t *testing.T) {
	buf := []float32{1, 2, 3}
	b := float32SliceToBytes(buf)
	assert.Len(t, b, 12)
}

func TestFloat32SliceToBytesEmpty(t *testing.T) {
	assert.Nil(t, float32SliceToBytes(nil))
}
