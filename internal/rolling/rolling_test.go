package rolling

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"soundsync/internal/wire"
)

func TestRatePerSecondOverFullWindow(t *testing.T) {
	base := time.Now()
	r := NewRate(10 * time.Second)
	for i := 0; i < 10; i++ {
		r.Record(base.Add(time.Duration(i)*time.Second), 1)
	}
	now := base.Add(10 * time.Second)
	assert.InDelta(t, 1.0, r.PerSecond(now), 1e-9)
}

func TestRatePruningReturnsToZero(t *testing.T) {
	base := time.Now()
	r := NewRate(5 * time.Second)
	r.Record(base, 10)
	now := base.Add(6 * time.Second)
	assert.Equal(t, uint64(0), r.Total(now))
	assert.Equal(t, 0.0, r.PerSecond(now))
}

func TestRateByteRateExample(t *testing.T) {
	base := time.Now()
	r := NewRate(10 * time.Second)
	for i := 0; i < 10; i++ {
		r.Record(base.Add(time.Duration(i)*time.Second), 100)
	}
	now := base.Add(10 * time.Second)
	assert.InDelta(t, 100.0, r.PerSecond(now), 1e-9)
}

func TestMeanOverTenValues(t *testing.T) {
	base := time.Now()
	m := NewMean(10 * time.Second)
	for i, v := 0, 10.0; i < 10; i, v = i+1, v+1 {
		m.Record(base.Add(time.Duration(i)*time.Second), v)
	}
	now := base.Add(9 * time.Second)
	assert.InDelta(t, 14.5, m.Average(now), 1e-9)
}

func TestMeanEmptyIsZero(t *testing.T) {
	m := NewMean(time.Second)
	assert.Equal(t, 0.0, m.Average(time.Now()))
}

func TestVolumeSilenceIsMinusOneTwenty(t *testing.T) {
	v := NewVolume(time.Second)
	assert.Equal(t, -120.0, v.DBFS(time.Now()))
}

func TestVolumeF32FullScale(t *testing.T) {
	v := NewVolume(time.Second)
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(1.0))
	now := time.Now()
	v.AddSamples(now, wire.FormatF32, buf)
	assert.InDelta(t, 1.0, v.RMS(now), 1e-6)
	assert.InDelta(t, 0.0, v.DBFS(now), 1e-6)
}

func TestVolumeU16Neutral(t *testing.T) {
	v := NewVolume(time.Second)
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, 0x8000)
	now := time.Now()
	v.AddSamples(now, wire.FormatU16, buf)
	assert.InDelta(t, 0.0, v.RMS(now), 1e-9)
}

func TestVolumePruning(t *testing.T) {
	v := NewVolume(500 * time.Millisecond)
	base := time.Now()
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, 32767)
	v.AddSamples(base, wire.FormatI16, buf)
	later := base.Add(time.Second)
	assert.Equal(t, 0.0, v.RMS(later))
}
