package wire

import (
	"encoding/binary"
)

// dataMagic is the fixed first byte of every data frame.
const dataMagic = 0x53 // 'S'

// dataVersion must be bumped on any change to the header layout below;
// a receiver on an older version rejects the frame outright rather than
// misinterpreting it.
const dataVersion = 2

// dataHeaderLen is the fixed header size in bytes, per §4.A of the wire
// layout: magic, version, length, channels, rate code, format code,
// reserved, sequence, timestamp.
const dataHeaderLen = 1 + 1 + 2 + 1 + 1 + 1 + 1 + 8 + 8 // 24

// MaxPayload is the largest payload a data frame can carry; the length
// field is a 16-bit unsigned count.
const MaxPayload = 1<<16 - 1

// DataFrame is a single sequenced, timestamped audio datagram.
type DataFrame struct {
	Sequence  uint64
	Timestamp uint64 // milliseconds since the Unix epoch
	Meta      Meta
	Payload   []byte // borrowed from the decode buffer when decoded
}

// DataFrameError enumerates the ways a data frame can fail to decode.
type DataFrameError string

func (e DataFrameError) Error() string { return string(e) }

const (
	ErrDataTooShort       DataFrameError = "data frame: too short"
	ErrDataBadMagic       DataFrameError = "data frame: bad magic"
	ErrDataBadVersion     DataFrameError = "data frame: unsupported version"
	ErrDataLengthMismatch DataFrameError = "data frame: declared length exceeds buffer"
)

// EncodeDataFrame appends the wire encoding of a data frame to dst and
// returns the extended slice. Payload is clamped to MaxPayload bytes.
func EncodeDataFrame(dst []byte, seq uint64, ts uint64, meta Meta, payload []byte) []byte {
	if len(payload) > MaxPayload {
		payload = payload[:MaxPayload]
	}

	var hdr [dataHeaderLen]byte
	hdr[0] = dataMagic
	hdr[1] = dataVersion
	binary.BigEndian.PutUint16(hdr[2:4], uint16(len(payload)))
	hdr[4] = meta.Channels
	hdr[5] = sampleRateToCode(meta.SampleRate)
	hdr[6] = byte(encodeSampleFormat(meta.SampleFormat))
	hdr[7] = 0 // reserved
	binary.BigEndian.PutUint64(hdr[8:16], seq)
	binary.BigEndian.PutUint64(hdr[16:24], ts)

	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)
	return dst
}

func encodeSampleFormat(f SampleFormat) SampleFormat {
	switch f {
	case FormatF32, FormatI16, FormatU16, FormatU32:
		return f
	default:
		return FormatUnknown
	}
}

// DecodeDataFrame parses a data frame. The returned Payload aliases buf;
// callers that retain it past the lifetime of the receive buffer must
// copy it first.
func DecodeDataFrame(buf []byte) (DataFrame, error) {
	if len(buf) < dataHeaderLen {
		return DataFrame{}, ErrDataTooShort
	}
	if buf[0] != dataMagic {
		return DataFrame{}, ErrDataBadMagic
	}
	if buf[1] != dataVersion {
		return DataFrame{}, ErrDataBadVersion
	}

	payloadLen := int(binary.BigEndian.Uint16(buf[2:4]))
	if len(buf) < dataHeaderLen+payloadLen {
		return DataFrame{}, ErrDataLengthMismatch
	}

	meta := Meta{
		Channels:     buf[4],
		SampleRate:   codeToSampleRate(buf[5]),
		SampleFormat: decodeSampleFormat(buf[6]),
	}
	seq := binary.BigEndian.Uint64(buf[8:16])
	ts := binary.BigEndian.Uint64(buf[16:24])
	payload := buf[dataHeaderLen : dataHeaderLen+payloadLen]

	return DataFrame{
		Sequence:  seq,
		Timestamp: ts,
		Meta:      meta,
		Payload:   payload,
	}, nil
}

func decodeSampleFormat(code byte) SampleFormat {
	switch code {
	case 1:
		return FormatF32
	case 2:
		return FormatI16
	case 3:
		return FormatU16
	case 4:
		return FormatU32
	default:
		return FormatUnknown
	}
}
