// Package wire implements the on-the-wire framing for soundsync: data
// frames carrying sequenced PCM payloads and sync frames carrying the
// ping/pong handshake used for liveness and clock offset estimation.
//
// Both frame families share a single UDP port, multiplexed by the first
// byte (the magic). See Decode.
package wire

// SampleFormat identifies the PCM sample encoding carried in a DataFrame
// payload.
type SampleFormat uint8

const (
	FormatUnknown SampleFormat = 0
	FormatF32     SampleFormat = 1
	FormatI16     SampleFormat = 2
	FormatU16     SampleFormat = 3
	FormatU32     SampleFormat = 4
)

func (f SampleFormat) String() string {
	switch f {
	case FormatF32:
		return "f32"
	case FormatI16:
		return "i16"
	case FormatU16:
		return "u16"
	case FormatU32:
		return "u32"
	default:
		return "unknown"
	}
}

// BytesPerSample returns the width of a single sample in this format.
// Unknown formats are treated as 1-byte wide so alignment checks never
// divide by zero.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatF32, FormatU32:
		return 4
	case FormatI16, FormatU16:
		return 2
	default:
		return 1
	}
}

// sampleRateCodes enumerates the wire-legal sample rates, indexed by
// their 1-byte code. Index 0 is reserved for "unknown".
var sampleRateCodes = [...]int{
	0, 8000, 16000, 22050, 24000, 32000, 44100, 48000, 88200, 96000, 176400, 192000,
}

// sampleRateToCode encodes a sample rate in hertz to its wire code,
// falling back to 0 (unknown) for anything not in the enumerated set.
func sampleRateToCode(hz int) byte {
	for code, rate := range sampleRateCodes {
		if rate == hz && code != 0 {
			return byte(code)
		}
	}
	return 0
}

// codeToSampleRate decodes a wire sample-rate code back to hertz. Codes
// outside the enumerated range decode to 0 (unknown), matching the
// unknown rate itself.
func codeToSampleRate(code byte) int {
	if int(code) < len(sampleRateCodes) {
		return sampleRateCodes[code]
	}
	return 0
}

// Meta describes the immutable audio format carried alongside a stream.
// A receiver restarts its sink whenever any field changes.
type Meta struct {
	Channels     uint8
	SampleRate   int
	SampleFormat SampleFormat
}
