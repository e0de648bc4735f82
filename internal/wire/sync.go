package wire

import "encoding/binary"

// syncMagic is the fixed first byte of every sync (ping/pong) frame.
const syncMagic = 0x54 // 'T'

const syncVersion = 1

const (
	syncTypePing = 1
	syncTypePong = 2
)

// SyncKind distinguishes a Ping from a Pong within SyncFrame.
type SyncKind uint8

const (
	SyncPing SyncKind = iota
	SyncPong
)

// SyncFrame is either a Ping{T0} or a Pong{T0,T1,T2}; all timestamps are
// milliseconds since the Unix epoch. Only the fields relevant to Kind
// are meaningful.
type SyncFrame struct {
	Kind SyncKind
	T0   uint64
	T1   uint64
	T2   uint64
}

// SyncFrameError enumerates the ways a sync frame can fail to decode.
type SyncFrameError string

func (e SyncFrameError) Error() string { return string(e) }

const (
	ErrSyncTooShort    SyncFrameError = "sync frame: too short"
	ErrSyncBadMagic    SyncFrameError = "sync frame: bad magic"
	ErrSyncBadVersion  SyncFrameError = "sync frame: unsupported version"
	ErrSyncUnknownType SyncFrameError = "sync frame: unknown type"
)

// EncodePing appends a Ping{t0} frame to dst.
func EncodePing(dst []byte, t0 uint64) []byte {
	dst = append(dst, syncMagic, syncVersion, syncTypePing)
	return binary.BigEndian.AppendUint64(dst, t0)
}

// EncodePong appends a Pong{t0,t1,t2} frame to dst.
func EncodePong(dst []byte, t0, t1, t2 uint64) []byte {
	dst = append(dst, syncMagic, syncVersion, syncTypePong)
	dst = binary.BigEndian.AppendUint64(dst, t0)
	dst = binary.BigEndian.AppendUint64(dst, t1)
	dst = binary.BigEndian.AppendUint64(dst, t2)
	return dst
}

// DecodeSyncFrame parses a ping or pong frame.
func DecodeSyncFrame(buf []byte) (SyncFrame, error) {
	if len(buf) < 1 {
		return SyncFrame{}, ErrSyncTooShort
	}
	if buf[0] != syncMagic {
		return SyncFrame{}, ErrSyncBadMagic
	}
	if len(buf) < 2 {
		return SyncFrame{}, ErrSyncTooShort
	}
	if buf[1] != syncVersion {
		return SyncFrame{}, ErrSyncBadVersion
	}
	if len(buf) < 3 {
		return SyncFrame{}, ErrSyncTooShort
	}

	switch buf[2] {
	case syncTypePing:
		if len(buf) < 3+8 {
			return SyncFrame{}, ErrSyncTooShort
		}
		return SyncFrame{Kind: SyncPing, T0: binary.BigEndian.Uint64(buf[3:11])}, nil
	case syncTypePong:
		if len(buf) < 3+24 {
			return SyncFrame{}, ErrSyncTooShort
		}
		return SyncFrame{
			Kind: SyncPong,
			T0:   binary.BigEndian.Uint64(buf[3:11]),
			T1:   binary.BigEndian.Uint64(buf[11:19]),
			T2:   binary.BigEndian.Uint64(buf[19:27]),
		}, nil
	default:
		return SyncFrame{}, ErrSyncUnknownType
	}
}
