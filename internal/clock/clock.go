// Package clock provides the single wall-clock reading used across the
// wire protocol: milliseconds since the Unix epoch, as an unsigned
// 64-bit wire timestamp.
package clock

import "time"

// NowMS returns the current time as milliseconds since the Unix epoch.
func NowMS() uint64 {
	return uint64(time.Now().UnixMilli())
}
