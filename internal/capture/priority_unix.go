//go:build !windows

package capture

import "golang.org/x/sys/unix"

// setHighThreadPriority lowers the nice value of the calling thread's
// process-group-visible niceness. Go threads don't expose a per-thread
// nice value separate from the process on Linux in a portable way
// without cgo, so this nudges the whole process; harmless for a CLI
// whose only job is capturing and sending audio.
func setHighThreadPriority() error {
	return unix.Setpriority(unix.PRIO_PROCESS, 0, -10)
}
