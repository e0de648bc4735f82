//go:build windows

package capture

import "golang.org/x/sys/windows"

// Thread priority constants from the Windows SDK (processthreadsapi.h).
const (
	threadPriorityHighest = 2
)

// setHighThreadPriority raises the current thread's scheduling priority
// using the real Win32 thread API.
func setHighThreadPriority() error {
	h := windows.CurrentThread()
	return windows.SetThreadPriority(h, threadPriorityHighest)
}
