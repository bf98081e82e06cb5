//go:build !windows

package lockfile

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isProcessRunning sends signal 0 to pid.
func isProcessRunning(pid int) (bool, string) {
	if pid <= 0 {
		return false, "invalid PID"
	}
	err := unix.Kill(pid, 0)
	switch {
	case err == nil:
		return true, ""
	case errors.Is(err, unix.EPERM):
		// Exists, owned by someone else.
		return true, ""
	default:
		return false, "process is not running"
	}
}
