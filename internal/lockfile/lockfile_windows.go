//go:build windows

package lockfile

import (
	"golang.org/x/sys/windows"
)

// isProcessRunning checks whether a process with pid can be opened.
func isProcessRunning(pid int) (bool, string) {
	if pid <= 0 {
		return false, "invalid PID"
	}
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false, "process is not running"
	}
	windows.CloseHandle(handle)
	return true, ""
}
