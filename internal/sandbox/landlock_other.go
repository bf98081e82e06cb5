//go:build !linux

package sandbox

// LandlockSupported reports whether this build can confine commands.
func LandlockSupported() bool {
	return false
}

// RestrictAndExec is unavailable outside Linux.
func RestrictAndExec(req LandlockExecRequest) error {
	return ErrLandlockUnsupported
}
