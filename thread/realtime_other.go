//go:build !linux

package thread

// raiseRealtimePriority is a no-op on platforms without a priority knob
// wired up here.
func raiseRealtimePriority() error {
	return nil
}
