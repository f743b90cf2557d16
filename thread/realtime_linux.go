//go:build linux

package thread

import "golang.org/x/sys/unix"

// raiseRealtimePriority is a best-effort niceness bump for the worker
// goroutine's OS thread (§4.8 "start"). True SCHED_FIFO requires
// CAP_SYS_NICE and pins the goroutine to its OS thread in ways this
// package does not otherwise need; a maximal niceness bump is the
// approximation available without either.
func raiseRealtimePriority() error {
	return unix.Setpriority(unix.PRIO_PROCESS, 0, -20)
}
