//go:build !linux

package thread

import (
	"time"

	"golang.org/x/sys/unix"
)

// ppoll falls back to plain poll(2) on non-Linux unix targets. The signal
// mask argument ppoll offers over poll has no user here (the package
// installs no signal handlers), so the degraded syscall is behaviorally
// equivalent for this use.
func (t *Thread) ppoll(fds []unix.PollFd, timeout time.Duration, hasTimeout bool) (int, error) {
	ms := -1
	if hasTimeout {
		ms = int(timeout.Milliseconds())
	}
	n, err := unix.Poll(fds, ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}
