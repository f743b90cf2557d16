//go:build linux

package thread

import (
	"time"

	"golang.org/x/sys/unix"
)

// ppoll waits for a pollfd to become ready or the timeout to elapse,
// exactly as described in §4.6 step 4: "the only suspension point". A
// signal interruption is swallowed and reported as zero-ready rather than
// an error, matching readFull's EINTR handling elsewhere in the package.
func (t *Thread) ppoll(fds []unix.PollFd, timeout time.Duration, hasTimeout bool) (int, error) {
	var ts *unix.Timespec
	if hasTimeout {
		spec := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &spec
	}
	n, err := unix.Ppoll(fds, ts, nil)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}
