package thread

import (
	"time"

	"golang.org/x/sys/unix"
)

// runLoop is the worker goroutine's body: the single-threaded scheduler
// (§4.6, "the heart of the audio thread"). It never blocks anywhere except
// inside ppoll.
func (t *Thread) runLoop() {
	for {
		out := t.devices.list(Output)
		in := t.devices.list(Input)

		if err := t.devIO.Run(out, in, t.remix); err != nil && t.logger != nil {
			t.logger.Printf("audiothread: dev_io_run: %v", err)
		}
		t.eventLog.Record(EvIODevCallback, "", t.now())

		// Refresh each output dev-stream's cached playback-frames count
		// from its shared-memory region now that dev_io_run has serviced
		// it this iteration; computeNextWake's fetchable() check below
		// reads this cache rather than re-querying shared memory per wake
		// calculation (§4.4 last paragraph, §3 "playback-frames count").
		for _, od := range out {
			for _, ds := range od.streams.items {
				ds.playbackFrames = ds.stream.SharedMemFrames()
			}
		}

		wakeAt, timeout, hasTimeout := t.computeNextWake(out, in)
		t.buildPollSet()

		if hasPendingWriteStream(out) {
			// "write-streams wait" (§6): the worker is about to sleep with
			// at least one output (write) stream still holding the wake
			// time back.
			t.eventLog.Record(EvWriteStreamsWait, "", t.now())
		}

		t.eventLog.Record(EvThreadSleep, "", t.now())
		t.lastWakeAt = t.now()
		n, err := t.ppoll(t.pollfds, timeout, hasTimeout)
		now := t.now()
		t.eventLog.Record(EvThreadWake, "", now)

		if hasTimeout && now.After(wakeAt) {
			if overshoot := now.Sub(wakeAt); overshoot > t.longestWake {
				t.longestWake = overshoot
			}
		}

		if err != nil {
			if t.logger != nil {
				t.logger.Printf("audiothread: ppoll: %v", err)
			}
			continue
		}

		if hasTimeout && timeout == 0 {
			t.zeroTimeoutStreak++
		} else {
			t.zeroTimeoutStreak = 0
		}
		if t.zeroTimeoutStreak >= zeroTimeoutBusyloopThreshold {
			if t.monitor != nil {
				t.monitor.Busyloop()
			}
			t.zeroTimeoutStreak = 0
		}

		if n <= 0 {
			continue
		}

		if isReady(t.pollfds, 0) {
			env, err := readMessage(t.toThreadR)
			if err != nil {
				if t.logger != nil {
					t.logger.Printf("audiothread: read command: %v", err)
				}
			} else {
				t.dispatch(env.cmd)
				if env.cmd == cmdStop {
					return
				}
			}
		}

		t.dispatchCallbacks()
	}
}

// computeNextWake implements §4.6 step 2: a 20-second ceiling, folded down
// by every output device/stream and the input aggregator, with a zero
// contributor count meaning "block indefinitely" rather than falling back
// to the ceiling.
func (t *Thread) computeNextWake(out, in []*OpenDevice) (wakeAt time.Time, timeout time.Duration, hasTimeout bool) {
	now := t.now()
	minTS := now.Add(wakeCeiling)
	contributors := 0

	for _, od := range out {
		for _, ds := range od.streams.items {
			if !ds.fetchable() {
				continue
			}
			contributors++
			if ds.NextCallbackTime().Before(minTS) {
				minTS = ds.NextCallbackTime()
			}
		}
		if od.dev.ShouldWake() {
			contributors++
			if wt := od.dev.WakeTime(); wt.Before(minTS) {
				minTS = wt
			}
		}
	}

	if newMin, contributed := t.devIO.NextInputWake(in, minTS); contributed {
		contributors++
		minTS = newMin
	}

	if contributors == 0 {
		return time.Time{}, 0, false
	}

	remaining := minTS.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return minTS, remaining, true
}

// hasPendingWriteStream reports whether any output device still has a
// fetchable dev-stream, i.e. whether the worker is about to sleep with at
// least one write (output) stream's deadline still live (§4.4, §6 "write-
// streams wait").
func hasPendingWriteStream(out []*OpenDevice) bool {
	for _, od := range out {
		for _, ds := range od.streams.items {
			if ds.fetchable() {
				return true
			}
		}
	}
	return false
}

// buildPollSet rebuilds t.pollfds from scratch every iteration: the
// command pipe at index 0 always, then enabled callback-registry fds, then
// every distinct stream wake fd across both direction lists (§4.6 step 3,
// §3 "pollfd array that grows on demand"). Waking on a stream's fd is
// sufficient; dev_io_run services it on the next iteration, so no callback
// is invoked for these.
func (t *Thread) buildPollSet() {
	for {
		t.pollfds = t.pollfds[:0]
		ok := t.appendPollfd(int(t.toThreadR.Fd()), unix.POLLIN)

		if ok {
			for _, e := range t.callbacks.entries {
				if !e.enabled {
					continue
				}
				events := int16(unix.POLLIN)
				if e.dir == CallbackWrite {
					events = unix.POLLOUT
				}
				if !t.appendPollfd(e.fd, events) {
					ok = false
					break
				}
			}
		}

		if ok {
			seen := make(map[int]bool)
		direction:
			for _, dir := range [2]Direction{Output, Input} {
				for _, od := range t.devices.list(dir) {
					for _, ds := range od.streams.items {
						fd := ds.stream.WakeFD()
						if fd < 0 || seen[fd] {
							continue
						}
						seen[fd] = true
						if !t.appendPollfd(fd, unix.POLLIN) {
							ok = false
							break direction
						}
					}
				}
			}
		}

		if ok {
			return
		}

		newCap := cap(t.pollfds) * 2
		if newCap == 0 {
			newCap = initialPollCapacity
		}
		t.pollfds = make([]unix.PollFd, 0, newCap)
	}
}

func (t *Thread) appendPollfd(fd int, events int16) bool {
	if len(t.pollfds) == cap(t.pollfds) {
		return false
	}
	t.pollfds = append(t.pollfds, unix.PollFd{Fd: int32(fd), Events: events})
	return true
}

func isReady(fds []unix.PollFd, idx int) bool {
	if idx >= len(fds) {
		return false
	}
	return fds[idx].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0
}

// dispatchCallbacks invokes every ready, enabled callback-registry entry
// (§4.5). Matched by fd rather than position, since an overflow-triggered
// rebuild can change pollfd ordering between iterations.
func (t *Thread) dispatchCallbacks() {
	for _, e := range t.callbacks.entries {
		if !e.enabled {
			continue
		}
		for _, pf := range t.pollfds {
			if int(pf.Fd) != e.fd {
				continue
			}
			want := int16(unix.POLLIN)
			if e.dir == CallbackWrite {
				want = unix.POLLOUT
			}
			if pf.Revents&want != 0 {
				e.fn(e.fd, e.data)
			}
			break
		}
	}
}
