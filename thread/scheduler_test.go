package thread

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestComputeNextWakeZeroContributorsBlocksIndefinitely(t *testing.T) {
	th := newTestThread()
	th.devIO = &fakeDevIO{}

	_, timeout, hasTimeout := th.computeNextWake(nil, nil)
	if hasTimeout {
		t.Fatalf("expected no timeout with zero contributors, got %v", timeout)
	}
}

func TestComputeNextWakeUsesCeilingWhenNothingSooner(t *testing.T) {
	th := newTestThread()
	th.devIO = &fakeDevIO{}
	dev := newFakeDevice(1, Output)
	dev.wake = true
	dev.wakeAt = th.now().Add(30 * time.Second) // beyond the 20s ceiling
	th.devices.add(dev)

	_, timeout, hasTimeout := th.computeNextWake(th.devices.list(Output), nil)
	if !hasTimeout {
		t.Fatalf("expected a timeout")
	}
	if timeout != wakeCeiling {
		t.Fatalf("expected ceiling %v to win, got %v", wakeCeiling, timeout)
	}
}

func TestComputeNextWakeMinOfStreamAndDevice(t *testing.T) {
	th := newTestThread()
	th.devIO = &fakeDevIO{}
	dev := newFakeDevice(1, Output)
	dev.wake = true
	dev.wakeAt = th.now().Add(10 * time.Second)
	th.devices.add(dev)

	s := newFakeStream(1, Output)
	th.attachStream(s, []int{1})
	od, _ := th.devices.find(Output, 1)
	od.streams.items[0].SetNextCallbackTime(th.now().Add(2 * time.Second))

	_, timeout, hasTimeout := th.computeNextWake(th.devices.list(Output), nil)
	if !hasTimeout {
		t.Fatalf("expected a timeout")
	}
	if timeout != 2*time.Second {
		t.Fatalf("expected the sooner stream deadline (2s) to win, got %v", timeout)
	}
}

func TestComputeNextWakeSkipsDrainedEmptyStream(t *testing.T) {
	th := newTestThread()
	th.devIO = &fakeDevIO{}
	dev := newFakeDevice(1, Output)
	th.devices.add(dev)

	s := newFakeStream(1, Output)
	s.draining = true
	s.shmFrames = 0
	th.attachStream(s, []int{1})
	od, _ := th.devices.find(Output, 1)
	od.streams.items[0].SetNextCallbackTime(th.now().Add(time.Millisecond))
	od.streams.items[0].playbackFrames = 0

	_, _, hasTimeout := th.computeNextWake(th.devices.list(Output), nil)
	if hasTimeout {
		t.Fatalf("a draining, empty stream must not hold the device back")
	}
}

func TestComputeNextWakeInputAggregatorContributes(t *testing.T) {
	th := newTestThread()
	want := th.now().Add(3 * time.Second)
	th.devIO = &fakeDevIO{
		nextWake: func(in []*OpenDevice, currentMin time.Time) (time.Time, bool) {
			return want, true
		},
	}

	_, timeout, hasTimeout := th.computeNextWake(nil, nil)
	if !hasTimeout {
		t.Fatalf("expected a timeout from the input aggregator")
	}
	if timeout != 3*time.Second {
		t.Fatalf("expected 3s, got %v", timeout)
	}
}

func TestBuildPollSetAlwaysHasCommandPipeAtIndexZero(t *testing.T) {
	r, w := devNullPair()
	defer r.Close()
	defer w.Close()

	th := newTestThread()
	th.toThreadR = r
	th.callbacks = newCallbackRegistry()
	th.pollfds = make([]unix.PollFd, 0, initialPollCapacity)

	th.buildPollSet()
	if len(th.pollfds) != 1 {
		t.Fatalf("expected exactly the command pipe fd, got %d entries", len(th.pollfds))
	}
	if th.pollfds[0].Fd != int32(r.Fd()) {
		t.Fatalf("expected command pipe fd at index 0")
	}
}

func TestBuildPollSetGrowsOnOverflow(t *testing.T) {
	r, w := devNullPair()
	defer r.Close()
	defer w.Close()

	th := newTestThread()
	th.toThreadR = r
	th.callbacks = newCallbackRegistry()
	th.pollfds = make([]unix.PollFd, 0, 1) // force an overflow with a single callback fd

	cr, cw := devNullPair()
	defer cr.Close()
	defer cw.Close()
	th.callbacks.Add(int(cr.Fd()), CallbackRead, func(int, any) {}, nil)

	th.buildPollSet()
	if len(th.pollfds) != 2 {
		t.Fatalf("expected command pipe + 1 callback fd after growth, got %d", len(th.pollfds))
	}
	if cap(th.pollfds) < 2 {
		t.Fatalf("expected pollfds capacity to have grown, got cap %d", cap(th.pollfds))
	}
}

func TestBuildPollSetDedupsSharedStreamWakeFD(t *testing.T) {
	r, w := devNullPair()
	defer r.Close()
	defer w.Close()

	th := newTestThread()
	th.toThreadR = r
	th.callbacks = newCallbackRegistry()
	th.pollfds = make([]unix.PollFd, 0, initialPollCapacity)

	wfdR, wfdW := devNullPair()
	defer wfdR.Close()
	defer wfdW.Close()

	d1 := newFakeDevice(1, Output)
	d2 := newFakeDevice(2, Output)
	th.devices.add(d1)
	th.devices.add(d2)
	s := newFakeStream(1, Output)
	s.wakeFD = int(wfdR.Fd())
	th.attachStream(s, []int{1, 2})

	th.buildPollSet()
	count := 0
	for _, pf := range th.pollfds {
		if pf.Fd == int32(wfdR.Fd()) {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected the shared wake fd registered exactly once, got %d", count)
	}
}
