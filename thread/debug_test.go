package thread

import "testing"

func TestDumpThreadInfoCapsAndResetsLongestWake(t *testing.T) {
	th := newTestThread()
	th.longestWake = 42

	dev := newFakeDevice(1, Output)
	th.devices.add(dev)
	for i := 0; i < MaxDebugStreams+3; i++ {
		s := newFakeStream(i+1, Output)
		th.attachStream(s, []int{1})
	}

	var snap ThreadSnapshot
	th.dumpThreadInfo(&snap)

	if th.longestWake != 0 {
		t.Fatalf("expected longestWake reset to 0, got %v", th.longestWake)
	}
	if len(snap.Streams) != MaxDebugStreams {
		t.Fatalf("expected snapshot capped at %d streams, got %d", MaxDebugStreams, len(snap.Streams))
	}
	if snap.Dropped() != 3 {
		t.Fatalf("expected 3 dropped streams, got %d", snap.Dropped())
	}
}

func TestDumpThreadInfoCapsDevices(t *testing.T) {
	th := newTestThread()
	for i := 0; i < MaxDebugDevs+1; i++ {
		th.devices.add(newFakeDevice(i+1, Output))
	}

	var snap ThreadSnapshot
	th.dumpThreadInfo(&snap)

	if len(snap.Devices) != MaxDebugDevs {
		t.Fatalf("expected %d devices, got %d", MaxDebugDevs, len(snap.Devices))
	}
	if snap.Dropped() != 1 {
		t.Fatalf("expected 1 dropped device, got %d", snap.Dropped())
	}
}

func TestDumpThreadInfoReportsDeviceBounds(t *testing.T) {
	th := newTestThread()
	dev := newFakeDevice(1, Output)
	dev.bufferFrames = 4096
	dev.minCBThreshold = 128
	dev.maxCBThreshold = 2048
	th.devices.add(dev)

	var snap ThreadSnapshot
	th.dumpThreadInfo(&snap)

	if len(snap.Devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(snap.Devices))
	}
	got := snap.Devices[0]
	if got.BufferFrames != 4096 {
		t.Fatalf("expected BufferFrames 4096, got %d", got.BufferFrames)
	}
	if got.MinCallbackThreshold != 128 {
		t.Fatalf("expected MinCallbackThreshold 128, got %d", got.MinCallbackThreshold)
	}
	if got.MaxCallbackThreshold != 2048 {
		t.Fatalf("expected MaxCallbackThreshold 2048, got %d", got.MaxCallbackThreshold)
	}
}

func TestEventLogWrapsAndSnapshotsChronologically(t *testing.T) {
	l := NewEventLog(3)
	for i := 0; i < 5; i++ {
		l.Record(EvThreadWake, "", fixedTime(i))
	}
	snap := l.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected ring buffer capped at 3 entries, got %d", len(snap))
	}
	for i, want := range []int{2, 3, 4} {
		if !snap[i].At.Equal(fixedTime(want)) {
			t.Fatalf("entry %d: expected timestamp index %d, got %v", i, want, snap[i].At)
		}
	}
}
