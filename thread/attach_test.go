package thread

import (
	"errors"
	"testing"
	"time"
)

func newTestThread() *Thread {
	return &Thread{
		devices:  newDeviceRegistry(),
		eventLog: NewEventLog(0),
		clock:    func() time.Time { return time.Unix(1000, 0) },
	}
}

func TestAttachStreamSkipsUnopenedDevice(t *testing.T) {
	th := newTestThread()
	s := newFakeStream(1, Output)

	if err := th.attachStream(s, []int{7}); err != nil {
		t.Fatalf("attachStream: %v", err)
	}
	if th.devices.isOpen(7) {
		t.Fatalf("device 7 should not have been opened by attach")
	}
}

func TestAttachStreamSkipsAlreadyBound(t *testing.T) {
	th := newTestThread()
	dev := newFakeDevice(1, Output)
	th.devices.add(dev)
	s := newFakeStream(5, Output)

	if err := th.attachStream(s, []int{1, 1}); err != nil {
		t.Fatalf("attachStream: %v", err)
	}
	od, _ := th.devices.find(Output, 1)
	if len(od.streams.items) != 1 {
		t.Fatalf("expected exactly one binding, got %d", len(od.streams.items))
	}
}

func TestAttachStreamRollsBackOnFailure(t *testing.T) {
	th := newTestThread()
	good := newFakeDevice(1, Output)
	bad := newFakeDevice(2, Output)
	bad.addErr = errors.New("no hardware slot")
	th.devices.add(good)
	th.devices.add(bad)

	s := newFakeStream(9, Output)
	err := th.attachStream(s, []int{1, 2})
	if err == nil {
		t.Fatalf("expected attach to fail")
	}

	odGood, _ := th.devices.find(Output, 1)
	if len(odGood.streams.items) != 0 {
		t.Fatalf("rollback should have detached stream from device 1, got %d bindings", len(odGood.streams.items))
	}
	if len(good.removed) != 1 {
		t.Fatalf("expected RemoveStream called once during rollback, got %d", len(good.removed))
	}
}

func TestAttachInputFlushesOnlyOnFirstStream(t *testing.T) {
	th := newTestThread()
	dev := newFakeDevice(1, Input)
	th.devices.add(dev)

	s1 := newFakeStream(1, Input)
	s2 := newFakeStream(2, Input)

	if err := th.attachStream(s1, []int{1}); err != nil {
		t.Fatalf("attach s1: %v", err)
	}
	if dev.flushed != 1 {
		t.Fatalf("expected 1 flush after first stream, got %d", dev.flushed)
	}

	if err := th.attachStream(s2, []int{1}); err != nil {
		t.Fatalf("attach s2: %v", err)
	}
	if dev.flushed != 1 {
		t.Fatalf("expected no flush on second stream, got %d total", dev.flushed)
	}
}

func TestAttachInputCopiesOffsetFromPreviouslyFirstStream(t *testing.T) {
	th := newTestThread()
	dev := newFakeDevice(1, Input)
	th.devices.add(dev)

	s1 := newFakeStream(1, Input)
	s1.threshold = 480
	th.attachStream(s1, []int{1})
	dev.offsets[1] = 200

	s2 := newFakeStream(2, Input)
	s2.threshold = 100 // smaller than s1's recorded offset: must clamp

	if err := th.attachStream(s2, []int{1}); err != nil {
		t.Fatalf("attach s2: %v", err)
	}
	if got := dev.offsets[2]; got != 100 {
		t.Fatalf("expected offset clamped to threshold 100, got %d", got)
	}
}

func TestAttachOutputInitialCallbackIsMinOfExisting(t *testing.T) {
	th := newTestThread()
	dev := newFakeDevice(1, Output)
	th.devices.add(dev)

	base := time.Unix(2000, 0)
	s1 := newFakeStream(1, Output)
	th.attachStream(s1, []int{1})
	od, _ := th.devices.find(Output, 1)
	od.streams.items[0].SetNextCallbackTime(base.Add(5 * time.Second))

	s2 := newFakeStream(2, Output)
	th.attachStream(s2, []int{1})
	od.streams.items[1].SetNextCallbackTime(base)

	s3 := newFakeStream(3, Output)
	th.attachStream(s3, []int{1})

	got := od.streams.items[2].NextCallbackTime()
	if !got.Equal(base) {
		t.Fatalf("expected new stream's initial callback time to be the existing minimum %v, got %v", base, got)
	}
}

func TestDetachStreamAllDevices(t *testing.T) {
	th := newTestThread()
	d1 := newFakeDevice(1, Output)
	d2 := newFakeDevice(2, Output)
	th.devices.add(d1)
	th.devices.add(d2)
	s := newFakeStream(1, Output)
	th.attachStream(s, []int{1, 2})

	if err := th.detachStream(Output, 1, -1); err != nil {
		t.Fatalf("detachStream: %v", err)
	}
	if len(d1.streams) != 0 || len(d2.streams) != 0 {
		t.Fatalf("expected stream removed from both devices")
	}
}
