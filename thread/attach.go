package thread

import (
	"time"

	"github.com/pkg/errors"
)

// attachStream implements ADD_STREAM (§4.3). It walks the target device
// vector in order, applying the output/input alignment policy per device,
// and rolls back everything it did so far on the first failure.
func (t *Thread) attachStream(s Stream, devIndices []int) error {
	var attached []int // device indices successfully bound, for rollback

	for _, devIndex := range devIndices {
		od, _ := t.devices.find(s.Direction(), devIndex)
		if od == nil {
			// "If the device is not in the open list, skip it silently."
			continue
		}
		if od.hasStream(s.ID()) {
			// "If the stream is already bound to this device, skip silently."
			continue
		}

		if err := t.attachOne(od, s); err != nil {
			t.rollbackAttach(s, attached)
			return err
		}
		attached = append(attached, devIndex)
	}
	return nil
}

// attachOne runs steps 3-7 of §4.3 for a single target device.
func (t *Thread) attachOne(od *OpenDevice, s Stream) error {
	initCbTS := t.initialCallbackTime(od, s)

	ds := newDevStream(s, od.dev.Index(), od.dev.Format(), initCbTS)
	t.eventLog.Record(EvStreamSleepSet, "", t.now())
	if err := od.dev.AddStream(ds); err != nil {
		return errors.Wrap(errNoMem, "attachOne: AddStream")
	}

	firstOnDevice := len(od.streams.items) == 0

	if s.Direction() == Input && firstOnDevice {
		// "flush the device's capture buffer so that subsequent
		// multi-device reads start aligned. Failure here fails the attach."
		if _, err := od.dev.FlushCapture(); err != nil {
			_ = od.dev.RemoveStream(ds)
			return errors.Wrap(err, "attachOne: FlushCapture")
		}
	}

	// Capture the previously-first stream *before* appending the new
	// binding: the spec's open question about "dev->streams->stream"
	// normalizes to this previously-first reference (SPEC_FULL §13).
	var prevFirst *DevStream
	if s.Direction() == Input && !firstOnDevice {
		prevFirst = od.streams.first()
	}

	od.streams.append(ds)

	if prevFirst != nil {
		// "copy the first existing stream's per-device written offset and
		// per-stream device offset into the new dev-stream, clamped to
		// the new stream's callback threshold."
		offset := od.dev.StreamOffset(prevFirst.stream.ID())
		if threshold := s.CallbackThreshold(); offset > threshold {
			offset = threshold
		}
		od.dev.SetStreamOffset(s.ID(), offset)
	}

	return nil
}

// initialCallbackTime implements §4.3 step 3.
func (t *Thread) initialCallbackTime(od *OpenDevice, s Stream) time.Time {
	if s.Direction() == Output && len(od.streams.items) > 0 {
		min := od.streams.items[0].NextCallbackTime()
		for _, ds := range od.streams.items[1:] {
			if ds.NextCallbackTime().Before(min) {
				min = ds.NextCallbackTime()
			}
		}
		return min
	}
	return t.now()
}

// rollbackAttach undoes attachOne for every device index already processed,
// per §4.3's "the attach rolls back by detaching the stream from every
// target device processed so far".
func (t *Thread) rollbackAttach(s Stream, devIndices []int) {
	for _, devIndex := range devIndices {
		_ = t.detachOne(s.Direction(), s.ID(), devIndex)
	}
}

// detachStream implements DISCONNECT_STREAM (§4.3 last paragraph). devIndex
// < 0 means "every device in the stream's direction".
func (t *Thread) detachStream(dir Direction, streamID int, devIndex int) error {
	if devIndex >= 0 {
		return t.detachOne(dir, streamID, devIndex)
	}
	for _, od := range append([]*OpenDevice(nil), t.devices.list(dir)...) {
		_ = t.detachOne(dir, streamID, od.dev.Index())
	}
	return nil
}

// detachOne removes a stream's DevStream binding from one device, destroying
// the binding and telling the device handle to drop it from its own list.
func (t *Thread) detachOne(dir Direction, streamID int, devIndex int) error {
	od, _ := t.devices.find(dir, devIndex)
	if od == nil {
		return errInvalid
	}
	ds, idx := od.streams.find(streamID)
	if ds == nil {
		return nil
	}
	_ = od.dev.RemoveStream(ds)
	od.streams.removeAt(idx)
	return nil
}
