package thread

import "time"

// APM is the opaque echo-cancellation/audio-processing-module handle some
// streams carry (§3, §6). The scheduler never calls into it; it only
// reports whether one is present (StreamSnapshot.HasAPM).
type APM interface {
	Close() error
}

// Stream is the external collaborator boundary for a client-side audio
// producer/consumer backed by shared memory (§6 "Stream handle operations
// consumed"). Like Device, implementations live outside this module.
type Stream interface {
	ID() int
	Direction() Direction
	Format() Format
	BufferFrames() int
	CallbackThreshold() int

	// SharedMemFrames is the number of frames currently sitting in the
	// stream's shared-memory region. The drain controller polls this
	// (§4.4); the wake scheduler uses it to decide fetchability (§4.6).
	SharedMemFrames() int

	SetDraining(bool)
	Draining() bool

	LongestFetchInterval() time.Duration
	OverrunCount() int
	APM() APM

	// WakeFD is the fd the scheduler polls for this stream's wake signal
	// (§4.6 step 3). Waking up is sufficient; dev_io_run services it on
	// the next iteration.
	WakeFD() int
}

// DevStream is the per-(device, stream) binding (§3). A single stream may
// have multiple DevStream bindings when attached to several devices at
// once; owned exclusively by the device's stream list.
type DevStream struct {
	stream    Stream
	devIndex  int
	format    Format
	nextCbTS  time.Time
	playbackFrames int // cached by the scheduler each iteration; <=0 while draining and empty
}

func newDevStream(s Stream, devIndex int, format Format, initCbTS time.Time) *DevStream {
	return &DevStream{
		stream:   s,
		devIndex: devIndex,
		format:   format,
		nextCbTS: initCbTS,
	}
}

// Stream returns the bound stream handle.
func (ds *DevStream) Stream() Stream { return ds.stream }

// DeviceIndex returns the bound device's stable index.
func (ds *DevStream) DeviceIndex() int { return ds.devIndex }

// NextCallbackTime returns this binding's next-callback timestamp, used by
// the wake scheduler's per-output-device minimum (§4.6 step 2).
func (ds *DevStream) NextCallbackTime() time.Time { return ds.nextCbTS }

// SetNextCallbackTime updates the binding's next-callback timestamp; called
// by dev_io_run (external collaborator) as it services the stream.
func (ds *DevStream) SetNextCallbackTime(t time.Time) { ds.nextCbTS = t }

// fetchable reports whether this dev-stream should hold back a device's
// wake time. A draining dev-stream with no playback frames left is being
// reaped and must not hold the device back (§4.4 last paragraph).
func (ds *DevStream) fetchable() bool {
	if ds.stream.Draining() && ds.playbackFrames <= 0 {
		return false
	}
	return true
}

// streamList is an (device-owned) ordered, append/remove container of
// DevStreams. The teacher's intrusive lists (direwolf/kcp-go's C-style
// owned linked lists) become a plain owned slice here per §9's "ownership
// pattern, not a data-structure requirement" note: n is small (device
// counts in single digits), so O(n) linear search costs nothing real.
type streamList struct {
	items []*DevStream
}

func (l *streamList) append(ds *DevStream) { l.items = append(l.items, ds) }

func (l *streamList) find(streamID int) (*DevStream, int) {
	for i, ds := range l.items {
		if ds.stream.ID() == streamID {
			return ds, i
		}
	}
	return nil, -1
}

func (l *streamList) removeAt(i int) {
	l.items = append(l.items[:i], l.items[i+1:]...)
}

func (l *streamList) first() *DevStream {
	if len(l.items) == 0 {
		return nil
	}
	return l.items[0]
}
