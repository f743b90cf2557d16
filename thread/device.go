package thread

import "time"

// Direction is which way audio flows through a device or stream.
type Direction int

const (
	Output Direction = iota
	Input
)

// Format describes a PCM stream's frame rate, channel count and layout.
// Opaque beyond these fields to the scheduler: it never does sample math.
type Format struct {
	RateHz   int
	Channels int
	Layout   string
}

// RemixConverter is the opaque global channel-layout converter handle
// (§6). The scheduler hands it to dev_io_run every iteration and otherwise
// never looks inside it.
type RemixConverter interface {
	Close() error
}

// Device is the external collaborator boundary for a hardware endpoint
// (§6 "Device handle operations consumed"). Implementations live outside
// this module (ALSA, a test fake, ...); the scheduler only calls through
// this interface and never inspects a concrete type.
type Device interface {
	Index() int
	Direction() Direction
	Format() Format

	// FillSilence zero-fills up to n frames of the hardware buffer. Used
	// at device-add time to pre-fill output devices (§4.2).
	FillSilence(frames int) error

	// FlushCapture discards buffered input so a fresh multi-stream read
	// starts aligned (§4.3 step 5). Returns frames flushed, or a non-nil
	// error on failure.
	FlushCapture() (int, error)

	// AddStream/RemoveStream mutate the device's own owned stream list;
	// the scheduler calls these in lockstep with its own dev-stream
	// bookkeeping so both views stay consistent (§4.3, §4.4).
	AddStream(ds *DevStream) error
	RemoveStream(ds *DevStream) error

	StartRamp(req RampRequest) error

	// ShouldWake/WakeTime contribute to the wake scheduler's min (§4.6
	// step 2): "if the device itself reports 'should wake', take min with
	// its wake_ts".
	ShouldWake() bool
	WakeTime() time.Time

	// BufferFrames, MinCallbackThreshold and MaxCallbackThreshold are the
	// buffer and callback-level bounds the debug sampler reports for this
	// device (§3 "a buffer size in frames... a minimum/maximum callback
	// threshold in frames", §4.7).
	BufferFrames() int
	MinCallbackThreshold() int
	MaxCallbackThreshold() int

	MinBufferLevel() int
	UnderrunCount() int
	SevereUnderrunCount() int
	HighWaterMark() int
	EstimatedRateRatio() float64

	// StreamOffset/SetStreamOffset are the per-stream offset get/set used
	// by the input multi-device alignment rule (§4.3 step 7).
	StreamOffset(streamID int) int
	SetStreamOffset(streamID int, offset int)
}

// OpenDevice is the scheduler's own wrapper around a Device handle (§3
// "Open-device record"). One per (direction, device); owned exclusively
// by the audio thread.
type OpenDevice struct {
	dev     Device
	streams streamList // insertion order == dispatch order
}

func newOpenDevice(dev Device) *OpenDevice {
	return &OpenDevice{dev: dev}
}

func (od *OpenDevice) hasStream(streamID int) bool {
	_, idx := od.streams.find(streamID)
	return idx >= 0
}

// Device returns the underlying device handle, for external DevIO
// collaborators that need to drive its device-level operations (§6).
func (od *OpenDevice) Device() Device { return od.dev }

// Streams returns this device's dev-streams in dispatch order. The returned
// slice aliases the scheduler's own storage: DevIO implementations may call
// SetNextCallbackTime on the returned entries but must not retain the slice
// past one Run call, since attach/detach can reallocate it.
func (od *OpenDevice) Streams() []*DevStream { return od.streams.items }

// deviceRegistry is the scheduler's per-direction ordered lists of open
// devices (§4.2). Invariant: at most one record per (direction, device).
type deviceRegistry struct {
	byDirection [2][]*OpenDevice
}

func newDeviceRegistry() *deviceRegistry {
	return &deviceRegistry{}
}

func (r *deviceRegistry) list(dir Direction) []*OpenDevice {
	return r.byDirection[dir]
}

func (r *deviceRegistry) find(dir Direction, devIndex int) (*OpenDevice, int) {
	for i, od := range r.byDirection[dir] {
		if od.dev.Index() == devIndex {
			return od, i
		}
	}
	return nil, -1
}

func (r *deviceRegistry) isOpen(devIndex int) bool {
	for dir := range r.byDirection {
		if _, idx := r.find(Direction(dir), devIndex); idx >= 0 {
			return true
		}
	}
	return false
}

func (r *deviceRegistry) add(dev Device) error {
	dir := dev.Direction()
	if _, idx := r.find(dir, dev.Index()); idx >= 0 {
		return errExist
	}
	r.byDirection[dir] = append(r.byDirection[dir], newOpenDevice(dev))
	return nil
}

func (r *deviceRegistry) remove(devIndex int) error {
	for dir := range r.byDirection {
		list := r.byDirection[dir]
		for i, od := range list {
			if od.dev.Index() == devIndex {
				r.byDirection[dir] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	return errInvalid
}
