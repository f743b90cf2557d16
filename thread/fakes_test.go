package thread

import (
	"os"
	"time"
)

// fakeDevice is a hand-rolled Device stub for tests, in the spirit of
// std/copy_test.go's writerToStub/readerFromStub: no mocking framework,
// just enough state to drive the scheduler through a scenario.
type fakeDevice struct {
	index     int
	dir       Direction
	format    Format
	streams   []*DevStream
	offsets   map[int]int
	wake      bool
	wakeAt    time.Time
	flushErr  error
	flushed   int
	addErr    error
	removed   []*DevStream
	rampCalls []RampRequest
	highWater int
	filled    int
	bufferFrames int
	minCBThreshold int
	maxCBThreshold int
}

func newFakeDevice(index int, dir Direction) *fakeDevice {
	return &fakeDevice{
		index:   index,
		dir:     dir,
		format:  Format{RateHz: 48000, Channels: 2, Layout: "stereo"},
		offsets: make(map[int]int),
		bufferFrames:   4096,
		minCBThreshold: 128,
		maxCBThreshold: 2048,
	}
}

func (d *fakeDevice) Index() int         { return d.index }
func (d *fakeDevice) Direction() Direction { return d.dir }
func (d *fakeDevice) Format() Format      { return d.format }

func (d *fakeDevice) FillSilence(frames int) error {
	d.filled += frames
	return nil
}

func (d *fakeDevice) FlushCapture() (int, error) {
	d.flushed++
	if d.flushErr != nil {
		return 0, d.flushErr
	}
	return 0, nil
}

func (d *fakeDevice) AddStream(ds *DevStream) error {
	if d.addErr != nil {
		return d.addErr
	}
	d.streams = append(d.streams, ds)
	return nil
}

func (d *fakeDevice) RemoveStream(ds *DevStream) error {
	d.removed = append(d.removed, ds)
	for i, s := range d.streams {
		if s == ds {
			d.streams = append(d.streams[:i], d.streams[i+1:]...)
			break
		}
	}
	return nil
}

func (d *fakeDevice) StartRamp(req RampRequest) error {
	d.rampCalls = append(d.rampCalls, req)
	return nil
}

func (d *fakeDevice) ShouldWake() bool      { return d.wake }
func (d *fakeDevice) WakeTime() time.Time   { return d.wakeAt }
func (d *fakeDevice) BufferFrames() int     { return d.bufferFrames }
func (d *fakeDevice) MinCallbackThreshold() int { return d.minCBThreshold }
func (d *fakeDevice) MaxCallbackThreshold() int { return d.maxCBThreshold }
func (d *fakeDevice) MinBufferLevel() int   { return 0 }
func (d *fakeDevice) UnderrunCount() int    { return 0 }
func (d *fakeDevice) SevereUnderrunCount() int { return 0 }
func (d *fakeDevice) HighWaterMark() int    { return d.highWater }
func (d *fakeDevice) EstimatedRateRatio() float64 { return 1.0 }

func (d *fakeDevice) StreamOffset(streamID int) int { return d.offsets[streamID] }
func (d *fakeDevice) SetStreamOffset(streamID int, offset int) { d.offsets[streamID] = offset }

// fakeStream is a hand-rolled Stream stub.
type fakeStream struct {
	id        int
	dir       Direction
	format    Format
	buffer    int
	threshold int
	shmFrames int
	draining  bool
	fetch     time.Duration
	overrun   int
	apm       APM
	wakeFD    int
}

func newFakeStream(id int, dir Direction) *fakeStream {
	return &fakeStream{
		id:     id,
		dir:    dir,
		format: Format{RateHz: 48000, Channels: 2, Layout: "stereo"},
		wakeFD: -1,
	}
}

func (s *fakeStream) ID() int               { return s.id }
func (s *fakeStream) Direction() Direction   { return s.dir }
func (s *fakeStream) Format() Format         { return s.format }
func (s *fakeStream) BufferFrames() int      { return s.buffer }
func (s *fakeStream) CallbackThreshold() int { return s.threshold }
func (s *fakeStream) SharedMemFrames() int   { return s.shmFrames }
func (s *fakeStream) SetDraining(v bool)     { s.draining = v }
func (s *fakeStream) Draining() bool         { return s.draining }
func (s *fakeStream) LongestFetchInterval() time.Duration { return s.fetch }
func (s *fakeStream) OverrunCount() int      { return s.overrun }
func (s *fakeStream) APM() APM               { return s.apm }
func (s *fakeStream) WakeFD() int            { return s.wakeFD }

// fakeDevIO is a no-op DevIO: Run does nothing, NextInputWake never
// contributes. Tests that need a contributing input wake override it
// per-case.
type fakeDevIO struct {
	runCalls int
	runErr   error
	nextWake func(in []*OpenDevice, currentMin time.Time) (time.Time, bool)
}

func (f *fakeDevIO) Run(out, in []*OpenDevice, remix RemixConverter) error {
	f.runCalls++
	return f.runErr
}

func (f *fakeDevIO) NextInputWake(in []*OpenDevice, currentMin time.Time) (time.Time, bool) {
	if f.nextWake != nil {
		return f.nextWake(in, currentMin)
	}
	return currentMin, false
}

// fakeMonitor records Busyloop invocations.
type fakeMonitor struct {
	calls int
}

func (m *fakeMonitor) Busyloop() { m.calls++ }

// devNullPair returns a throwaway os.File pair used when a test only needs a valid
// fd and never reads/writes it.
func devNullPair() (*os.File, *os.File) {
	r, w, err := os.Pipe()
	if err != nil {
		panic(err)
	}
	return r, w
}

// fixedTime returns a deterministic, strictly increasing timestamp indexed
// by i, for tests asserting ordering without depending on wall time.
func fixedTime(i int) time.Time {
	return time.Unix(1000+int64(i), 0)
}
