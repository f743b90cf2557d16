package main

import (
	"sync"
	"time"

	"github.com/xtaci/audiothread/thread"
)

// deviceSim is a synthetic thread.Device: no real hardware, just enough
// bookkeeping to let the wake scheduler and attach/detach paths run against
// something concrete. Modeled on how client/main.go drove a real kcp.UDPSession
// through a thin Config-backed wrapper rather than touching the socket
// directly; here the "socket" is a free-running wall-clock buffer level.
type deviceSim struct {
	mu sync.Mutex

	index  int
	dir    thread.Direction
	format thread.Format

	bufferFrames   int
	minBufferLevel int
	highWater      int
	minCBThreshold int
	maxCBThreshold int

	level     int // frames currently sitting in the simulated hardware buffer
	underrun  int
	severe    int
	wakeAt    time.Time
	offsets   map[int]int
	flushedAt time.Time
}

func newDeviceSim(index int, dir thread.Direction, format thread.Format, bufferFrames, minBufferLevel, cbThreshold int) *deviceSim {
	return &deviceSim{
		index:          index,
		dir:            dir,
		format:         format,
		bufferFrames:   bufferFrames,
		minBufferLevel: minBufferLevel,
		highWater:      bufferFrames,
		minCBThreshold: cbThreshold,
		maxCBThreshold: bufferFrames,
		offsets:        make(map[int]int),
	}
}

func (d *deviceSim) Index() int              { return d.index }
func (d *deviceSim) Direction() thread.Direction { return d.dir }
func (d *deviceSim) Format() thread.Format   { return d.format }
func (d *deviceSim) Name() string            { return deviceName(d.dir, d.index) }

func deviceName(dir thread.Direction, index int) string {
	if dir == thread.Output {
		return "sim-out"
	}
	_ = index
	return "sim-in"
}

func (d *deviceSim) FillSilence(frames int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.level += frames
	if d.level > d.bufferFrames {
		d.level = d.bufferFrames
	}
	return nil
}

func (d *deviceSim) FlushCapture() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	flushed := d.level
	d.level = 0
	d.flushedAt = time.Now()
	return flushed, nil
}

func (d *deviceSim) AddStream(ds *thread.DevStream) error    { return nil }
func (d *deviceSim) RemoveStream(ds *thread.DevStream) error  { return nil }

func (d *deviceSim) StartRamp(req thread.RampRequest) error { return nil }

func (d *deviceSim) ShouldWake() bool    { return false }
func (d *deviceSim) WakeTime() time.Time { return d.wakeAt }

func (d *deviceSim) BufferFrames() int          { return d.bufferFrames }
func (d *deviceSim) MinCallbackThreshold() int  { return d.minCBThreshold }
func (d *deviceSim) MaxCallbackThreshold() int  { return d.maxCBThreshold }

func (d *deviceSim) MinBufferLevel() int      { return d.minBufferLevel }
func (d *deviceSim) UnderrunCount() int       { return d.underrun }
func (d *deviceSim) SevereUnderrunCount() int { return d.severe }
func (d *deviceSim) HighWaterMark() int       { return d.highWater }
func (d *deviceSim) EstimatedRateRatio() float64 { return 1.0 }

func (d *deviceSim) StreamOffset(streamID int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offsets[streamID]
}

func (d *deviceSim) SetStreamOffset(streamID int, offset int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.offsets[streamID] = offset
}

// streamSim is a synthetic thread.Stream backed by an in-memory frame
// counter instead of a real shared-memory region.
type streamSim struct {
	mu sync.Mutex

	id        int
	dir       thread.Direction
	format    thread.Format
	buffer    int
	threshold int

	shmFrames int
	draining  bool
	fetch     time.Duration
	overrun   int
	wakeFD    int
}

func newStreamSim(id int, dir thread.Direction, format thread.Format, buffer, threshold, initialFrames int) *streamSim {
	return &streamSim{
		id:        id,
		dir:       dir,
		format:    format,
		buffer:    buffer,
		threshold: threshold,
		shmFrames: initialFrames,
		wakeFD:    -1,
	}
}

func (s *streamSim) ID() int                 { return s.id }
func (s *streamSim) Direction() thread.Direction { return s.dir }
func (s *streamSim) Format() thread.Format    { return s.format }
func (s *streamSim) BufferFrames() int        { return s.buffer }
func (s *streamSim) CallbackThreshold() int   { return s.threshold }

func (s *streamSim) SharedMemFrames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shmFrames
}

// drainFrames simulates playback consuming one callback-threshold's worth of
// frames; the demo's DevIO calls this each iteration for every output stream so
// DRAIN_STREAM's ms-remaining estimate eventually reaches zero.
func (s *streamSim) drainFrames() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shmFrames <= 0 {
		return
	}
	s.shmFrames -= s.threshold
	if s.shmFrames < 0 {
		s.shmFrames = 0
	}
}

func (s *streamSim) SetDraining(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draining = v
}

func (s *streamSim) Draining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draining
}

func (s *streamSim) LongestFetchInterval() time.Duration { return s.fetch }
func (s *streamSim) OverrunCount() int                   { return s.overrun }
func (s *streamSim) APM() thread.APM                     { return nil }
func (s *streamSim) WakeFD() int                         { return s.wakeFD }

// devIOSim plays the role of the external dev_io_run/dev_io_next_input_wake
// collaborators (§6): it advances every attached dev-stream's next-callback
// timestamp by one buffer period and drains frames off playing streams. A
// real build wires ALSA or similar here; the demo only needs something that
// keeps the wake scheduler's math honest.
type devIOSim struct {
	period time.Duration
}

func (io *devIOSim) Run(out, in []*thread.OpenDevice, remix thread.RemixConverter) error {
	now := time.Now()
	for _, od := range out {
		for _, ds := range od.Streams() {
			if s, ok := ds.Stream().(*streamSim); ok {
				s.drainFrames()
			}
			ds.SetNextCallbackTime(now.Add(io.period))
		}
	}
	for _, od := range in {
		for _, ds := range od.Streams() {
			ds.SetNextCallbackTime(now.Add(io.period))
		}
	}
	return nil
}

func (io *devIOSim) NextInputWake(in []*thread.OpenDevice, currentMin time.Time) (time.Time, bool) {
	contributed := false
	min := currentMin
	for _, od := range in {
		for _, ds := range od.Streams() {
			contributed = true
			if ds.NextCallbackTime().Before(min) {
				min = ds.NextCallbackTime()
			}
		}
	}
	return min, contributed
}

// remixSim is a trivial thread.RemixConverter stand-in for
// CONFIG_GLOBAL_REMIX demo calls; it carries no actual channel matrix.
type remixSim struct{ closed bool }

func (r *remixSim) Close() error { r.closed = true; return nil }
