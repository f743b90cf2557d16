package thread

import "time"

// Debug snapshot caps (§4.7).
const (
	MaxDebugDevs    = 32
	MaxDebugStreams = 64
	eventLogCapacity = 256
)

// DeviceSnapshot captures one device record for DUMP_THREAD_INFO (§4.7).
type DeviceSnapshot struct {
	Name                 string
	Index                int
	Direction            Direction
	BufferFrames         int
	MinCallbackThreshold int
	MaxCallbackThreshold int
	MinBufferLevel       int
	UnderrunCount        int
	SevereUnderrunCount  int
	HighWaterMark        int
	RateHz               int
	Channels             int
	EstimatedRateRatio   float64
}

// StreamSnapshot captures one stream record for DUMP_THREAD_INFO (§4.7).
type StreamSnapshot struct {
	ID                   int
	DeviceIndex          int
	Direction            Direction
	BufferFrames         int
	CallbackThreshold    int
	RateHz               int
	Channels             int
	LongestFetchInterval time.Duration
	OverrunCount         int
	HasAPM               bool
}

// ThreadSnapshot is the caller-supplied buffer DUMP_THREAD_INFO fills.
type ThreadSnapshot struct {
	Devices  []DeviceSnapshot
	Streams  []StreamSnapshot
	Events   []EventRecord
	dropped  int // devices/streams beyond the caps, for callers that want to know
}

// Dropped reports how many device/stream records did not fit the caps.
func (s *ThreadSnapshot) Dropped() int { return s.dropped }

// dumpThreadInfo implements DUMP_THREAD_INFO (§4.7): output devices first,
// then input, preserving registration order, each capped independently.
func (t *Thread) dumpThreadInfo(snap *ThreadSnapshot) {
	// The open question in SPEC_FULL §13: longest_wake resets exactly once
	// per dump, here, not once per stream appended.
	t.longestWake = 0

	snap.Devices = snap.Devices[:0]
	snap.Streams = snap.Streams[:0]
	snap.dropped = 0

	for _, dir := range []Direction{Output, Input} {
		for _, od := range t.devices.list(dir) {
			if len(snap.Devices) >= MaxDebugDevs {
				snap.dropped++
				continue
			}
			d := od.dev
			fmt := d.Format()
			snap.Devices = append(snap.Devices, DeviceSnapshot{
				Name:                 deviceName(d),
				Index:                d.Index(),
				Direction:            dir,
				BufferFrames:         d.BufferFrames(),
				MinCallbackThreshold: d.MinCallbackThreshold(),
				MaxCallbackThreshold: d.MaxCallbackThreshold(),
				MinBufferLevel:       d.MinBufferLevel(),
				UnderrunCount:        d.UnderrunCount(),
				SevereUnderrunCount:  d.SevereUnderrunCount(),
				HighWaterMark:        d.HighWaterMark(),
				RateHz:               fmt.RateHz,
				Channels:             fmt.Channels,
				EstimatedRateRatio:   d.EstimatedRateRatio(),
			})

			for _, ds := range od.streams.items {
				if len(snap.Streams) >= MaxDebugStreams {
					snap.dropped++
					continue
				}
				s := ds.stream
				sf := s.Format()
				snap.Streams = append(snap.Streams, StreamSnapshot{
					ID:                   s.ID(),
					DeviceIndex:          ds.devIndex,
					Direction:            dir,
					BufferFrames:         s.BufferFrames(),
					CallbackThreshold:    s.CallbackThreshold(),
					RateHz:               sf.RateHz,
					Channels:             sf.Channels,
					LongestFetchInterval: s.LongestFetchInterval(),
					OverrunCount:         s.OverrunCount(),
					HasAPM:               s.APM() != nil,
				})
			}
		}
	}

	snap.Events = t.eventLog.Snapshot()
}

func deviceName(d Device) string {
	type named interface{ Name() string }
	if n, ok := d.(named); ok {
		return n.Name()
	}
	return ""
}

// EventKind enumerates the well-known event-log record types (§6 "Event
// log" emission points).
type EventKind int

const (
	EvDevAdded EventKind = iota
	EvStreamAdded
	EvThreadWake
	EvThreadSleep
	EvCommandReceived
	EvIODevCallback
	EvStreamSleepSet
	EvWriteStreamsWait
)

// EventRecord is one entry in the event log ring buffer.
type EventRecord struct {
	Kind   EventKind
	Detail string
	At     time.Time
}

// EventLog is a fixed-capacity ring buffer written only by the worker and
// snapshotted (by value copy) under a command, so there is never
// concurrent access to it (§5 "Shared resource policy").
type EventLog struct {
	buf   []EventRecord
	next  int
	count int
}

// NewEventLog allocates a ring buffer of the given capacity, or
// eventLogCapacity if cap <= 0.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = eventLogCapacity
	}
	return &EventLog{buf: make([]EventRecord, capacity)}
}

// Record appends an event, overwriting the oldest entry once full.
func (l *EventLog) Record(kind EventKind, detail string, at time.Time) {
	l.buf[l.next] = EventRecord{Kind: kind, Detail: detail, At: at}
	l.next = (l.next + 1) % len(l.buf)
	if l.count < len(l.buf) {
		l.count++
	}
}

// Snapshot returns a copy of the log in chronological order (oldest
// first) — the "memcpy of the event log ring buffer" of §4.7.
func (l *EventLog) Snapshot() []EventRecord {
	out := make([]EventRecord, l.count)
	start := (l.next - l.count + len(l.buf)) % len(l.buf)
	for i := 0; i < l.count; i++ {
		out[i] = l.buf[(start+i)%len(l.buf)]
	}
	return out
}
