package thread

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Logger is the minimal sink the audio thread writes operator-facing lines
// to (pipe errors, STOP, best-effort realtime-priority failures). Any
// *log.Logger satisfies it, matching the teacher's direct use of the
// standard log package (SPEC_FULL §10).
type Logger interface {
	Printf(format string, args ...any)
}

// DevIO is the external scheduler collaborator that actually drives sample
// I/O (§6 "External scheduler collaborators"). The core never does audio
// math itself; this is the sample/format boundary.
type DevIO interface {
	// Run drives one iteration of real device I/O for both direction
	// lists, given the current global remix converter.
	Run(out, in []*OpenDevice, remix RemixConverter) error

	// NextInputWake folds input devices' wake contributions into
	// currentMin, returning the (possibly unchanged) new minimum and
	// whether any input device actually contributed a constraint.
	NextInputWake(in []*OpenDevice, currentMin time.Time) (newMin time.Time, contributed bool)
}

// Monitor receives the busyloop() notification (§6, §4.6 step 5).
type Monitor interface {
	Busyloop()
}

// initialPollCapacity and its growth factor (§3 "pollfd array that grows on
// demand (initial capacity 32, doubling)").
const initialPollCapacity = 32

// zeroTimeoutBusyloopThreshold is the configurable constant from §4.6 step 5
// ("configurable constant = 2").
const zeroTimeoutBusyloopThreshold = 2

// wakeCeiling bounds ppoll's wait so periodic maintenance still occurs when
// idle (§4.6 step 2, §5).
const wakeCeiling = 20 * time.Second

// Thread is the audio I/O scheduler: one dedicated worker goroutine
// multiplexing open devices against attached streams. Once Start has run,
// every field below except the command-pipe fds and postMu/pending is
// exclusively owned by the worker goroutine (§5).
type Thread struct {
	logger  Logger
	monitor Monitor
	devIO   DevIO
	clock   func() time.Time

	devices   *deviceRegistry
	callbacks *callbackRegistry
	remix     RemixConverter
	eventLog  *EventLog
	aecDumps  map[int]*aecDumpState

	toThreadR, toThreadW *os.File
	toMainR, toMainW     *os.File

	pollfds []unix.PollFd

	// postMu serializes controller-side post() calls so the command
	// channel's "queue depth 1" invariant (§5 "Ordering") holds even if
	// multiple goroutines share one *Thread.
	postMu sync.Mutex
	// pending is the single in-flight request. Cross-goroutine visibility
	// is established by the pipe read/write syscalls bracketing every
	// access, not by a separate mutex: post() sets pending, then writes
	// the wire envelope (happens-before the worker's matching read); the
	// worker fills in the response fields, then writes the ack bytes
	// (happens-before post()'s matching read). See pipe.go.
	pending *request

	started    bool
	workerDone chan struct{}
	stopOnce   sync.Once

	zeroTimeoutStreak int
	longestWake       time.Duration
	lastWakeAt        time.Time
}

// New allocates the thread object, opens both pipe pairs, allocates the
// initial pollfd array, and initializes the event log (§4.8 "create").
// Start has not run yet; no goroutine exists until Start is called.
func New(devIO DevIO, monitor Monitor, logger Logger) (*Thread, error) {
	toThreadR, toThreadW, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "New: to-thread pipe")
	}
	toMainR, toMainW, err := os.Pipe()
	if err != nil {
		toThreadR.Close()
		toThreadW.Close()
		return nil, errors.Wrap(err, "New: to-main pipe")
	}

	t := &Thread{
		logger:     logger,
		monitor:    monitor,
		devIO:      devIO,
		clock:      func() time.Time { return time.Now() },
		devices:    newDeviceRegistry(),
		callbacks:  newCallbackRegistry(),
		eventLog:   NewEventLog(eventLogCapacity),
		aecDumps:   make(map[int]*aecDumpState),
		toThreadR:  toThreadR,
		toThreadW:  toThreadW,
		toMainR:    toMainR,
		toMainW:    toMainW,
		pollfds:    make([]unix.PollFd, 0, initialPollCapacity),
		workerDone: make(chan struct{}),
	}
	return t, nil
}

// WithClock overrides the monotonic clock used for wake computation;
// intended for deterministic tests (production callers never need this).
func (t *Thread) WithClock(clock func() time.Time) *Thread {
	t.clock = clock
	return t
}

func (t *Thread) now() time.Time { return t.clock() }

// Start spawns the worker goroutine running the scheduler loop (§4.8
// "start"). The worker attempts to raise its scheduling policy to
// realtime; failure is logged and non-fatal.
func (t *Thread) Start() {
	if t.started {
		return
	}
	t.started = true
	go func() {
		defer close(t.workerDone)
		if err := raiseRealtimePriority(); err != nil && t.logger != nil {
			t.logger.Printf("audiothread: realtime priority unavailable: %v", err)
		}
		t.runLoop()
	}()
}

// Destroy posts STOP (if started), joins the worker, closes both pipes,
// and frees the pollfd array and the remix converter (§4.8 "destroy").
func (t *Thread) Destroy() error {
	var stopErr error
	t.stopOnce.Do(func() {
		if t.started {
			req := &request{cmd: cmdStop}
			stopErr = t.post(req)
			<-t.workerDone
		}
		t.toThreadR.Close()
		t.toThreadW.Close()
		t.toMainR.Close()
		t.toMainW.Close()
		t.pollfds = nil
		if t.remix != nil {
			t.remix.Close()
			t.remix = nil
		}
	})
	return stopErr
}
