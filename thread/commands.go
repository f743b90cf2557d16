package thread

import "time"

// commandTag identifies a message on the command pipe. The set is closed:
// every audio thread understands exactly these, nothing else.
type commandTag byte

const (
	cmdAddOpenDev commandTag = iota
	cmdRmOpenDev
	cmdIsDevOpen
	cmdAddStream
	cmdDisconnectStream
	cmdDrainStream
	cmdDevStartRamp
	cmdConfigGlobalRemix
	cmdDumpThreadInfo
	cmdAECDump
	cmdAddCallback
	cmdRemoveCallback
	cmdStop
)

// Standard error codes returned on the to-main pipe. These mirror the
// errno-shaped codes in spec.md section 7; they are plain ints here, not
// syscall.Errno, since the core never actually crosses a process boundary.
const (
	errOK     = 0
	errEINVAL = -22
	errEEXIST = -17
	errENOMEM = -12
	errEPIPE  = -32
)

// addOpenDevRequest is the ADD_OPEN_DEV / RM_OPEN_DEV / IS_DEV_OPEN payload.
type addOpenDevRequest struct {
	dev Device
}

// addStreamRequest is the ADD_STREAM payload: a stream and its target
// devices (by index, resolved against the open-device registry).
type addStreamRequest struct {
	stream  Stream
	devices []int
}

// disconnectStreamRequest is the DISCONNECT_STREAM payload. devIndex < 0
// means "all devices in the stream's direction".
type disconnectStreamRequest struct {
	dir      Direction
	streamID int
	devIndex int
}

// drainStreamRequest is the DRAIN_STREAM payload.
type drainStreamRequest struct {
	streamID int
}

// rampRequest is the DEV_START_RAMP payload.
type rampRequest struct {
	devIndex int
	ramp     RampRequest
}

// RampRequest describes the volume envelope to apply at device start/stop.
// Forwarded verbatim to the device handle; the scheduler does not interpret
// it (§6, "device handle operations consumed: ... start-ramp").
type RampRequest struct {
	Up       bool
	Duration time.Duration
}

// configRemixRequest is the CONFIG_GLOBAL_REMIX payload.
type configRemixRequest struct {
	converter RemixConverter
}

// dumpThreadInfoRequest is the DUMP_THREAD_INFO payload.
type dumpThreadInfoRequest struct {
	snapshot *ThreadSnapshot
}

// aecDumpRequest is the AEC_DUMP payload.
type aecDumpRequest struct {
	streamID int
	start    bool
	fd       int
}

// addCallbackRequest is the ADD_CALLBACK payload. Not part of the spec's
// transcribed wire table (only REMOVE_CALLBACK is listed there), but the
// callback registry is named among the worker-exclusively-owned state in
// the ownership section, so mutating it has to cross the same post-and-wait
// channel as every other worker-owned structure.
type addCallbackRequest struct {
	fd   int
	dir  CallbackDirection
	fn   Callback
	data any
}

// removeCallbackRequest is the REMOVE_CALLBACK payload.
type removeCallbackRequest struct {
	fd int
}
