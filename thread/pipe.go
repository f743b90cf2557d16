package thread

import (
	"encoding/binary"
	"io"
	"syscall"

	"github.com/pkg/errors"
)

// request is the single in-flight command-channel message. The wire bytes
// on the to-thread pipe only ever carry the command tag (enough to wake
// ppoll and tell the worker what to do); the typed payload, which may hold
// Go interface values (Device, Stream, RemixConverter) that have no useful
// byte encoding in-process, rides along on this struct per the "raw
// pointers in messages are a same-process convenience" note (§9). Exactly
// one request is outstanding at a time, enforced by Thread.postMu.
type request struct {
	cmd commandTag

	addOpenDev  *addOpenDevRequest
	rmOpenDev   int // device index, for RM_OPEN_DEV / IS_DEV_OPEN
	addStream   *addStreamRequest
	disconnect  *disconnectStreamRequest
	drain       *drainStreamRequest
	ramp        *rampRequest
	configRemix *configRemixRequest
	dump        *dumpThreadInfoRequest
	aecDump     *aecDumpRequest
	addCB       *addCallbackRequest
	removeCB    *removeCallbackRequest

	// Response fields, filled in by the worker before it writes the ack.
	status       int32
	oldConverter RemixConverter
}

// writeFull is readFull's write-side counterpart: retries short writes and
// EINTR transparently.
func writeFull(w io.Writer, buf []byte) error {
	written := 0
	for written < len(buf) {
		n, err := w.Write(buf[written:])
		written += n
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return errors.Wrap(err, "writeFull")
		}
	}
	return nil
}

// post implements the controller side of the command channel (§4.1
// "post_message"): write one complete message, then block reading the
// response before returning. Only a waked worker ever observes req; see
// the Thread.pending doc comment for the happens-before argument.
func (t *Thread) post(req *request) error {
	t.postMu.Lock()
	defer t.postMu.Unlock()

	t.pending = req
	msg, err := encodeMessage(req.cmd, nil)
	if err != nil {
		return err
	}
	if err := writeFull(t.toThreadW, msg); err != nil {
		return errors.Wrap(err, "post: write to-thread pipe")
	}

	var ack [4]byte
	if err := readFull(t.toMainR, ack[:]); err != nil {
		return errors.Wrap(err, "post: read to-main pipe")
	}
	req.status = int32(binary.LittleEndian.Uint32(ack[:]))
	return nil
}

// respond is the worker-side counterpart: write the 4-byte status ack that
// unblocks the controller's post(). Every non-STOP command handler ends by
// calling this; STOP calls it before the worker's loop exits (§7).
func (t *Thread) respond(status int32) {
	var ack [4]byte
	binary.LittleEndian.PutUint32(ack[:], uint32(status))
	if err := writeFull(t.toMainW, ack[:]); err != nil && t.logger != nil {
		t.logger.Printf("audiothread: write to-main pipe: %v", err)
	}
}

// AddOpenDevice implements ADD_OPEN_DEV (§4.2).
func (t *Thread) AddOpenDevice(dev Device) error {
	req := &request{cmd: cmdAddOpenDev, addOpenDev: &addOpenDevRequest{dev: dev}}
	if err := t.post(req); err != nil {
		return err
	}
	return wireError(req.status)
}

// RemoveOpenDevice implements RM_OPEN_DEV (§4.2).
func (t *Thread) RemoveOpenDevice(devIndex int) error {
	req := &request{cmd: cmdRmOpenDev, rmOpenDev: devIndex}
	if err := t.post(req); err != nil {
		return err
	}
	return wireError(req.status)
}

// IsDeviceOpen implements IS_DEV_OPEN (§4.2).
func (t *Thread) IsDeviceOpen(devIndex int) (bool, error) {
	req := &request{cmd: cmdIsDevOpen, rmOpenDev: devIndex}
	if err := t.post(req); err != nil {
		return false, err
	}
	return req.status != 0, nil
}

// AddStream implements ADD_STREAM (§4.3).
func (t *Thread) AddStream(s Stream, deviceIndices []int) error {
	req := &request{cmd: cmdAddStream, addStream: &addStreamRequest{stream: s, devices: deviceIndices}}
	if err := t.post(req); err != nil {
		return err
	}
	return wireError(req.status)
}

// DisconnectStream implements DISCONNECT_STREAM (§4.3). devIndex < 0 means
// every device in the stream's direction.
func (t *Thread) DisconnectStream(dir Direction, streamID int, devIndex int) error {
	req := &request{cmd: cmdDisconnectStream, disconnect: &disconnectStreamRequest{dir: dir, streamID: streamID, devIndex: devIndex}}
	if err := t.post(req); err != nil {
		return err
	}
	return wireError(req.status)
}

// DrainStream implements DRAIN_STREAM (§4.4). Returns ms-remaining (>=0);
// 0 means the stream was fully reaped.
func (t *Thread) DrainStream(streamID int) (int, error) {
	req := &request{cmd: cmdDrainStream, drain: &drainStreamRequest{streamID: streamID}}
	if err := t.post(req); err != nil {
		return 0, err
	}
	return int(req.status), nil
}

// StartRamp implements DEV_START_RAMP.
func (t *Thread) StartRamp(devIndex int, ramp RampRequest) error {
	req := &request{cmd: cmdDevStartRamp, ramp: &rampRequest{devIndex: devIndex, ramp: ramp}}
	if err := t.post(req); err != nil {
		return err
	}
	return wireError(req.status)
}

// ConfigureGlobalRemix implements CONFIG_GLOBAL_REMIX. Pass nil for the
// identity case. Returns the converter it displaced (nil if none), which
// the caller is responsible for closing.
func (t *Thread) ConfigureGlobalRemix(converter RemixConverter) (RemixConverter, error) {
	req := &request{cmd: cmdConfigGlobalRemix, configRemix: &configRemixRequest{converter: converter}}
	if err := t.post(req); err != nil {
		return nil, err
	}
	return req.oldConverter, nil
}

// DumpThreadInfo implements DUMP_THREAD_INFO (§4.7). snap is filled in
// place; callers may reuse the same *ThreadSnapshot across calls.
func (t *Thread) DumpThreadInfo(snap *ThreadSnapshot) error {
	req := &request{cmd: cmdDumpThreadInfo, dump: &dumpThreadInfoRequest{snapshot: snap}}
	return t.post(req)
}

// StartAECDump implements AEC_DUMP with start=true; fd is a caller-owned
// file descriptor (closed by the caller once stopped).
func (t *Thread) StartAECDump(streamID int, fd int) error {
	req := &request{cmd: cmdAECDump, aecDump: &aecDumpRequest{streamID: streamID, start: true, fd: fd}}
	if err := t.post(req); err != nil {
		return err
	}
	return wireError(req.status)
}

// StopAECDump implements AEC_DUMP with start=false.
func (t *Thread) StopAECDump(streamID int) error {
	req := &request{cmd: cmdAECDump, aecDump: &aecDumpRequest{streamID: streamID, start: false}}
	if err := t.post(req); err != nil {
		return err
	}
	return wireError(req.status)
}

// AddCallback registers an external fd callback (§4.5). See
// addCallbackRequest for why this crosses the command channel even though
// it has no row in the spec's transcribed wire table.
func (t *Thread) AddCallback(fd int, dir CallbackDirection, fn Callback, data any) error {
	req := &request{cmd: cmdAddCallback, addCB: &addCallbackRequest{fd: fd, dir: dir, fn: fn, data: data}}
	return t.post(req)
}

// RemoveCallback implements REMOVE_CALLBACK.
func (t *Thread) RemoveCallback(fd int) error {
	req := &request{cmd: cmdRemoveCallback, removeCB: &removeCallbackRequest{fd: fd}}
	if err := t.post(req); err != nil {
		return err
	}
	return wireError(req.status)
}

// wireError turns a wire status code back into a Go error, nil for errOK.
func wireError(status int32) error {
	switch status {
	case errOK:
		return nil
	case errEINVAL:
		return errInvalid
	case errEEXIST:
		return errExist
	case errENOMEM:
		return errNoMem
	case errEPIPE:
		return errors.New("EPIPE")
	default:
		return errors.Errorf("audiothread: unrecognized status %d", status)
	}
}
