package thread

import (
	"io"
	"os"

	"github.com/golang/snappy"
	"golang.org/x/sys/unix"
)

// aecDumpState is one active AEC_DUMP recording: a caller-owned fd wrapped
// in a snappy writer, the same compress-on-the-wire shape as the teacher's
// CompStream (std/comp.go), here applied to a raw dump file instead of a
// net.Conn.
type aecDumpState struct {
	file *os.File
	w    *snappy.Writer
}

// handleAECDump implements AEC_DUMP (§4.5's "audio-processing module side
// channel"): start wraps fd in a snappy writer keyed by stream, stop flushes
// and closes it. fd is caller-owned; StartAECDump's caller keeps it open
// until StopAECDump returns.
func (t *Thread) handleAECDump(req *aecDumpRequest) error {
	if req.start {
		if _, exists := t.aecDumps[req.streamID]; exists {
			return errExist
		}
		// Write through a duplicate so the *os.File (and its finalizer)
		// owns only the dup, never the caller's fd.
		dup, err := unix.Dup(req.fd)
		if err != nil {
			return err
		}
		f := os.NewFile(uintptr(dup), "aecdump")
		t.aecDumps[req.streamID] = &aecDumpState{
			file: f,
			w:    snappy.NewBufferedWriter(f),
		}
		return nil
	}

	st, ok := t.aecDumps[req.streamID]
	if !ok {
		return errInvalid
	}
	delete(t.aecDumps, req.streamID)
	err := st.w.Close()
	if cerr := st.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// AECWriter returns the active dump writer for a stream, or io.Discard if
// no AEC_DUMP is running for it. DevIO implementations call this while
// servicing a stream with an active APM to decide whether to mirror its
// processed frames out.
func (t *Thread) AECWriter(streamID int) io.Writer {
	if st, ok := t.aecDumps[streamID]; ok {
		return st.w
	}
	return io.Discard
}
