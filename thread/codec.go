package thread

// Message framing for the command pipe: a fixed-width length prefix, a
// command tag, and a type-specific payload. Mirrors the header shape of
// smux's Frame (ver|cmd|length|sid) but with the length leading, since the
// reader must know how much more to read before it can see the tag.

import (
	"encoding/binary"
	"io"
	"syscall"

	"github.com/pkg/errors"
)

const (
	sizeOfLength = 2 // uint16, little endian
	sizeOfCmd    = 1
	headerSize   = sizeOfLength + sizeOfCmd

	// maxMessageSize bounds the read buffer; 256 bytes suffices for every
	// command payload defined in commands.go.
	maxMessageSize = 256
)

// envelope is the decoded form of one command-pipe message.
type envelope struct {
	cmd     commandTag
	payload []byte
}

// encodeMessage frames cmd+payload as length-prefixed bytes ready to write
// to the to-thread pipe. length counts everything after the length field.
func encodeMessage(cmd commandTag, payload []byte) ([]byte, error) {
	total := headerSize + len(payload)
	if total-sizeOfLength > maxMessageSize {
		return nil, errors.Errorf("encodeMessage: payload too large (%d bytes)", len(payload))
	}
	buf := make([]byte, total)
	binary.LittleEndian.PutUint16(buf[0:], uint16(total-sizeOfLength))
	buf[sizeOfLength] = byte(cmd)
	copy(buf[headerSize:], payload)
	return buf, nil
}

// readMessage reads exactly one framed message from r. Partial reads are
// retried transparently; EINTR is swallowed; a zero-byte read (EOF) is
// reported as io.ErrUnexpectedEOF so the caller can map it to -EPIPE.
func readMessage(r io.Reader) (envelope, error) {
	var lenBuf [sizeOfLength]byte
	if err := readFull(r, lenBuf[:]); err != nil {
		return envelope{}, err
	}
	rest := binary.LittleEndian.Uint16(lenBuf[:])
	if int(rest) < sizeOfCmd {
		return envelope{}, errors.New("readMessage: length prefix shorter than header")
	}
	if int(rest) > maxMessageSize {
		return envelope{}, errors.Errorf("readMessage: message exceeds max size (%d bytes)", rest)
	}
	body := make([]byte, rest)
	if err := readFull(r, body); err != nil {
		return envelope{}, err
	}
	return envelope{cmd: commandTag(body[0]), payload: body[sizeOfCmd:]}, nil
}

// readFull retries short reads and EINTR, and turns EOF mid-message into
// io.ErrUnexpectedEOF. A zero-byte read on an empty buf request is not
// attempted (n == 0 callers never happen in this package).
func readFull(r io.Reader, buf []byte) error {
	read := 0
	zeroReads := 0
	for read < len(buf) {
		n, err := r.Read(buf[read:])
		if n > 0 {
			read += n
			zeroReads = 0
			continue
		}
		if err == nil {
			// zero-byte, no-error read: treat as transient and retry once
			// rather than spin; real fds never do this, but don't busy-loop.
			zeroReads++
			if zeroReads > 1 {
				return errors.Wrap(io.ErrUnexpectedEOF, "readFull")
			}
			continue
		}
		if errors.Is(err, syscall.EINTR) {
			continue
		}
		if err == io.EOF {
			return errors.Wrap(io.ErrUnexpectedEOF, "readFull")
		}
		return errors.Wrap(err, "readFull")
	}
	return nil
}
