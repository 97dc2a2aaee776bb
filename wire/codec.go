// Package wire implements the daemon's framed byte-stream codec: either
// length-prefixed or newline-terminated JSON values over a single
// connection, chosen once per connection and never mixed.
package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	hamrerrors "github.com/hamr-launcher/hamrd/errors"
)

// MaxFrameSize is the hard ceiling on a single frame; larger frames are a
// protocol error and close the connection.
const MaxFrameSize = 16 * 1024 * 1024

// Framing selects the wire framing style for a connection.
type Framing int

const (
	// LengthPrefixed frames payloads with a 4-byte big-endian length.
	LengthPrefixed Framing = iota
	// LFTerminated frames payloads with a trailing '\n'; payloads must not
	// contain a raw, un-escaped newline (JSON encoding already guarantees
	// this for valid UTF-8 JSON values).
	LFTerminated
)

// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize.
var ErrFrameTooLarge = hamrerrors.New("wire: frame exceeds maximum size")

// Reader reads whole frames off a connection, buffering partial reads until
// a complete frame is available.
type Reader struct {
	framing Framing
	br      *bufio.Reader
}

// NewReader constructs a frame Reader for the given framing style.
func NewReader(r io.Reader, framing Framing) *Reader {
	return &Reader{framing: framing, br: bufio.NewReaderSize(r, 4096)}
}

// ReadFrame returns the next complete frame's payload bytes, or an error.
// io.EOF is returned verbatim when the peer closed the connection cleanly
// between frames.
func (r *Reader) ReadFrame() ([]byte, error) {
	switch r.framing {
	case LengthPrefixed:
		return r.readLengthPrefixed()
	default:
		return r.readLFTerminated()
	}
}

func (r *Reader) readLengthPrefixed() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.br, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *Reader) readLFTerminated() ([]byte, error) {
	line, err := r.br.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) == 0 {
			return nil, io.EOF
		}
		if err != io.EOF {
			return nil, err
		}
	}
	if len(line) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	return bytes.TrimRight(line, "\n"), nil
}

// Writer writes whole frames to a connection. Writer itself does not block
// on slow peers; callers are expected to run it from a dedicated
// single-consumer goroutine draining a per-session outbound queue (see
// package session), which is where back-pressure is enforced.
type Writer struct {
	framing Framing
	w       io.Writer
}

// NewWriter constructs a frame Writer for the given framing style.
func NewWriter(w io.Writer, framing Framing) *Writer {
	return &Writer{framing: framing, w: w}
}

// WriteFrame writes a single payload as one frame.
func (w *Writer) WriteFrame(payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	switch w.framing {
	case LengthPrefixed:
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
		if _, err := w.w.Write(lenBuf[:]); err != nil {
			return err
		}
		_, err := w.w.Write(payload)
		return err
	default:
		buf := make([]byte, 0, len(payload)+1)
		buf = append(buf, payload...)
		buf = append(buf, '\n')
		_, err := w.w.Write(buf)
		return err
	}
}
