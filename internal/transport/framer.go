package transport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
)

// MaxMessageSize caps a single framed message. Lines beyond this are a
// framing fault: the boundary can no longer be trusted.
const MaxMessageSize = 10 * 1024 * 1024

// ErrFraming indicates the stream's message boundaries are broken. The
// connection cannot be recovered once this is returned.
var ErrFraming = errors.New("framing error")

// Framer converts the byte stream into discrete messages and back.
type Framer struct {
	r *bufio.Reader

	mu sync.Mutex // serializes writes; protects w
	w  io.Writer
}

// New creates a Framer over the given streams.
func New(r io.Reader, w io.Writer) *Framer {
	return &Framer{
		r: bufio.NewReaderSize(r, 64*1024),
		w: w,
	}
}

// ReadNext returns the next complete message, blocking until one full line
// is available. It returns io.EOF on clean end of stream and a wrapped
// ErrFraming when the stream ends mid-message or a message exceeds
// MaxMessageSize.
func (f *Framer) ReadNext() ([]byte, error) {
	var buf []byte
	for {
		chunk, err := f.r.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > MaxMessageSize {
			return nil, fmt.Errorf("%w: message exceeds %d bytes", ErrFraming, MaxMessageSize)
		}
		if err == nil {
			return trimLine(buf), nil
		}
		if err == bufio.ErrBufferFull {
			continue // partial line, keep buffering
		}
		if err == io.EOF {
			if len(buf) == 0 {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: stream ended before message terminator", ErrFraming)
		}
		return nil, err
	}
}

// Write emits one message followed by the line terminator. The message and
// terminator are written in a single call so concurrent writers never
// interleave.
func (f *Framer) Write(msg []byte) error {
	if bytes.IndexByte(msg, '\n') >= 0 {
		return fmt.Errorf("%w: message contains embedded newline", ErrFraming)
	}
	framed := make([]byte, 0, len(msg)+1)
	framed = append(framed, msg...)
	framed = append(framed, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.w.Write(framed)
	return err
}

// trimLine strips the trailing '\n' and an optional '\r' before it.
func trimLine(line []byte) []byte {
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
