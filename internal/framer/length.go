package framer

import (
	"encoding/binary"
	"errors"
	"io"

	rcerr "gorc/internal/errors"
	"gorc/util"
)

const headerLen = 4

// LengthPrefixed frames each message as a 4-byte big-endian length
// followed by the payload.  Partial frames survive would-block and
// several frames arriving in one read are split correctly.
type LengthPrefixed struct {
	rw   io.ReadWriter
	size int
	max  int
	buf  []byte
}

// NewLengthPrefixed returns a length-prefix framer that reads in
// chunkSize units.
func NewLengthPrefixed(rw io.ReadWriter, chunkSize int) *LengthPrefixed {
	if chunkSize <= 0 {
		chunkSize = util.DefaultChunkSize
	}
	return &LengthPrefixed{rw: rw, size: chunkSize, max: DefaultMaxMessage}
}

// Buffered implements [Framer].
func (f *LengthPrefixed) Buffered() int { return len(f.buf) }

// ReadMessage implements [Framer].
func (f *LengthPrefixed) ReadMessage() ([]byte, error) {
	chunk := util.GetChunk(f.size)
	defer util.PutChunk(chunk)

	for {
		msg, ok, err := f.next()
		if err != nil || ok {
			return msg, err
		}

		n, err := f.rw.Read(*chunk)
		if n > 0 {
			f.buf = append(f.buf, (*chunk)[:n]...)
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(f.buf) > 0 {
				err = io.ErrUnexpectedEOF
			}
			classified := rcerr.Classify("read", err)
			if !rcerr.IsWouldBlock(classified) {
				f.buf = nil
			}
			return nil, classified
		}
		return nil, rcerr.Classify("read", rcerr.ErrWouldBlock)
	}
}

// next extracts one complete frame from the buffer, if present.
func (f *LengthPrefixed) next() ([]byte, bool, error) {
	if len(f.buf) < headerLen {
		return nil, false, nil
	}
	n := int(binary.BigEndian.Uint32(f.buf[:headerLen]))
	if n > f.max {
		f.buf = nil
		return nil, false, oversize(n, f.max)
	}
	if len(f.buf) < headerLen+n {
		return nil, false, nil
	}

	msg := make([]byte, n)
	copy(msg, f.buf[headerLen:headerLen+n])
	rest := f.buf[headerLen+n:]
	if len(rest) == 0 {
		f.buf = nil
	} else {
		f.buf = append([]byte(nil), rest...)
	}
	return msg, true, nil
}

// WriteMessage implements [Framer].
func (f *LengthPrefixed) WriteMessage(payload []byte) error {
	if len(payload) > f.max {
		return oversize(len(payload), f.max)
	}
	frame := make([]byte, headerLen+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[headerLen:], payload)
	return writeFull(f.rw, frame)
}
