package framer

import (
	"io"

	rcerr "gorc/internal/errors"
	"gorc/util"
)

// Chunked implements the short-read message boundary heuristic.
//
// A message ends at the first read that returns fewer than Size bytes.
// Known limitation: a payload whose length is an exact multiple of
// Size never produces that short read, so the message only completes
// when more data arrives (which then becomes part of it).  On a
// non-blocking handle the reader reports would-block and keeps the
// chunks it already has.
type Chunked struct {
	rw      io.ReadWriter
	size    int
	max     int
	pending []byte
}

// NewChunked returns a chunk framer reading size-byte chunks.
func NewChunked(rw io.ReadWriter, size int) *Chunked {
	if size <= 0 {
		size = util.DefaultChunkSize
	}
	return &Chunked{rw: rw, size: size, max: DefaultMaxMessage}
}

// ChunkSize returns C.
func (f *Chunked) ChunkSize() int { return f.size }

// Pending returns the number of bytes accumulated for an unfinished
// message.
func (f *Chunked) Pending() int { return len(f.pending) }

// Buffered implements [Framer].  An unfinished chunked message needs
// more input, so it never counts as readable data.
func (f *Chunked) Buffered() int { return 0 }

// ReadMessage implements [Framer].
func (f *Chunked) ReadMessage() ([]byte, error) {
	buf := util.GetChunk(f.size)
	defer util.PutChunk(buf)

	for {
		n, err := f.rw.Read(*buf)
		if n > 0 {
			f.pending = append(f.pending, (*buf)[:n]...)
			if len(f.pending) > f.max {
				size := len(f.pending)
				f.pending = nil
				return nil, oversize(size, f.max)
			}
			if n < f.size {
				msg := f.pending
				f.pending = nil
				return msg, nil
			}
		}

		if err != nil {
			classified := rcerr.Classify("read", err)
			if !rcerr.IsWouldBlock(classified) {
				f.pending = nil
			}
			return nil, classified
		}
		if n == 0 {
			// A zero-length read without error made no progress.
			return nil, rcerr.Classify("read", rcerr.ErrWouldBlock)
		}
	}
}

// WriteMessage implements [Framer].  The payload goes out unmodified.
func (f *Chunked) WriteMessage(payload []byte) error {
	return writeFull(f.rw, payload)
}
