// Package framer turns a byte stream into discrete messages.
//
// The default framing is the legacy chunk heuristic: the sender writes
// the payload as is and the receiver reads fixed-size chunks until one
// comes back short.  There is no header and no length on the wire.
// LengthPrefixed is an explicit alternative for deployments that do not
// need compatibility with existing peers.
package framer

import (
	"fmt"
	"io"
	"strings"

	rcerr "gorc/internal/errors"
)

// DefaultMaxMessage bounds how much a single message may accumulate
// before the session is dropped.
const DefaultMaxMessage = 16 << 20

// Framer reads and writes whole messages on one connection.  A Framer
// is owned by a single session and is not safe for concurrent use.
type Framer interface {
	// ReadMessage returns the next complete message.  When the
	// underlying handle has no more data yet it returns an error for
	// which errors.IsWouldBlock is true; bytes read so far are kept
	// for the next call.
	ReadMessage() ([]byte, error)

	// WriteMessage writes payload in full, retrying short writes.
	WriteMessage(payload []byte) error

	// Buffered reports how many received bytes are held back for the
	// next ReadMessage.
	Buffered() int
}

// Kind selects a framing.
type Kind int

const (
	KindChunked Kind = iota
	KindLength
)

func (k Kind) String() string {
	switch k {
	case KindChunked:
		return "chunked"
	case KindLength:
		return "length"
	default:
		return "unknown"
	}
}

// ParseKind accepts "chunked" or "length".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "chunked", "chunk":
		return KindChunked, nil
	case "length", "length-prefixed":
		return KindLength, nil
	default:
		return 0, fmt.Errorf("unknown framing %q (want chunked or length)", s)
	}
}

// New returns a framer of the given kind over rw.  chunkSize is the
// read unit C; non-positive values select the default.
func New(kind Kind, rw io.ReadWriter, chunkSize int) Framer {
	if kind == KindLength {
		return NewLengthPrefixed(rw, chunkSize)
	}
	return NewChunked(rw, chunkSize)
}

// writeFull writes p completely, looping over short writes.
func writeFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		p = p[n:]
		if err != nil {
			return rcerr.Classify("write", err)
		}
		if n == 0 {
			return rcerr.Classify("write", io.ErrShortWrite)
		}
	}
	return nil
}

func oversize(n, limit int) error {
	return &rcerr.ProtocolError{
		Kind:   rcerr.ProtocolOversize,
		Detail: fmt.Sprintf("%d bytes exceeds limit of %d", n, limit),
	}
}
