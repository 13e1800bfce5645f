package errors

import (
	"errors"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// Classify turns a raw read/write/accept error into a [TransportError].
// It returns nil for a nil err and passes existing TransportErrors
// through untouched.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}

	switch {
	case errors.Is(err, ErrWouldBlock),
		errors.Is(err, unix.EAGAIN),
		errors.Is(err, unix.EWOULDBLOCK):
		return &TransportError{Op: op, Kind: TransportWouldBlock, Err: ErrWouldBlock}

	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, unix.ECONNRESET),
		errors.Is(err, unix.ECONNABORTED),
		errors.Is(err, unix.EPIPE):
		return &TransportError{Op: op, Kind: TransportReset, Err: err}
	}

	out := &TransportError{Op: op, Kind: TransportOther, Err: err}
	var errno unix.Errno
	if errors.As(err, &errno) {
		out.Errno = int(errno)
	}
	return out
}
