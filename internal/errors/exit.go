package errors

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ── Exit codes ───────────────────────────────────────────────────────
//
// These values are a contract with existing deployments; the numbers
// follow the errno that historically triggered them where one exists.

const (
	ExitOK             = 0
	ExitGeneric        = 1
	ExitBindFailed     = 2   // listen failed for a reason other than EADDRINUSE
	ExitUsage          = 2   // conflicting options
	ExitPortInvalid    = 6   // port missing or out of range
	ExitAddressMissing = 7   // connect/callback address missing
	ExitAddressInvalid = 8   // address family / parse error
	ExitKilled         = 9   // kill verb received
	ExitConnectFailed  = 10  // outbound dial failed
	ExitPortInUse      = 98  // EADDRINUSE
	ExitConnReset      = 104 // ECONNRESET
	ExitNotConnected   = 107 // ENOTCONN
)

// Coder is implemented by errors that know their process exit code.
type Coder interface {
	ExitCode() int
}

// ExitError attaches a process exit code to an error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode implements [Coder].
func (e *ExitError) ExitCode() int { return e.Code }

// Exit wraps err with the given exit code.  A nil err still produces an
// ExitError so that ErrKilled-style terminations can carry a code.
func Exit(code int, err error) *ExitError {
	return &ExitError{Code: code, Err: err}
}

// CodeOf returns the exit code the process should terminate with for
// err.  nil maps to ExitOK.  A transport failure with a known errno
// exits with that errno; other unknown errors map to ExitGeneric.
func CodeOf(err error) int {
	if err == nil {
		return ExitOK
	}
	var c Coder
	if errors.As(err, &c) {
		return c.ExitCode()
	}
	switch {
	case errors.Is(err, ErrKilled):
		return ExitKilled
	case errors.Is(err, ErrNotConnected):
		return ExitNotConnected
	case IsReset(err):
		return ExitConnReset
	}
	var te *TransportError
	if errors.As(err, &te) && te.Kind == TransportOther && te.Errno > 0 && te.Errno < 256 {
		return te.Errno
	}
	return ExitGeneric
}

// ListenExit maps a failed bind/listen to its exit code.
func ListenExit(addr string, err error) *ExitError {
	code := ExitBindFailed
	switch {
	case errors.Is(err, unix.EADDRINUSE):
		code = ExitPortInUse
	case errors.Is(err, unix.EAFNOSUPPORT), errors.Is(err, unix.EADDRNOTAVAIL):
		code = ExitAddressInvalid
	}
	return Exit(code, fmt.Errorf("listen on %s: %w", addr, err))
}

// DialExit maps a failed outbound connection to its exit code.
func DialExit(addr string, err error) *ExitError {
	code := ExitConnectFailed
	if errors.Is(err, unix.EAFNOSUPPORT) {
		code = ExitAddressInvalid
	}
	return Exit(code, fmt.Errorf("connect to %s: %w", addr, err))
}
