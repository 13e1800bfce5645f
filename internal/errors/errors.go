// Package errors provides the error taxonomy for gorc.
//
// Every failure the protocol engine can see falls into one of a few
// structured kinds (transport, codec, exec, protocol, config).  The kind
// decides the blast radius: a session, the current message exchange, or
// nothing at all.  [ExitError] carries the process exit code that the
// single-session modes report to their caller.
package errors

import (
	"errors"
	"fmt"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	// ErrWouldBlock is reported by non-blocking handles that have no
	// data (or buffer space) yet.  It is never a failure.
	ErrWouldBlock = errors.New("operation would block")

	// ErrKilled is returned up the stack when the kill verb arrives.
	ErrKilled = errors.New("kill verb received")

	// ErrSessionClosed is returned when I/O is attempted on a session
	// whose handle has already been released.
	ErrSessionClosed = errors.New("session is closed")

	// ErrNotConnected mirrors ENOTCONN for console peers that vanished
	// before the prompt could be built.
	ErrNotConnected = errors.New("not connected")
)

// SpawnFailedText is the user-visible reply when a command cannot be
// started.  The OS error is deliberately not forwarded.
const SpawnFailedText = "No such file or directory"

// ── Transport ────────────────────────────────────────────────────────

// TransportKind classifies a socket failure.
type TransportKind int

const (
	// TransportReset covers peer resets, broken pipes and EOF: the
	// session is over.
	TransportReset TransportKind = iota
	// TransportWouldBlock means "no data yet"; wait for readiness.
	TransportWouldBlock
	// TransportOther is any other OS failure, fatal for the session
	// only.
	TransportOther
)

func (k TransportKind) String() string {
	switch k {
	case TransportReset:
		return "reset"
	case TransportWouldBlock:
		return "would block"
	case TransportOther:
		return "other"
	default:
		return "unknown"
	}
}

// TransportError represents a failed read, write, accept or dial.
type TransportError struct {
	Op    string // "read", "write", "accept", "dial", "listen"
	Kind  TransportKind
	Errno int // OS error number for TransportOther, 0 if unknown
	Err   error
}

func (e *TransportError) Error() string {
	if e.Kind == TransportOther && e.Errno != 0 {
		return fmt.Sprintf("%s: %v (errno %d)", e.Op, e.Err, e.Errno)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Terminal reports whether the session carrying this error must close.
func (e *TransportError) Terminal() bool { return e.Kind != TransportWouldBlock }

// ── Codec ────────────────────────────────────────────────────────────

// CodecError reports a payload that is not a valid compressed stream of
// UTF-8 text.  It ends the session: the peer sent unparseable data.
type CodecError struct {
	Op  string // "compress" or "decompress"
	Err error
}

func (e *CodecError) Error() string { return fmt.Sprintf("codec %s: corrupt payload: %v", e.Op, e.Err) }

func (e *CodecError) Unwrap() error { return e.Err }

// ── Exec ─────────────────────────────────────────────────────────────

// ExecKind classifies a command failure.
type ExecKind int

const (
	// ExecSpawnFailed means the process never started.
	ExecSpawnFailed ExecKind = iota
	// ExecNonZeroExit means the process ran and reported failure.
	ExecNonZeroExit
)

// ExecError describes a command that could not run or did not succeed.
type ExecError struct {
	Kind     ExecKind
	Program  string
	ExitCode int
	Err      error
}

func (e *ExecError) Error() string {
	switch e.Kind {
	case ExecSpawnFailed:
		return fmt.Sprintf("spawn %q: %v", e.Program, e.Err)
	default:
		return fmt.Sprintf("%q exited with status %d", e.Program, e.ExitCode)
	}
}

func (e *ExecError) Unwrap() error { return e.Err }

// UserText is what the remote side gets to see.
func (e *ExecError) UserText() string {
	if e.Kind == ExecSpawnFailed {
		return SpawnFailedText
	}
	return e.Error()
}

// ── Protocol ─────────────────────────────────────────────────────────

// ProtocolKind classifies a well-formed but unusable message.
type ProtocolKind int

const (
	// ProtocolEmptyMessage is a whitespace-only message; it is absorbed
	// silently.
	ProtocolEmptyMessage ProtocolKind = iota
	// ProtocolOversize is a length-prefixed frame above the limit.
	ProtocolOversize
)

// ProtocolError describes a message the controller will not act on.
type ProtocolError struct {
	Kind   ProtocolKind
	Detail string
}

func (e *ProtocolError) Error() string {
	switch e.Kind {
	case ProtocolEmptyMessage:
		return "protocol: empty message"
	case ProtocolOversize:
		return "protocol: frame too large: " + e.Detail
	default:
		return "protocol: " + e.Detail
	}
}

// ── Config ───────────────────────────────────────────────────────────

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
	Code    int         // exit code reported for this failure (0 = ExitGeneric)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ExitCode implements [Coder].
func (e *ConfigError) ExitCode() int {
	if e.Code == 0 {
		return ExitGeneric
	}
	return e.Code
}

// ── Classification helpers ───────────────────────────────────────────

// IsWouldBlock reports whether err only means "try again on the next
// readiness event".
func IsWouldBlock(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrWouldBlock) {
		return true
	}
	var te *TransportError
	return errors.As(err, &te) && te.Kind == TransportWouldBlock
}

// IsReset reports whether err is a peer reset / closed connection.
func IsReset(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == TransportReset
}

// IsSessionTerminal reports whether err must close the session that
// produced it.  Would-block, empty messages and spawn failures are
// recoverable; everything else (transport, codec, oversize) is not.
func IsSessionTerminal(err error) bool {
	if err == nil || errors.Is(err, ErrWouldBlock) {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Terminal()
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Kind != ProtocolEmptyMessage
	}
	var ee *ExecError
	if errors.As(err, &ee) {
		return false
	}
	return true
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use gorc/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
