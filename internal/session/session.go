// Package session represents a single connection lifecycle: the
// token, the exclusively owned socket handle, its framer and the
// protocol state.
//
// The handle is valid exactly while the state is not Closed.  Closed
// is terminal.
package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	rcerr "gorc/internal/errors"
	"gorc/internal/framer"
	"gorc/util"
)

// Role tells how the connection was established.
type Role int

const (
	// Inbound sessions were accepted from the listener.
	Inbound Role = iota
	// Outbound sessions were dialed (callback and console).
	Outbound
)

func (r Role) String() string {
	if r == Outbound {
		return "outbound"
	}
	return "inbound"
}

// State is the protocol state of a session.
type State int

const (
	Established State = iota
	AwaitingMessage
	Dispatching
	Replying
	Closed
)

func (s State) String() string {
	switch s {
	case Established:
		return "established"
	case AwaitingMessage:
		return "awaiting-message"
	case Dispatching:
		return "dispatching"
	case Replying:
		return "replying"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

var transitions = map[State][]State{
	Established:     {AwaitingMessage, Closed},
	AwaitingMessage: {Dispatching, Replying, Closed},
	Dispatching:     {Replying, Closed},
	Replying:        {AwaitingMessage, Closed},
}

// Conn is the socket handle a session owns.
type Conn interface {
	io.ReadWriter
	Fd() int
	RemoteAddr() net.Addr
	Shutdown() error
	Close() error
}

// Options configures the framer of a new session.
type Options struct {
	Framing   framer.Kind
	ChunkSize int
}

// Session encapsulates the runtime context for a single connection.
type Session struct {
	Token  uint64
	Role   Role
	Opened time.Time

	conn   Conn
	framer framer.Framer
	state  State
	ctx    context.Context
	cancel context.CancelFunc
	logger *util.Logger
}

// New creates a session in the Established state.  Its context is
// derived from parent and cancelled by Close.
func New(parent context.Context, token uint64, role Role, conn Conn, opts Options, logger *util.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		Token:  token,
		Role:   role,
		Opened: time.Now(),
		conn:   conn,
		framer: framer.New(opts.Framing, conn, opts.ChunkSize),
		state:  Established,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With(fmt.Sprintf("session %d", token)),
	}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Transition moves the session to next.  Staying in the same state is
// allowed; leaving Closed or skipping a step is not.
func (s *Session) Transition(next State) error {
	if next == s.state {
		return nil
	}
	if s.state == Closed {
		return fmt.Errorf("session %d: %s -> %s: %w", s.Token, s.state, next, rcerr.ErrSessionClosed)
	}
	for _, allowed := range transitions[s.state] {
		if allowed == next {
			s.logger.Debug("%s -> %s", s.state, next)
			s.state = next
			return nil
		}
	}
	return fmt.Errorf("session %d: invalid transition %s -> %s", s.Token, s.state, next)
}

// Conn returns the socket handle, or nil once the session is closed.
func (s *Session) Conn() Conn {
	if s.state == Closed {
		return nil
	}
	return s.conn
}

// Framer returns the session's message framer.
func (s *Session) Framer() framer.Framer { return s.framer }

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context { return s.ctx }

// Logger returns a logger scoped to this session.
func (s *Session) Logger() *util.Logger { return s.logger }

// RemoteAddr returns the peer address as text.
func (s *Session) RemoteAddr() string {
	if a := s.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return "unknown"
}

// Close shuts the connection down in both directions, releases the
// handle and cancels the session context.  Repeated calls are no-ops.
func (s *Session) Close() error {
	if s.state == Closed {
		return nil
	}
	s.logger.Debug("%s -> %s", s.state, Closed)
	s.state = Closed
	s.cancel()
	shutErr := s.conn.Shutdown()
	return rcerr.Join(shutErr, s.conn.Close())
}
