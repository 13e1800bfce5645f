// Package registry maps reactor tokens to live sessions.
//
// Tokens are handed out from a counter starting at 1 that only ever
// moves forward, so a token that has been removed is never seen again.
// The registry is owned by the reactor goroutine and is not safe for
// concurrent use.
package registry

import (
	"context"
	"fmt"

	rcerr "gorc/internal/errors"
	"gorc/internal/metrics"
	"gorc/internal/reactor"
	"gorc/internal/session"
	"gorc/internal/transport"
	"gorc/util"
)

// Watcher is the subset of the poller the registry drives.
type Watcher interface {
	Add(fd int, token uint64) error
	Modify(fd int, token uint64, readable bool) error
	Remove(fd int) error
}

// Registry owns every session of one mode.
type Registry struct {
	ctx      context.Context
	watcher  Watcher
	opts     session.Options
	logger   *util.Logger
	metrics  *metrics.Collector
	sessions map[uint64]*session.Session
	next     uint64
}

// New returns an empty registry.  Session contexts derive from ctx.
func New(ctx context.Context, w Watcher, opts session.Options, logger *util.Logger, m *metrics.Collector) *Registry {
	return &Registry{
		ctx:      ctx,
		watcher:  w,
		opts:     opts,
		logger:   logger,
		metrics:  m,
		sessions: make(map[uint64]*session.Session),
		next:     1,
	}
}

// Acceptor yields pending inbound connections.  *transport.Listener
// is the production implementation.
type Acceptor interface {
	Accept() (*transport.Conn, error)
}

// Accept takes one pending connection from l and registers it.  When
// nothing is pending the error satisfies errors.IsWouldBlock.
func (r *Registry) Accept(l Acceptor) (uint64, error) {
	conn, err := l.Accept()
	if err != nil {
		return 0, err
	}
	token, err := r.Add(conn, session.Inbound)
	if err != nil {
		conn.Close()
		return 0, err
	}
	return token, nil
}

// Add registers an established connection for read readiness and
// returns its token.  The session starts in AwaitingMessage.
func (r *Registry) Add(conn session.Conn, role session.Role) (uint64, error) {
	if r.next == reactor.WakerToken {
		return 0, fmt.Errorf("registry: token space exhausted")
	}
	token := r.next
	r.next++

	s := session.New(r.ctx, token, role, conn, r.opts, r.logger)
	if err := r.watcher.Add(conn.Fd(), token); err != nil {
		s.Close() //nolint:errcheck
		return 0, fmt.Errorf("register session %d: %w", token, err)
	}
	if err := s.Transition(session.AwaitingMessage); err != nil {
		return 0, err
	}

	r.sessions[token] = s
	r.metrics.SessionOpened()
	s.Logger().Verbose("%s connection from %s", role, s.RemoteAddr())
	return token, nil
}

// Get resolves token.  Unknown and removed tokens return nil.
func (r *Registry) Get(token uint64) *session.Session {
	return r.sessions[token]
}

// Remove deregisters the session, shuts its handle down, closes it and
// cancels its context.  It reports whether token was registered;
// removing an unknown token does nothing.
func (r *Registry) Remove(token uint64) bool {
	s, ok := r.sessions[token]
	if !ok {
		return false
	}
	delete(r.sessions, token)

	if conn := s.Conn(); conn != nil {
		if err := r.watcher.Remove(conn.Fd()); err != nil {
			s.Logger().Debug("deregister: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		s.Logger().Debug("close: %v", err)
	}
	r.metrics.SessionClosed()
	s.Logger().Verbose("disconnected")
	return true
}

// Pause drops read interest for token while its command runs.
func (r *Registry) Pause(token uint64) error {
	return r.setInterest(token, false)
}

// Resume restores read interest for token.
func (r *Registry) Resume(token uint64) error {
	return r.setInterest(token, true)
}

func (r *Registry) setInterest(token uint64, readable bool) error {
	s := r.sessions[token]
	if s == nil {
		return rcerr.ErrSessionClosed
	}
	conn := s.Conn()
	if conn == nil {
		return rcerr.ErrSessionClosed
	}
	return r.watcher.Modify(conn.Fd(), token, readable)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int { return len(r.sessions) }

// NextToken returns the token the next session will receive.
func (r *Registry) NextToken() uint64 { return r.next }

// CloseAll removes every session.
func (r *Registry) CloseAll() {
	for token := range r.sessions {
		r.Remove(token)
	}
}
