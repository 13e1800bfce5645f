// Package controller implements the per-session protocol: read one
// message, classify it, run the command and write the reply.
package controller

import (
	"errors"
	"io"
	"strings"

	"gorc/internal/codec"
	rcerr "gorc/internal/errors"
	"gorc/internal/executor"
	"gorc/internal/metrics"
	"gorc/internal/reactor"
	"gorc/internal/registry"
	"gorc/internal/session"
	"gorc/util"
)

// Control verbs.  Matching is exact and case sensitive after trimming.
const (
	VerbKill = "kill"
	VerbQuit = "quit"
	VerbExit = "exit"
)

// Kind is the classification of a decoded message.
type Kind int

const (
	KindCommand Kind = iota
	KindEmpty
	KindQuit
	KindKill
)

// Classify trims text and decides what it asks for.  For commands it
// also returns the argv split on whitespace.
func Classify(text string) (Kind, []string) {
	line := strings.TrimSpace(text)
	switch line {
	case "":
		return KindEmpty, nil
	case VerbKill:
		return KindKill, nil
	case VerbQuit, VerbExit:
		return KindQuit, nil
	}
	return KindCommand, strings.Fields(line)
}

// Controller drives the sessions of one registry.  All methods must be
// called from the reactor goroutine.
type Controller struct {
	Registry *registry.Registry
	Codec    *codec.Codec
	Runner   *executor.Runner
	// Pool runs commands off the reactor goroutine.  When nil, commands
	// run inline and the reactor blocks until they exit.
	Pool    *executor.Pool
	Logger  *util.Logger
	Metrics *metrics.Collector

	// OnClose, when set, is told why a session was closed: nil for
	// quit/exit, the failure otherwise.
	OnClose func(token uint64, reason error)
}

// HandleEvent processes one session readiness event.  It returns
// errors.ErrKilled when the process must terminate; every other
// failure is confined to the session.
func (c *Controller) HandleEvent(ev reactor.Event) error {
	s := c.Registry.Get(ev.Token)
	if s == nil {
		c.Logger.Debug("event for unknown token %d", ev.Token)
		return nil
	}
	if ev.Hangup && s.State() == session.Dispatching {
		s.Logger().Verbose("peer hung up while a command was running")
		c.close(s, rcerr.Classify("read", io.EOF))
		return nil
	}
	return c.HandleReadable(ev.Token)
}

// HandleReadable reads and processes messages for token until the
// socket would block or the session leaves AwaitingMessage.
func (c *Controller) HandleReadable(token uint64) error {
	s := c.Registry.Get(token)
	if s == nil || s.State() != session.AwaitingMessage {
		return nil
	}

	for {
		msg, err := s.Framer().ReadMessage()
		if err != nil {
			c.absorb(s, err)
			return nil
		}
		c.Metrics.MessageReceived(len(msg))

		if err := c.handleMessage(s, msg); err != nil {
			return err
		}
		if s.State() != session.AwaitingMessage || s.Framer().Buffered() == 0 {
			return nil
		}
	}
}

func (c *Controller) handleMessage(s *session.Session, msg []byte) error {
	text, err := c.Codec.Decompress(msg)
	if err != nil {
		c.close(s, err)
		return nil
	}

	kind, argv := Classify(text)
	switch kind {
	case KindKill:
		s.Logger().Info("kill received from %s", s.RemoteAddr())
		return rcerr.ErrKilled
	case KindQuit:
		s.Logger().Verbose("%s requested disconnect", s.RemoteAddr())
		c.close(s, nil)
		return nil
	case KindEmpty:
		c.absorb(s, &rcerr.ProtocolError{Kind: rcerr.ProtocolEmptyMessage})
		return nil
	}

	if err := s.Transition(session.Dispatching); err != nil {
		c.close(s, err)
		return nil
	}
	c.Metrics.CommandExecuted()
	s.Logger().Verbose("exec %q", argv)

	if c.Pool == nil {
		res, err := c.Runner.Run(s.Context(), argv)
		c.reply(s, res, err)
		return nil
	}

	if err := c.Registry.Pause(s.Token); err != nil {
		c.close(s, err)
		return nil
	}
	c.Pool.Submit(executor.Job{Token: s.Token, Argv: argv, Ctx: s.Context()})
	return nil
}

// HandleCompletion delivers a finished command to its session.  A
// completion whose session is gone is dropped.
func (c *Controller) HandleCompletion(done executor.Completion) error {
	s := c.Registry.Get(done.Token)
	if s == nil || s.State() != session.Dispatching {
		c.Logger.Debug("dropping completion for closed session %d", done.Token)
		return nil
	}
	s.Logger().Debug("command finished in %s", done.Elapsed)

	c.reply(s, done.Result, done.Err)
	if s.State() != session.AwaitingMessage {
		return nil
	}
	if err := c.Registry.Resume(s.Token); err != nil {
		c.close(s, err)
		return nil
	}
	if s.Framer().Buffered() > 0 {
		return c.HandleReadable(s.Token)
	}
	return nil
}

// reply compresses the command outcome, writes it and returns the
// session to AwaitingMessage.
func (c *Controller) reply(s *session.Session, res executor.Result, runErr error) {
	if err := s.Transition(session.Replying); err != nil {
		c.close(s, err)
		return
	}

	out := res.Output
	switch {
	case runErr != nil:
		var ee *rcerr.ExecError
		if errors.As(runErr, &ee) {
			c.Metrics.SpawnFailure()
			out = []byte(ee.UserText())
		} else {
			out = []byte(runErr.Error())
		}
		s.Logger().Verbose("%v", runErr)
	case res.Detail != nil:
		s.Logger().Verbose("%v", res.Detail)
	}

	payload, err := c.Codec.CompressBytes(out)
	if err != nil {
		c.close(s, err)
		return
	}
	if err := s.Framer().WriteMessage(payload); err != nil {
		c.close(s, err)
		return
	}
	c.Metrics.MessageSent(len(payload))
	s.Logger().Debug("replied %d bytes (%d compressed)", len(out), len(payload))

	if err := s.Transition(session.AwaitingMessage); err != nil {
		c.close(s, err)
	}
}

// absorb closes s when err ends the session and otherwise drops it.
func (c *Controller) absorb(s *session.Session, err error) {
	if rcerr.IsSessionTerminal(err) {
		c.close(s, err)
		return
	}
	if !rcerr.IsWouldBlock(err) {
		s.Logger().Debug("ignored: %v", err)
	}
}

// close removes the session.  reason is nil for a requested disconnect.
func (c *Controller) close(s *session.Session, reason error) {
	switch {
	case reason == nil:
	case rcerr.IsReset(reason):
		s.Logger().Verbose("connection closed: %v", reason)
	default:
		s.Logger().Warn("closing: %v", reason)
		c.Metrics.RecordError(reason.Error())
	}
	c.Registry.Remove(s.Token)
	if c.OnClose != nil {
		c.OnClose(s.Token, reason)
	}
}
