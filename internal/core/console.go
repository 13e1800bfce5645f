package core

import (
	"context"
	"io"
	"net"
	"os"

	"gorc/internal/codec"
	"gorc/internal/console"
	rcerr "gorc/internal/errors"
	"gorc/internal/metrics"
	"gorc/internal/reactor"
	"gorc/internal/retry"
	"gorc/internal/session"
	"gorc/internal/transport"
	"gorc/util"
)

// ConsoleMode is the operator side.  It either connects to a listening
// agent or, with Listen set, waits for one agent to call back, then
// runs the interactive line loop over that connection.
type ConsoleMode struct {
	Listen  bool
	Address string
	Dialer  transport.Dialer
	Backoff *retry.Backoff
	Session session.Options
	Codec   *codec.Codec
	Logger  *util.Logger
	Metrics *metrics.Collector

	// Source defaults to a terminal or plain reader over os.Stdin that
	// prints to Stdout.
	Source console.Source
	Stdout io.Writer

	// Ready, when set, is called with the bound address in listen mode.
	Ready func(addr net.Addr)
}

func (m *ConsoleMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run establishes the connection and hands it to the line loop.
func (m *ConsoleMode) Run(ctx context.Context) error {
	loop, err := reactor.NewLoop(m.Logger)
	if err != nil {
		return err
	}
	defer loop.Close()

	var conn *transport.Conn
	if m.Listen {
		conn, err = m.acceptOne(ctx, loop)
	} else {
		defer m.Dialer.Close()
		conn, err = dial(ctx, m.Dialer, m.Backoff, m.Address, m.Logger)
	}
	if err != nil {
		return finish(err)
	}

	client, err := console.NewClient(conn, loop, m.Session, m.Codec, m.Logger, m.Metrics)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	src := m.Source
	if src == nil {
		src, err = console.Open(os.Stdin, m.stdout())
		if err != nil {
			return err
		}
	}
	defer src.Close()

	err = client.Run(ctx, src)
	logSummary(m.Logger, m.Metrics)
	return finish(err)
}

// acceptOne listens on Address until the first agent connects, then
// stops listening.
func (m *ConsoleMode) acceptOne(ctx context.Context, loop *reactor.Loop) (*transport.Conn, error) {
	ln, err := transport.Listen("tcp", m.Address)
	if err != nil {
		return nil, rcerr.ListenExit(m.Address, err)
	}
	defer ln.Close()

	if err := loop.Poller().Add(ln.Fd(), reactor.ListenerToken); err != nil {
		return nil, err
	}
	defer loop.Poller().Remove(ln.Fd()) //nolint:errcheck

	m.Logger.Info("waiting for an agent on %s", ln.Addr())
	if m.Ready != nil {
		m.Ready(ln.Addr())
	}

	h := &acceptHandler{ln: ln}
	if err := loop.Run(ctx, h); err != nil {
		return nil, err
	}
	m.Logger.Verbose("agent connected from %s", h.conn.RemoteAddr())
	return h.conn, nil
}

type acceptHandler struct {
	ln   *transport.Listener
	conn *transport.Conn
}

func (h *acceptHandler) HandleEvent(ev reactor.Event) error {
	if ev.Token != reactor.ListenerToken {
		return nil
	}
	conn, err := h.ln.Accept()
	if rcerr.IsWouldBlock(err) {
		return nil
	}
	if err != nil {
		return err
	}
	h.conn = conn
	return reactor.ErrStop
}

func (h *acceptHandler) HandleWake() error { return nil }
