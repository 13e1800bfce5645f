package console

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"gorc/internal/codec"
	"gorc/internal/controller"
	rcerr "gorc/internal/errors"
	"gorc/internal/framer"
	"gorc/internal/metrics"
	"gorc/internal/reactor"
	"gorc/internal/session"
	"gorc/util"
)

// connToken is the reactor token of the console's only connection.
const connToken uint64 = 1

// Client drives one agent connection from the operator side.
type Client struct {
	conn    session.Conn
	framer  framer.Framer
	codec   *codec.Codec
	loop    *reactor.Loop
	logger  *util.Logger
	metrics *metrics.Collector
}

// NewClient registers conn with loop.  The client owns conn from here
// on and closes it in Close.
func NewClient(conn session.Conn, loop *reactor.Loop, opts session.Options, c *codec.Codec, logger *util.Logger, m *metrics.Collector) (*Client, error) {
	if err := loop.Poller().Add(conn.Fd(), connToken); err != nil {
		return nil, fmt.Errorf("console: register connection: %w", err)
	}
	m.SessionOpened()
	return &Client{
		conn:    conn,
		framer:  framer.New(opts.Framing, conn, opts.ChunkSize),
		codec:   c,
		loop:    loop,
		logger:  logger,
		metrics: m,
	}, nil
}

// Prompt returns "<peer-ip>> ".  A peer that is already gone yields
// errors.ErrNotConnected.
func (c *Client) Prompt() (string, error) {
	if _, err := unix.Getpeername(c.conn.Fd()); err != nil {
		return "", rcerr.Exit(rcerr.ExitNotConnected, fmt.Errorf("peer address: %w", rcerr.ErrNotConnected))
	}
	return util.HostOf(c.conn.RemoteAddr().String()) + "> ", nil
}

// Run reads lines from src until the operator stops or sends a
// terminating verb.
func (c *Client) Run(ctx context.Context, src Source) error {
	prompt, err := c.Prompt()
	if err != nil {
		return err
	}
	src.SetPrompt(prompt)
	c.logger.Verbose("connected to %s", c.conn.RemoteAddr())

	for {
		line, err := src.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("console: read input: %w", err)
		}

		done, err := c.Send(ctx, line, src.Output())
		if err != nil || done {
			return err
		}
	}
}

// Send transmits one line and, unless the line needs no answer, waits
// for the reply and prints it to out.  done reports that the session
// is over (quit, exit or kill was sent).
func (c *Client) Send(ctx context.Context, line string, out io.Writer) (done bool, err error) {
	payload, err := c.codec.Compress(line + "\n")
	if err != nil {
		return false, err
	}
	if err := c.framer.WriteMessage(payload); err != nil {
		return false, err
	}
	c.metrics.MessageSent(len(payload))

	switch kind, _ := controller.Classify(line); kind {
	case controller.KindQuit, controller.KindKill:
		c.logger.Verbose("sent %q, disconnecting", line)
		return true, nil
	case controller.KindEmpty:
		return false, nil
	}

	reply, n, err := c.await(ctx)
	if err != nil {
		return false, err
	}
	fmt.Fprint(out, reply)
	c.logger.Verbose("reply: %s compressed to %s (%s)",
		humanize.Bytes(uint64(len(reply))), humanize.Bytes(uint64(n)), ratio(n, len(reply)))
	return false, nil
}

// await blocks on the reactor until one whole message has arrived.
func (c *Client) await(ctx context.Context) (string, int, error) {
	h := &replyHandler{framer: c.framer}
	if err := c.loop.Run(ctx, h); err != nil {
		return "", 0, err
	}
	c.metrics.MessageReceived(len(h.msg))

	text, err := c.codec.Decompress(h.msg)
	if err != nil {
		return "", 0, err
	}
	return text, len(h.msg), nil
}

// Close deregisters and closes the connection.
func (c *Client) Close() error {
	c.metrics.SessionClosed()
	c.loop.Poller().Remove(c.conn.Fd()) //nolint:errcheck
	return rcerr.Join(c.conn.Shutdown(), c.conn.Close())
}

type replyHandler struct {
	framer framer.Framer
	msg    []byte
}

func (h *replyHandler) HandleEvent(ev reactor.Event) error {
	if ev.Token != connToken {
		return nil
	}
	msg, err := h.framer.ReadMessage()
	if rcerr.IsWouldBlock(err) {
		return nil
	}
	if err != nil {
		return err
	}
	h.msg = msg
	return reactor.ErrStop
}

func (h *replyHandler) HandleWake() error { return nil }

func ratio(compressed, plain int) string {
	if plain == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", float64(compressed)/float64(plain)*100)
}
