// Package console is the operator side of a session: it reads command
// lines, sends them compressed and prints the replies.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Source yields operator input one line at a time.
type Source interface {
	// ReadLine returns the next line without its terminator.  io.EOF
	// means the operator is done (Ctrl-D, Ctrl-C or end of input).
	ReadLine() (string, error)
	SetPrompt(prompt string)
	// Output is where replies are printed.
	Output() io.Writer
	Close() error
}

// Open returns a line-editing terminal when in is a tty and a plain
// line reader otherwise.
func Open(in *os.File, out io.Writer) (Source, error) {
	if term.IsTerminal(int(in.Fd())) {
		return NewTerminal(in, out)
	}
	return NewPlain(in, out), nil
}

// Terminal reads lines through x/term with editing and in-memory
// history.  The tty stays in raw mode until Close.
type Terminal struct {
	fd    int
	state *term.State
	t     *term.Terminal
}

// NewTerminal switches in to raw mode.
func NewTerminal(in *os.File, out io.Writer) (*Terminal, error) {
	fd := int(in.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("console: raw mode: %w", err)
	}
	rw := struct {
		io.Reader
		io.Writer
	}{in, out}
	return &Terminal{fd: fd, state: state, t: term.NewTerminal(rw, "")}, nil
}

func (t *Terminal) ReadLine() (string, error) { return t.t.ReadLine() }

func (t *Terminal) SetPrompt(prompt string) { t.t.SetPrompt(prompt) }

// Output translates newlines for the raw-mode tty.
func (t *Terminal) Output() io.Writer { return t.t }

// Close restores the original tty mode.
func (t *Terminal) Close() error { return term.Restore(t.fd, t.state) }

// Plain reads newline-separated lines, for piped input.  It prints no
// prompt.
type Plain struct {
	sc  *bufio.Scanner
	out io.Writer
}

// NewPlain reads lines from in.
func NewPlain(in io.Reader, out io.Writer) *Plain {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	return &Plain{sc: sc, out: out}
}

func (p *Plain) ReadLine() (string, error) {
	if p.sc.Scan() {
		return p.sc.Text(), nil
	}
	if err := p.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (p *Plain) SetPrompt(string) {}

func (p *Plain) Output() io.Writer { return p.out }

func (p *Plain) Close() error { return nil }
