package reactor

import (
	"context"
	"errors"
	"fmt"

	"gorc/util"
)

// ErrStop may be returned by a [Handler] to end [Loop.Run] cleanly.
var ErrStop = errors.New("reactor: stop")

// Handler receives the events of a [Loop].
type Handler interface {
	// HandleEvent is called for every listener or session event.
	HandleEvent(ev Event) error
	// HandleWake is called after another goroutine woke the loop.
	HandleWake() error
}

// Loop couples a [Poller] with a [Waker] and dispatches events.
type Loop struct {
	poller *Poller
	waker  *Waker
	logger *util.Logger
	events []Event
}

// NewLoop creates a poller and waker pair.
func NewLoop(logger *util.Logger) (*Loop, error) {
	p, err := NewPoller(0)
	if err != nil {
		return nil, err
	}
	w, err := NewWaker()
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := p.Add(w.Fd(), WakerToken); err != nil {
		w.Close()
		p.Close()
		return nil, fmt.Errorf("register waker: %w", err)
	}
	return &Loop{poller: p, waker: w, logger: logger}, nil
}

// Poller returns the loop's poller for registering descriptors.
func (l *Loop) Poller() *Poller { return l.poller }

// Wake interrupts a blocked Run from any goroutine.
func (l *Loop) Wake() {
	if err := l.waker.Wake(); err != nil {
		l.logger.Error("wake reactor: %v", err)
	}
}

// Run waits for readiness and dispatches every event of a wake-up
// before waiting again.  It returns when h returns an error (nil for
// [ErrStop]) or ctx is cancelled (ctx.Err()).
func (l *Loop) Run(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, l.Wake)
	defer stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		l.events, err = l.poller.Wait(l.events[:0])
		if err != nil {
			return err
		}
		l.logger.Debug("reactor: %d event(s)", len(l.events))

		for _, ev := range l.events {
			if ev.Token == WakerToken {
				if err := l.waker.Drain(); err != nil {
					return err
				}
				err = h.HandleWake()
			} else {
				err = h.HandleEvent(ev)
			}
			if errors.Is(err, ErrStop) {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}

// Close releases the poller and waker.
func (l *Loop) Close() error {
	return errors.Join(l.waker.Close(), l.poller.Close())
}
