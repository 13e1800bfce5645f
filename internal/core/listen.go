package core

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"gorc/internal/codec"
	"gorc/internal/controller"
	rcerr "gorc/internal/errors"
	"gorc/internal/executor"
	"gorc/internal/metrics"
	"gorc/internal/reactor"
	"gorc/internal/registry"
	"gorc/internal/session"
	"gorc/internal/transport"
	"gorc/util"
)

// AgentListenMode serves any number of consoles on one listening
// socket until it is cancelled or receives the kill verb.
type AgentListenMode struct {
	Address  string // "host:port"
	Session  session.Options
	Codec    *codec.Codec
	Runner   *executor.Runner
	Workers  int
	SyncExec bool // run commands on the reactor goroutine
	Logger   *util.Logger
	Metrics  *metrics.Collector

	// Ready, when set, is called with the bound address before the
	// first event is processed.
	Ready func(addr net.Addr)
}

// Run binds Address and drives the reactor.  Per-session failures are
// logged and never end the mode.
func (m *AgentListenMode) Run(ctx context.Context) error {
	ln, err := transport.Listen("tcp", m.Address)
	if err != nil {
		return rcerr.ListenExit(m.Address, err)
	}
	defer ln.Close()

	loop, err := reactor.NewLoop(m.Logger)
	if err != nil {
		return err
	}
	defer loop.Close()

	if err := loop.Poller().Add(ln.Fd(), reactor.ListenerToken); err != nil {
		return err
	}
	m.Logger.Info("listening on %s", ln.Addr())
	if m.Ready != nil {
		m.Ready(ln.Addr())
	}

	reg := registry.New(ctx, loop.Poller(), m.Session, m.Logger, m.Metrics)
	var pool *executor.Pool
	if !m.SyncExec {
		pool = executor.NewPool(m.Runner, m.Workers, loop.Wake)
	}
	h := &agentHandler{
		ln:          ln,
		watcher:     loop.Poller(),
		wake:        loop.Wake,
		acceptRetry: acceptRetryDelay,
		reg:         reg,
		pool:        pool,
		ctrl: &controller.Controller{
			Registry: reg,
			Codec:    m.Codec,
			Runner:   m.Runner,
			Pool:     pool,
			Logger:   m.Logger,
			Metrics:  m.Metrics,
		},
		logger:  m.Logger,
		metrics: m.Metrics,
	}

	err = loop.Run(ctx, h)
	h.stopTimers()

	reg.CloseAll()
	if pool != nil {
		pool.Wait()
	}
	logSummary(m.Logger, m.Metrics)
	return finish(err)
}

// acceptRetryDelay is how long the listener stays quiet after accept
// fails for a reason other than an empty backlog, such as EMFILE.
const acceptRetryDelay = 500 * time.Millisecond

// listener is the part of *transport.Listener the handler uses.
type listener interface {
	registry.Acceptor
	Fd() int
}

// agentHandler routes reactor events for the agent modes.  ln is nil
// in callback mode, where the mode ends with its only session.
type agentHandler struct {
	ln          listener
	watcher     registry.Watcher
	wake        func()
	acceptRetry time.Duration

	reg     *registry.Registry
	pool    *executor.Pool
	ctrl    *controller.Controller
	logger  *util.Logger
	metrics *metrics.Collector

	// resumeAt is set while listener interest is off after a failed
	// accept.  Level-triggered readiness would otherwise report the
	// same pending connection on every wait.
	resumeAt time.Time

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func (h *agentHandler) HandleEvent(ev reactor.Event) error {
	if ev.Token == reactor.ListenerToken && h.ln != nil {
		h.acceptAll()
		return nil
	}
	if err := h.ctrl.HandleEvent(ev); err != nil {
		return err
	}
	return h.checkDone()
}

// acceptAll drains the accept backlog.
func (h *agentHandler) acceptAll() {
	for {
		_, err := h.reg.Accept(h.ln)
		if rcerr.IsWouldBlock(err) {
			return
		}
		if err != nil {
			h.logger.Warn("accept: %v; retrying in %s", err, h.acceptRetry)
			h.metrics.RecordError(err.Error())
			h.pauseAccept()
			return
		}
	}
}

func (h *agentHandler) pauseAccept() {
	if err := h.watcher.Modify(h.ln.Fd(), reactor.ListenerToken, false); err != nil {
		h.logger.Error("pause listener: %v", err)
		return
	}
	h.resumeAt = time.Now().Add(h.acceptRetry)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.timer = time.AfterFunc(h.acceptRetry, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if !h.stopped {
			h.wake()
		}
	})
}

// resumeAccept turns listener interest back on once the retry delay has
// passed.  Earlier wake-ups from the pool leave it off.
func (h *agentHandler) resumeAccept() error {
	if h.resumeAt.IsZero() || time.Now().Before(h.resumeAt) {
		return nil
	}
	h.resumeAt = time.Time{}
	if err := h.watcher.Modify(h.ln.Fd(), reactor.ListenerToken, true); err != nil {
		return fmt.Errorf("resume listener: %w", err)
	}
	h.logger.Debug("accepting again")
	return nil
}

// stopTimers cancels a pending accept retry so it never wakes a closed
// loop.
func (h *agentHandler) stopTimers() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	if h.timer != nil {
		h.timer.Stop()
	}
}

func (h *agentHandler) HandleWake() error {
	if err := h.resumeAccept(); err != nil {
		return err
	}
	if h.pool == nil {
		return nil
	}
	for _, done := range h.pool.Drain() {
		if err := h.ctrl.HandleCompletion(done); err != nil {
			return err
		}
	}
	return h.checkDone()
}

func (h *agentHandler) checkDone() error {
	if h.ln == nil && h.reg.Len() == 0 {
		return reactor.ErrStop
	}
	return nil
}
