package core

import (
	"context"

	"gorc/internal/codec"
	"gorc/internal/controller"
	"gorc/internal/executor"
	"gorc/internal/metrics"
	"gorc/internal/reactor"
	"gorc/internal/registry"
	"gorc/internal/retry"
	"gorc/internal/session"
	"gorc/internal/transport"
	"gorc/util"
)

// AgentCallbackMode dials a waiting console and serves that single
// session.  The mode ends when the session does: quit and exit yield a
// nil error, a reset yields one that maps to ExitConnReset.
type AgentCallbackMode struct {
	Dialer   transport.Dialer
	Backoff  *retry.Backoff
	Address  string
	Session  session.Options
	Codec    *codec.Codec
	Runner   *executor.Runner
	SyncExec bool
	Logger   *util.Logger
	Metrics  *metrics.Collector
}

// Run connects, serves the session and reports why it ended.
func (m *AgentCallbackMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	loop, err := reactor.NewLoop(m.Logger)
	if err != nil {
		return err
	}
	defer loop.Close()

	conn, err := dial(ctx, m.Dialer, m.Backoff, m.Address, m.Logger)
	if err != nil {
		return finish(err)
	}

	reg := registry.New(ctx, loop.Poller(), m.Session, m.Logger, m.Metrics)
	if _, err := reg.Add(conn, session.Outbound); err != nil {
		conn.Close()
		return err
	}

	var pool *executor.Pool
	if !m.SyncExec {
		pool = executor.NewPool(m.Runner, 1, loop.Wake)
	}
	var reason error
	h := &agentHandler{
		reg:  reg,
		pool: pool,
		ctrl: &controller.Controller{
			Registry: reg,
			Codec:    m.Codec,
			Runner:   m.Runner,
			Pool:     pool,
			Logger:   m.Logger,
			Metrics:  m.Metrics,
			OnClose:  func(_ uint64, err error) { reason = err },
		},
		logger:  m.Logger,
		metrics: m.Metrics,
	}

	err = loop.Run(ctx, h)

	reg.CloseAll()
	if pool != nil {
		pool.Wait()
	}
	logSummary(m.Logger, m.Metrics)
	if err != nil {
		return finish(err)
	}
	return reason
}
