package core

import (
	"gorc/config"
	"gorc/internal/codec"
	rcerr "gorc/internal/errors"
	"gorc/internal/executor"
	"gorc/internal/metrics"
	"gorc/internal/retry"
	"gorc/internal/session"
	"gorc/internal/transport"
	"gorc/util"
)

// Build constructs the appropriate Mode from a validated configuration.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	level, err := cfg.CompressionLevel()
	if err != nil {
		return nil, err
	}
	framing, err := cfg.FramingKind()
	if err != nil {
		return nil, err
	}
	opts := session.Options{Framing: framing, ChunkSize: cfg.ChunkSize}
	m := metrics.New()

	switch {
	case cfg.Console:
		return buildConsole(cfg, opts, codec.New(level), m, logger)
	case cfg.Callback:
		return buildCallback(cfg, opts, codec.New(level), m, logger)
	default:
		return buildListen(cfg, opts, codec.New(level), m, logger), nil
	}
}

// ── mode builders ────────────────────────────────────────────────────

func buildListen(cfg *config.Config, opts session.Options, c *codec.Codec, m *metrics.Collector, logger *util.Logger) Mode {
	return &AgentListenMode{
		Address:  util.FormatAddr(cfg.BindHost(), cfg.Port),
		Session:  opts,
		Codec:    c,
		Runner:   buildRunner(cfg, logger),
		Workers:  cfg.Workers,
		SyncExec: cfg.SyncExec,
		Logger:   logger,
		Metrics:  m,
	}
}

func buildCallback(cfg *config.Config, opts session.Options, c *codec.Codec, m *metrics.Collector, logger *util.Logger) (Mode, error) {
	address, err := util.ResolveAddr(cfg.Host, cfg.Port, cfg.NoDNS)
	if err != nil {
		return nil, rcerr.Exit(rcerr.ExitAddressInvalid, err)
	}
	return &AgentCallbackMode{
		Dialer:   buildDialer(cfg),
		Backoff:  buildBackoff(cfg),
		Address:  address,
		Session:  opts,
		Codec:    c,
		Runner:   buildRunner(cfg, logger),
		SyncExec: cfg.SyncExec,
		Logger:   logger,
		Metrics:  m,
	}, nil
}

func buildConsole(cfg *config.Config, opts session.Options, c *codec.Codec, m *metrics.Collector, logger *util.Logger) (Mode, error) {
	mode := &ConsoleMode{
		Listen:  cfg.Listen,
		Session: opts,
		Codec:   c,
		Logger:  logger,
		Metrics: m,
	}
	if cfg.Listen {
		mode.Address = util.FormatAddr(cfg.BindHost(), cfg.Port)
		return mode, nil
	}

	address, err := util.ResolveAddr(cfg.Host, cfg.Port, cfg.NoDNS)
	if err != nil {
		return nil, rcerr.Exit(rcerr.ExitAddressInvalid, err)
	}
	mode.Address = address
	mode.Dialer = buildDialer(cfg)
	mode.Backoff = buildBackoff(cfg)
	return mode, nil
}

// ── shared helpers ───────────────────────────────────────────────────

func buildDialer(cfg *config.Config) transport.Dialer {
	return &transport.TCPDialer{Timeout: cfg.Timeout}
}

func buildBackoff(cfg *config.Config) *retry.Backoff {
	return retry.ForAttempts(cfg.Retries, config.DefaultRetryDelay)
}

func buildRunner(cfg *config.Config, logger *util.Logger) *executor.Runner {
	return &executor.Runner{Timeout: cfg.ExecTimeout, Logger: logger}
}
