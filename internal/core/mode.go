// Package core is the orchestration layer.  It composes the reactor,
// registry, controller and executor into complete operational modes
// and provides a builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  framer/codec  →  session/registry  →  controller  →  core  →  cmd (CLI)
//
// Every mode owns its reactor and registry; nothing outlives Run.
package core

import (
	"context"
	"errors"

	rcerr "gorc/internal/errors"
	"gorc/internal/metrics"
	"gorc/util"
)

// Mode represents a complete operational mode of gorc (agent listen,
// agent callback, or console).  Each mode owns its full lifecycle from
// connection establishment to teardown.
type Mode interface {
	Run(ctx context.Context) error
}

// finish maps the error a mode stopped with to what the process
// reports.  Cancellation from a signal is a normal exit.
func finish(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, rcerr.ErrKilled):
		return rcerr.Exit(rcerr.ExitKilled, err)
	}
	return err
}

func logSummary(logger *util.Logger, m *metrics.Collector) {
	logger.Verbose("%s", m.Snapshot().Summary())
	logger.Debug("metrics %s", m.JSON())
}
