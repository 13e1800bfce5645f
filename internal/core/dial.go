package core

import (
	"context"
	"time"

	rcerr "gorc/internal/errors"
	"gorc/internal/retry"
	"gorc/internal/transport"
	"gorc/util"
)

// dial opens the outbound connection of a callback or console-connect
// mode, retrying refused connections according to b.
func dial(ctx context.Context, d transport.Dialer, b *retry.Backoff, address string, logger *util.Logger) (*transport.Conn, error) {
	if b == nil {
		b = retry.ForAttempts(1, 0)
	}
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("attempt %d: %v (retrying in %s)", attempt, err, wait.Round(time.Millisecond))
	}

	logger.Verbose("connecting to %s", address)

	var conn *transport.Conn
	err := b.Do(ctx, func(int) error {
		c, err := transport.DialConn(ctx, d, "tcp", address)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(ctx.Err())
			}
			return rcerr.DialExit(address, err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Verbose("connected to %s", conn.RemoteAddr())
	return conn, nil
}
