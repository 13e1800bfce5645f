// Package retry spaces out repeated connection attempts for the
// outbound modes (agent callback and console connect).
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// PermanentError marks a failure that another attempt cannot fix, such
// as an unparsable address.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Backoff retries an operation with exponentially growing pauses.
type Backoff struct {
	InitialDelay time.Duration // default 1s
	MaxDelay     time.Duration // default 30s
	Multiplier   float64       // default 2.0

	// MaxAttempts is the total number of tries including the first.
	// Zero retries until the context is cancelled.
	MaxAttempts int

	// Jitter spreads each pause by ±25%.
	Jitter bool

	// OnRetry, when set, is called before each pause.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// ForAttempts returns a jittered Backoff that makes at most attempts
// tries, pausing initial before the second one.
func ForAttempts(attempts int, initial time.Duration) *Backoff {
	if attempts < 1 {
		attempts = 1
	}
	return &Backoff{
		InitialDelay: initial,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  attempts,
		Jitter:       true,
	}
}

// Do calls fn until it succeeds, returns a [Permanent] error, runs out
// of attempts or ctx is done.  attempt is 1-based.  When attempts are
// exhausted the last error is returned wrapped, so errors.As still
// finds the underlying exit code.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	delay := b.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	multiplier := b.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	maxDelay := b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
			if b.MaxAttempts == 1 {
				return err
			}
			return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}

		wait := delay
		if b.Jitter {
			wait = addJitter(delay)
		}
		if b.OnRetry != nil {
			b.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w (last error: %v)", ctx.Err(), err)
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * multiplier)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter
	return time.Duration(math.Max(float64(d)+delta, float64(time.Millisecond)))
}
