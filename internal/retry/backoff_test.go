package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	rcerr "gorc/internal/errors"
)

func fastBackoff(attempts int) *Backoff {
	return &Backoff{
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   1.5,
		MaxAttempts:  attempts,
	}
}

func TestBackoff_SuccessAfterRetries(t *testing.T) {
	calls := 0
	err := fastBackoff(10).Do(context.Background(), func(attempt int) error {
		calls++
		if attempt < 3 {
			return fmt.Errorf("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestBackoff_PermanentError(t *testing.T) {
	calls := 0
	err := fastBackoff(10).Do(context.Background(), func(_ int) error {
		calls++
		return Permanent(fmt.Errorf("fatal"))
	})
	if err == nil || err.Error() != "fatal" {
		t.Fatalf("got %v, want fatal", err)
	}
	if calls != 1 {
		t.Errorf("permanent error should stop after 1 call, got %d", calls)
	}
}

func TestBackoff_MaxAttemptsKeepsExitCode(t *testing.T) {
	calls := 0
	err := fastBackoff(3).Do(context.Background(), func(_ int) error {
		calls++
		return rcerr.Exit(rcerr.ExitConnectFailed, fmt.Errorf("refused"))
	})
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if code := rcerr.CodeOf(err); code != rcerr.ExitConnectFailed {
		t.Errorf("exit code = %d, want %d (err %v)", code, rcerr.ExitConnectFailed, err)
	}
}

func TestBackoff_SingleAttemptReturnsErrorUnchanged(t *testing.T) {
	want := errors.New("refused")
	err := ForAttempts(1, time.Hour).Do(context.Background(), func(_ int) error { return want })
	if err != want {
		t.Errorf("got %v, want the original error", err)
	}
}

func TestBackoff_OnRetry(t *testing.T) {
	b := fastBackoff(3)
	var seen []int
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		if err == nil || wait <= 0 {
			t.Errorf("OnRetry(%d, %v, %v)", attempt, err, wait)
		}
		seen = append(seen, attempt)
	}
	_ = b.Do(context.Background(), func(_ int) error { return errors.New("x") })
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", seen)
	}
}

func TestBackoff_ContextCancelled(t *testing.T) {
	b := &Backoff{InitialDelay: 5 * time.Second, MaxAttempts: 100}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := b.Do(ctx, func(_ int) error { return fmt.Errorf("fail") })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("cancellation should interrupt the pause")
	}
}

func TestForAttempts(t *testing.T) {
	b := ForAttempts(0, 0)
	if b.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", b.MaxAttempts)
	}
	b = ForAttempts(4, 250*time.Millisecond)
	if b.MaxAttempts != 4 || b.InitialDelay != 250*time.Millisecond || !b.Jitter {
		t.Errorf("ForAttempts(4) = %+v", b)
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"permanent", Permanent(fmt.Errorf("x")), true},
		{"wrapped", fmt.Errorf("dial: %w", Permanent(fmt.Errorf("x"))), true},
		{"not permanent", fmt.Errorf("x"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestJitter_Range(t *testing.T) {
	d := 100 * time.Millisecond
	lower := time.Duration(float64(d) * 0.74)
	upper := time.Duration(float64(d) * 1.26)
	for i := 0; i < 100; i++ {
		if j := addJitter(d); j < lower || j > upper {
			t.Errorf("jitter %v out of range [%v, %v]", j, lower, upper)
		}
	}
}
