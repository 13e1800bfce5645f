// Package executor runs the commands carried by messages.
//
// A command is an argv vector executed directly, without a shell.
// Stdout and stderr are captured separately and exactly one of them
// becomes the reply: stdout when the process exits successfully and
// stderr otherwise.
package executor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	rcerr "gorc/internal/errors"
	"gorc/util"
)

// waitDelay bounds how long Run waits for output pipes after the
// process was killed, in case a grandchild still holds them.
const waitDelay = time.Second

// Result is the outcome of a command that ran.
type Result struct {
	Success bool
	// Output is stdout on success and stderr otherwise.
	Output   []byte
	ExitCode int
	// Detail describes a failed run for logging.  It is an
	// *errors.ExecError of kind ExecNonZeroExit, or nil.
	Detail error
}

// Runner executes commands synchronously.
type Runner struct {
	// Timeout kills commands that run longer (0 = no limit).
	Timeout time.Duration
	Logger  *util.Logger
}

// Run executes argv[0] with argv[1:] and blocks until it exits.  The
// only error returned is an *errors.ExecError of kind ExecSpawnFailed,
// for commands that could not be started at all.
func (r *Runner) Run(ctx context.Context, argv []string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, &rcerr.ExecError{Kind: rcerr.ExecSpawnFailed, Err: errors.New("empty command")}
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	r.Logger.Debug("exec: %s", cmd.String())

	if err := cmd.Start(); err != nil {
		return Result{}, &rcerr.ExecError{Kind: rcerr.ExecSpawnFailed, Program: argv[0], Err: err}
	}
	err := cmd.Wait()
	if err == nil {
		return Result{Success: true, Output: stdout.Bytes()}, nil
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		r.Logger.Verbose("exec %q: %v", argv[0], ctx.Err())
	}
	return Result{
		Output:   stderr.Bytes(),
		ExitCode: code,
		Detail: &rcerr.ExecError{
			Kind:     rcerr.ExecNonZeroExit,
			Program:  argv[0],
			ExitCode: code,
			Err:      err,
		},
	}, nil
}
