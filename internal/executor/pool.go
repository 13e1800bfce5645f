package executor

import (
	"context"
	"sync"
	"time"
)

// Job is one command to run on behalf of a session.
type Job struct {
	Token uint64
	Argv  []string
	// Ctx is the session context; cancelling it kills the command.
	Ctx context.Context
}

// Completion is the outcome of a Job.
type Completion struct {
	Token   uint64
	Result  Result
	Err     error
	Elapsed time.Duration
}

// Pool runs jobs on background goroutines, at most a fixed number at a
// time.  Finished jobs are queued and announced through notify, which
// must be safe to call from any goroutine.
type Pool struct {
	runner *Runner
	sem    chan struct{}
	notify func()
	wg     sync.WaitGroup

	mu   sync.Mutex
	done []Completion
}

// NewPool returns a pool running up to workers commands concurrently.
func NewPool(runner *Runner, workers int, notify func()) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		runner: runner,
		sem:    make(chan struct{}, workers),
		notify: notify,
	}
}

// Submit starts job in the background and returns immediately.
func (p *Pool) Submit(job Job) {
	ctx := job.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			p.complete(Completion{Token: job.Token, Err: ctx.Err()})
			return
		}
		defer func() { <-p.sem }()

		start := time.Now()
		res, err := p.runner.Run(ctx, job.Argv)
		p.complete(Completion{Token: job.Token, Result: res, Err: err, Elapsed: time.Since(start)})
	}()
}

func (p *Pool) complete(c Completion) {
	p.mu.Lock()
	p.done = append(p.done, c)
	p.mu.Unlock()
	if p.notify != nil {
		p.notify()
	}
}

// Drain returns and clears the queued completions in finishing order.
func (p *Pool) Drain() []Completion {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.done
	p.done = nil
	return out
}

// Wait blocks until every submitted job has completed.
func (p *Pool) Wait() { p.wg.Wait() }
