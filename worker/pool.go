// Package worker runs background map jobs on a bounded number of slots.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is a unit of background work. Work receives Ctx, bounded by the
// pool's task timeout when one is set. Done, if set, gets Work's error
// after the task's slot has been released.
type Task struct {
	Ctx  context.Context
	Name string
	Work func(ctx context.Context) error
	Done func(err error)
}

// Pool limits how many tasks run at once. A pool of one slot gives a
// single-flight guarantee: while a task runs, TrySubmit refuses others.
type Pool struct {
	workers chan struct{}
	timeout time.Duration
	logger  zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Pool)

// WithTaskTimeout cancels a task's context after d.
func WithTaskTimeout(d time.Duration) Option {
	return func(p *Pool) { p.timeout = d }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

func NewPool(maxWorkers int, opts ...Option) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	p := &Pool{
		workers: make(chan struct{}, maxWorkers),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TrySubmit starts task if a slot is free and reports whether it did.
// It never blocks.
func (p *Pool) TrySubmit(task Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.workers <- struct{}{}:
	default:
		return false
	}
	p.wg.Add(1)
	go p.run(task)
	return true
}

func (p *Pool) run(task Task) {
	defer p.wg.Done()

	err := p.exec(task)
	<-p.workers
	if task.Done != nil {
		task.Done(err)
	}
}

func (p *Pool) exec(task Task) error {
	ctx := task.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := task.Work(ctx); err != nil {
		p.logger.Warn().Err(err).Str("task", task.Name).Dur("elapsed", time.Since(start)).Msg("task failed")
		return err
	}
	p.logger.Debug().Str("task", task.Name).Dur("elapsed", time.Since(start)).Msg("task done")
	return nil
}

// Wait blocks until all started tasks and their Done callbacks have returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Shutdown refuses new tasks. Running tasks are not interrupted; cancel
// their contexts for that.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
}
