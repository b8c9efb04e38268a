package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"cv-generator/internal/usecase"
)

var (
	// ErrQueueFull is returned by Dispatch when every slot is taken. The
	// message is matched by the error classifier as a quota condition.
	ErrQueueFull = errors.New("dispatch queue limit reached")
	ErrClosed    = errors.New("dispatcher closed")
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 64
)

// Runner executes one task. usecase.Worker satisfies it.
type Runner interface {
	Run(ctx context.Context, t usecase.Task)
}

type RunnerFunc func(ctx context.Context, t usecase.Task)

func (f RunnerFunc) Run(ctx context.Context, t usecase.Task) { f(ctx, t) }

// Pool is an in-process Dispatcher backed by a fixed set of goroutines and a
// bounded buffer.
type Pool struct {
	runner  Runner
	workers int
	logger  *slog.Logger

	tasks  chan usecase.Task
	base   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool

	cmu       sync.Mutex
	queued    map[string]int
	running   map[string]context.CancelFunc
	cancelled map[string]bool
}

type PoolOption func(*Pool)

func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithQueueSize(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.tasks = make(chan usecase.Task, n)
		}
	}
}

func WithPoolLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPool starts the workers. Tasks run under contexts derived from ctx.
func NewPool(ctx context.Context, runner Runner, opts ...PoolOption) *Pool {
	p := &Pool{
		runner:    runner,
		workers:   DefaultWorkers,
		logger:    slog.Default(),
		tasks:     make(chan usecase.Task, DefaultQueueSize),
		queued:    map[string]int{},
		running:   map[string]context.CancelFunc{},
		cancelled: map[string]bool{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.base, p.stop = context.WithCancel(context.WithoutCancel(ctx))

	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.loop(i)
	}
	p.logger.Info("dispatch pool started", "workers", p.workers, "queue_size", cap(p.tasks))
	return p
}

// Dispatch enqueues t without blocking.
func (p *Pool) Dispatch(_ context.Context, t usecase.Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	p.cmu.Lock()
	defer p.cmu.Unlock()
	select {
	case p.tasks <- t:
		delete(p.cancelled, t.JobID)
		p.queued[t.JobID]++
		return nil
	default:
		return ErrQueueFull
	}
}

// Cancel stops the running task for jobID or drops it if still queued.
func (p *Pool) Cancel(jobID string) bool {
	p.cmu.Lock()
	defer p.cmu.Unlock()
	if cancel, ok := p.running[jobID]; ok {
		cancel()
		return true
	}
	if p.queued[jobID] > 0 {
		p.cancelled[jobID] = true
		return true
	}
	return false
}

// Len reports the number of queued tasks.
func (p *Pool) Len() int { return len(p.tasks) }

// Close stops accepting tasks, runs whatever is queued and waits for the
// workers to return.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.stop()
	p.logger.Info("dispatch pool drained")
	return nil
}

// Abort cancels every running task and then drains like Close.
func (p *Pool) Abort() error {
	p.stop()
	return p.Close()
}

func (p *Pool) loop(id int) {
	defer p.wg.Done()
	for t := range p.tasks {
		p.execute(id, t)
	}
}

func (p *Pool) execute(id int, t usecase.Task) {
	ctx, cancel := context.WithCancel(p.base)
	defer cancel()

	p.cmu.Lock()
	if p.queued[t.JobID]--; p.queued[t.JobID] <= 0 {
		delete(p.queued, t.JobID)
	}
	if p.cancelled[t.JobID] {
		if p.queued[t.JobID] == 0 {
			delete(p.cancelled, t.JobID)
		}
		p.cmu.Unlock()
		p.logger.Info("skipping cancelled task", "job_id", t.JobID, "task_id", t.ID)
		return
	}
	p.running[t.JobID] = cancel
	p.cmu.Unlock()

	defer func() {
		p.cmu.Lock()
		delete(p.running, t.JobID)
		p.cmu.Unlock()
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "worker", id, "job_id", t.JobID, "panic", r)
		}
	}()

	p.logger.Debug("task started", "worker", id, "job_id", t.JobID, "task_id", t.ID)
	p.runner.Run(ctx, t)
}
