package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/batchupload/applications/server/domain"
)

// Pool runs submitted tasks on a fixed number of goroutines. It is created
// once per process and shared by all batches.
type Pool struct {
	workers int
	tasks   chan func()
	logger  log.Logger

	mu      sync.RWMutex
	stopped bool
	started atomic.Bool
	wg      sync.WaitGroup
}

func New(workers, queueSize int, logger log.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	return &Pool{
		workers: workers,
		tasks:   make(chan func(), queueSize),
		logger:  logger,
	}
}

func (p *Pool) Workers() int {
	return p.workers
}

func (p *Pool) Start() error {
	if !p.started.CompareAndSwap(false, true) {
		return fmt.Errorf("worker pool already started")
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	level.Info(p.logger).Log("msg", "worker pool started", "workers", p.workers, "queue", cap(p.tasks))

	return nil
}

// Submit queues task, blocking while the queue is full. It fails once the
// pool is shut down or ctx is done before the task could be queued.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return domain.ErrPoolStopped
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			level.Error(p.logger).Log("msg", "worker task panicked",
				"err", fmt.Sprintf("panic: %v", rec),
				"stack", string(debug.Stack()),
			)
		}
	}()

	task()
}

// Shutdown stops accepting tasks and waits until the queued ones are done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	if !p.started.Load() {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		level.Info(p.logger).Log("msg", "worker pool stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}
