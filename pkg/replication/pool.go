package replication

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/roadpulse/roadpulse/pkg/observability"
)

// ErrPoolFull is returned by TrySubmit when the work queue is at capacity.
var ErrPoolFull = errors.New("worker pool queue full")

// WorkerPool manages a pool of workers that process replication tasks from
// a channel. Provides graceful shutdown and panic containment: a panicking
// task never takes the process down.
type WorkerPool struct {
	workers      int
	taskName     string
	timeout      time.Duration
	logger       *observability.Logger
	workCh       chan func(context.Context) error
	doneCh       chan struct{}
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
}

// NewWorkerPool starts workers goroutines consuming submitted tasks. Each
// task runs under its own timeout derived from ctx.
func NewWorkerPool(ctx context.Context, workers int, taskName string, timeout time.Duration, logger *observability.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		workers:  workers,
		taskName: taskName,
		timeout:  timeout,
		logger:   logger.WithField("pool", taskName),
		workCh:   make(chan func(context.Context) error, workers*2),
		doneCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				pool.worker(id)
			}(i)
		}
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// Submit adds a task to the pool. Returns an error once the pool is shut
// down.
func (p *WorkerPool) Submit(fn func(context.Context) error) error {
	select {
	case <-p.doneCh:
		return fmt.Errorf("worker pool %s shut down", p.taskName)
	default:
	}

	// Shutdown may close workCh between the check above and the send
	// below; the recover turns that race into a clean error.
	submitted := false
	func() {
		defer func() {
			recover()
		}()
		select {
		case p.workCh <- fn:
			submitted = true
		case <-p.doneCh:
		}
	}()

	if !submitted {
		return fmt.Errorf("worker pool %s shut down", p.taskName)
	}
	return nil
}

// TrySubmit adds a task without ever blocking the caller: a queue at
// capacity rejects the task with ErrPoolFull instead of waiting for a
// worker.
func (p *WorkerPool) TrySubmit(fn func(context.Context) error) error {
	select {
	case <-p.doneCh:
		return fmt.Errorf("worker pool %s shut down", p.taskName)
	default:
	}

	submitted := false
	full := false
	func() {
		defer func() {
			recover()
		}()
		select {
		case p.workCh <- fn:
			submitted = true
		case <-p.doneCh:
		default:
			full = true
		}
	}()

	if full {
		return ErrPoolFull
	}
	if !submitted {
		return fmt.Errorf("worker pool %s shut down", p.taskName)
	}
	return nil
}

// Shutdown closes the work channel, lets workers drain outstanding tasks,
// and waits up to timeout before force-cancelling.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var shutdownErr error

	p.shutdownOnce.Do(func() {
		close(p.workCh)

		select {
		case <-p.doneCh:
			p.cancel()
		case <-time.After(timeout):
			p.cancel()
			shutdownErr = fmt.Errorf("worker pool %s shutdown timed out after %v", p.taskName, timeout)
		}
	})

	return shutdownErr
}

func (p *WorkerPool) worker(id int) {
	for {
		select {
		case <-p.ctx.Done():
			return

		case fn, ok := <-p.workCh:
			if !ok {
				return
			}
			p.run(id, fn)
		}
	}
}

func (p *WorkerPool) run(id int, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(map[string]interface{}{
				"worker": id,
				"panic":  fmt.Sprint(r),
				"stack":  string(debug.Stack()),
			}).Error("Panic in replication task")
		}
	}()

	if err := fn(ctx); err != nil {
		p.logger.WithField("worker", id).WithError(err).Warn("Replication task failed")
	}
}
