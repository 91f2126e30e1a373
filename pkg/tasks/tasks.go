// Package tasks provides the deferred work executor the facets engine hands
// background analysis and scan fan-out to.
//
// The engine never threads on its own: every operation either runs on the
// caller's goroutine or is submitted here. The executor runs submitted units
// of work on a bounded worker pool, optionally after a delay; no result is
// observed by the submitter.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/facetfs/internal/logger"
)

// Task is a unit of deferred work.
type Task func(ctx context.Context)

// Options controls scheduling of a single task.
type Options struct {
	// Delay postpones execution. Zero runs as soon as a worker is free.
	Delay time.Duration
}

// Scheduler accepts deferred units of work.
type Scheduler interface {
	// Schedule submits task for execution. It never blocks on the task
	// itself. Submissions after Close are dropped.
	Schedule(task Task, opts Options)
}

// Executor is a bounded worker pool implementation of Scheduler.
type Executor struct {
	queue  chan Task
	ctx    context.Context
	cancel context.CancelFunc

	wg     sync.WaitGroup // workers
	timers sync.WaitGroup // pending delayed submissions

	mu     sync.Mutex
	closed bool
}

// NewExecutor starts an executor with the given number of workers.
func NewExecutor(workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		queue:  make(chan Task, 64),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for {
		select {
		case task, ok := <-e.queue:
			if !ok {
				return
			}
			task(e.ctx)
		case <-e.ctx.Done():
			return
		}
	}
}

// Schedule submits task, optionally after opts.Delay.
func (e *Executor) Schedule(task Task, opts Options) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		logger.Warn("task dropped, executor closed")
		return
	}
	id := uuid.NewString()
	logger.Debug("task scheduled", "task_id", id, "delay", opts.Delay)

	if opts.Delay <= 0 {
		e.mu.Unlock()
		e.enqueue(task)
		return
	}

	e.timers.Add(1)
	e.mu.Unlock()
	time.AfterFunc(opts.Delay, func() {
		defer e.timers.Done()
		if e.ctx.Err() != nil {
			return
		}
		e.enqueue(task)
	})
}

func (e *Executor) enqueue(task Task) {
	select {
	case e.queue <- task:
	case <-e.ctx.Done():
	}
}

// Close stops accepting new work, abandons delayed and still-queued tasks,
// and waits for in-flight tasks to finish.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.timers.Wait()
	close(e.queue)
	e.wg.Wait()
}
