/*
queue.go - Background notification queue

PURPOSE:
  Runs notification jobs on worker goroutines so HTTP handlers return as
  soon as the records are committed. Implements leave.Dispatcher.

DESIGN:
  - Buffered channel of jobs, fixed number of workers
  - Each job runs with its own timeout
  - Failures and panics are logged, never returned to the caller
  - A full queue drops the job (logged) instead of blocking a request

USAGE:
  queue := notify.NewQueue(notify.QueueConfig{Size: 100, Workers: 2})
  queue.Start()
  defer queue.Stop() // drains queued jobs

  svc := leave.NewService(store, leave.WithDispatcher(queue), ...)
*/
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// QueueConfig sizes the queue.
type QueueConfig struct {
	Size    int
	Workers int
	Timeout time.Duration
}

type job struct {
	kind string
	run  func(ctx context.Context) error
}

// Queue is a leave.Dispatcher backed by worker goroutines.
type Queue struct {
	Workers int
	Timeout time.Duration

	jobs    chan job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	stopped bool
	logger  *zap.Logger
}

// NewQueue creates a queue. Call Start before jobs are processed.
func NewQueue(cfg QueueConfig, logger ...*zap.Logger) *Queue {
	l := zap.L().Named("notify.queue")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("notify.queue")
	}
	if cfg.Size <= 0 {
		cfg.Size = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Queue{
		Workers: cfg.Workers,
		Timeout: cfg.Timeout,
		jobs:    make(chan job, cfg.Size),
		logger:  l,
	}
}

// Start launches the workers.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started || q.stopped {
		return
	}
	q.started = true

	for i := 0; i < q.Workers; i++ {
		q.wg.Add(1)
		go q.run()
	}

	q.logger.Info("started", zap.Int("workers", q.Workers), zap.Int("capacity", cap(q.jobs)))
}

// Stop closes the queue and waits for queued jobs to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.jobs)
	started := q.started
	q.mu.Unlock()

	if !started {
		// Nobody will consume what is left; run it here.
		for j := range q.jobs {
			q.execute(j)
		}
		return
	}
	q.wg.Wait()
	q.logger.Info("stopped")
}

// Dispatch implements leave.Dispatcher.
func (q *Queue) Dispatch(kind string, run func(ctx context.Context) error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.stopped {
		q.logger.Warn("queue stopped, dropping notification", zap.String("kind", kind))
		return
	}

	select {
	case q.jobs <- job{kind: kind, run: run}:
	default:
		q.logger.Error("queue full, dropping notification", zap.String("kind", kind))
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for j := range q.jobs {
		q.execute(j)
	}
}

func (q *Queue) execute(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.Timeout)
	defer cancel()

	start := time.Now()
	err := safeRun(ctx, j.run)
	if err != nil {
		q.logger.Error("notification failed",
			zap.String("kind", j.kind),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	q.logger.Debug("notification delivered",
		zap.String("kind", j.kind),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func safeRun(ctx context.Context, run func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return run(ctx)
}
