// Package jobs runs detached background work off the request path.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/teamspace/pkg/logger"
	"github.com/charlesng35/teamspace/pkg/metrics"
)

const (
	defaultWorkers     = 4
	defaultQueueSize   = 256
	defaultTaskTimeout = 30 * time.Second
)

// ErrQueueClosed is returned by Shutdown when called twice.
var ErrQueueClosed = errors.New("jobs: queue closed")

// Task is a unit of background work.
type Task func(ctx context.Context) error

// Config sizes the worker pool.
type Config struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

type job struct {
	name string
	task Task
}

// Queue is a fixed pool of workers fed by a buffered channel.
type Queue struct {
	cfg    Config
	work   chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts the workers.
func NewQueue(cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaultTaskTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		cfg:    cfg,
		work:   make(chan job, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Enqueue schedules task without waiting. It returns false when the queue is
// closed or full; the task is dropped in that case.
func (q *Queue) Enqueue(name string, task Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		logger.Warn("background job rejected, queue closed", zap.String("job", name))
		metrics.BackgroundJobs.WithLabelValues(name, "dropped").Inc()
		return false
	}

	select {
	case q.work <- job{name: name, task: task}:
		return true
	default:
		logger.Warn("background job dropped, queue full", zap.String("job", name))
		metrics.BackgroundJobs.WithLabelValues(name, "dropped").Inc()
		return false
	}
}

// Shutdown stops accepting work and waits for queued tasks to finish. When ctx
// expires first, running tasks are cancelled and ctx.Err() is returned.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.closed = true
	close(q.work)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for j := range q.work {
		q.run(j)
	}
}

func (q *Queue) run(j job) {
	log := logger.WithModule("jobs").With(zap.String("job", j.name))
	ctx, cancel := context.WithTimeout(q.ctx, q.cfg.TaskTimeout)
	defer cancel()

	result := "ok"
	defer func() {
		if r := recover(); r != nil {
			result = "panic"
			log.Error("background job panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
		metrics.BackgroundJobs.WithLabelValues(j.name, result).Inc()
	}()

	if err := j.task(ctx); err != nil {
		result = "error"
		log.Warn("background job failed", zap.Error(fmt.Errorf("%s: %w", j.name, err)))
	}
}
