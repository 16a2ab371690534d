package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueClosed is returned by Enqueue once the queue is not accepting work.
var ErrQueueClosed = errors.New("queue closed")

// Job is one unit of background work.
type Job struct {
	ID       string
	Kind     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job. Returning an error schedules a retry unless it is Permanent.
type Handler func(context.Context, Job) error

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// QueueConfig configures the worker pool.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue dispatches jobs to a fixed pool of goroutines. Jobs still buffered when Stop is called are drained.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
	retries sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewQueue builds a queue; call Start before enqueueing.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		jobs:    make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.workers.Add(1)
		go q.work()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop refuses new jobs, lets workers finish what is buffered, then returns.
// Pending retries are abandoned.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started || q.closed {
		q.closed = true
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.cancel()
	q.mu.Unlock()

	q.retries.Wait()
	close(q.jobs)
	q.workers.Wait()
	q.logger.Info("queue stopped")
}

// Enqueue buffers job without blocking. It fails when the queue is stopped or full.
func (q *Queue) Enqueue(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.started || q.closed {
		return fmt.Errorf("enqueue %s on %s: %w", job.Kind, q.name, ErrQueueClosed)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return fmt.Errorf("queue %s is full (%d jobs)", q.name, cap(q.jobs))
	}
}

func (q *Queue) work() {
	defer q.workers.Done()
	for job := range q.jobs {
		q.run(job)
	}
}

func (q *Queue) run(job Job) {
	log := q.logger.With(zap.String("job_id", job.ID), zap.String("kind", job.Kind), zap.Int("attempt", job.Attempt+1))
	err := q.invoke(job)
	if err == nil {
		return
	}
	if IsPermanent(err) {
		log.Warn("job dropped", zap.Error(err))
		return
	}
	job.Attempt++
	if job.Attempt > q.cfg.MaxRetries {
		log.Error("job exceeded retries", zap.Error(err))
		return
	}
	log.Warn("job failed, retrying", zap.Error(err))
	q.retry(job)
}

// invoke runs the handler with a context that outlives Stop so drained jobs can finish.
func (q *Queue) invoke(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("job panicked: %v", r))
		}
	}()
	return q.handler(context.WithoutCancel(q.ctx), job)
}

func (q *Queue) retry(job Job) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	q.retries.Add(1)
	go func() {
		defer q.retries.Done()
		timer := time.NewTimer(q.cfg.RetryDelay * time.Duration(job.Attempt))
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.Enqueue(job); err != nil {
				q.logger.Error("failed to requeue job", zap.String("job_id", job.ID), zap.Error(err))
			}
		}
	}()
}
