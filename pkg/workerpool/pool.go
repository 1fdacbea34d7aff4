// Package workerpool provides a bounded, generic worker pool with retries.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrPoolClosed is returned when submitting to a stopped pool.
	ErrPoolClosed = errors.New("pool is shutting down")
	// ErrQueueFull is returned by Submit when the queue has no room.
	ErrQueueFull = errors.New("task queue is full")
)

// Handler processes one task. Returning an error wrapped with Permanent
// stops further retries.
type Handler[T any] func(ctx context.Context, task T) error

// Config holds worker pool configuration
type Config struct {
	// Workers is the number of concurrent workers
	Workers int
	// QueueSize is the size of the task queue
	QueueSize int
	// MaxRetries is the maximum number of retries for failed tasks
	MaxRetries int
	// RetryDelay is the base delay between retries, multiplied by the attempt
	RetryDelay time.Duration
	// GracefulShutdownTimeout bounds how long Stop waits for workers
	GracefulShutdownTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Workers:                 16,
		QueueSize:               1024,
		MaxRetries:              3,
		RetryDelay:              100 * time.Millisecond,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

type job[T any] struct {
	ctx  context.Context
	id   string
	task T
	done chan error
}

// Pool runs tasks of type T on a fixed number of workers.
type Pool[T any] struct {
	config  Config
	handler Handler[T]
	logger  *zap.Logger

	jobs chan *job[T]
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc

	tasksSubmitted int64
	tasksCompleted int64
	tasksFailed    int64
	tasksRetried   int64
	activeWorkers  int64
	queueDepth     int64
}

// New creates a new worker pool
func New[T any](cfg Config, fn Handler[T], logger *zap.Logger) (*Pool[T], error) {
	if fn == nil {
		return nil, fmt.Errorf("worker function is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.GracefulShutdownTimeout <= 0 {
		cfg.GracefulShutdownTimeout = def.GracefulShutdownTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool[T]{
		config:  cfg,
		handler: fn,
		logger:  logger,
		jobs:    make(chan *job[T], cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start launches all workers
func (p *Pool[T]) Start() {
	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started",
		zap.Int("workers", p.config.Workers),
		zap.Int("queue_size", p.config.QueueSize))
}

// Submit enqueues a task without waiting. It fails with ErrQueueFull when
// the queue has no room.
func (p *Pool[T]) Submit(ctx context.Context, id string, task T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- &job[T]{ctx: ctx, id: id, task: task}:
		atomic.AddInt64(&p.tasksSubmitted, 1)
		atomic.AddInt64(&p.queueDepth, 1)
		return nil
	default:
		return ErrQueueFull
	}
}

// Do enqueues a task and waits for its final outcome, including retries.
func (p *Pool[T]) Do(ctx context.Context, id string, task T) error {
	j := &job[T]{ctx: ctx, id: id, task: task, done: make(chan error, 1)}

	if err := p.enqueue(ctx, j); err != nil {
		return err
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool[T]) enqueue(ctx context.Context, j *job[T]) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- j:
		atomic.AddInt64(&p.tasksSubmitted, 1)
		atomic.AddInt64(&p.queueDepth, 1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Stop stops accepting tasks and waits for queued tasks to drain, up to
// GracefulShutdownTimeout.
func (p *Pool[T]) Stop() error {
	p.logger.Info("stopping worker pool")

	p.cancel()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-time.After(p.config.GracefulShutdownTimeout):
		p.logger.Warn("worker pool shutdown timed out")
		return fmt.Errorf("worker pool shutdown timed out after %s", p.config.GracefulShutdownTimeout)
	}
}

func (p *Pool[T]) worker(id int) {
	defer p.wg.Done()

	atomic.AddInt64(&p.activeWorkers, 1)
	defer atomic.AddInt64(&p.activeWorkers, -1)

	for j := range p.jobs {
		atomic.AddInt64(&p.queueDepth, -1)
		err := p.process(j)
		if err == nil {
			atomic.AddInt64(&p.tasksCompleted, 1)
		} else {
			atomic.AddInt64(&p.tasksFailed, 1)
			p.logger.Warn("task failed",
				zap.String("task_id", j.id),
				zap.Int("worker_id", id),
				zap.Error(err))
		}
		if j.done != nil {
			j.done <- err
		}
	}
}

// process runs one job with retries and linear backoff.
func (p *Pool[T]) process(j *job[T]) error {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = p.handler(ctx, j.task)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) {
			return lastErr
		}
		if attempt == p.config.MaxRetries {
			break
		}

		atomic.AddInt64(&p.tasksRetried, 1)
		p.logger.Debug("retrying task",
			zap.String("task_id", j.id),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.config.RetryDelay * time.Duration(attempt+1)):
		}
	}

	return fmt.Errorf("task failed after %d retries: %w", p.config.MaxRetries, lastErr)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or any error it wraps, was marked with
// Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Stats holds pool counters.
type Stats struct {
	TasksSubmitted int64
	TasksCompleted int64
	TasksFailed    int64
	TasksRetried   int64
	ActiveWorkers  int64
	QueueDepth     int64
	QueueCapacity  int
	Workers        int
}

// Stats returns current pool statistics
func (p *Pool[T]) Stats() Stats {
	return Stats{
		TasksSubmitted: atomic.LoadInt64(&p.tasksSubmitted),
		TasksCompleted: atomic.LoadInt64(&p.tasksCompleted),
		TasksFailed:    atomic.LoadInt64(&p.tasksFailed),
		TasksRetried:   atomic.LoadInt64(&p.tasksRetried),
		ActiveWorkers:  atomic.LoadInt64(&p.activeWorkers),
		QueueDepth:     atomic.LoadInt64(&p.queueDepth),
		QueueCapacity:  p.config.QueueSize,
		Workers:        p.config.Workers,
	}
}

// IsHealthy reports whether the queue is below 90% of capacity.
func (p *Pool[T]) IsHealthy() bool {
	stats := p.Stats()
	return float64(stats.QueueDepth)/float64(stats.QueueCapacity) < 0.9
}
