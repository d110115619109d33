// Package worker retries compensating releases taken off the release queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/podium/internal/adapters/mq/queue"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultMaxAttempts    = 5
	defaultBackoff        = 200 * time.Millisecond
	maxBackoff            = 30 * time.Second
	defaultAttemptTimeout = 2 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Releaser frees a ledger reservation.
type Releaser interface {
	Release(ctx context.Context, key model.GrantKey, grantID string) error
}

// Queue defines how workers receive and re-submit jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
	Enqueue(ctx context.Context, j queue.Job) bool
}

// Worker processes release jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker releases reservations and re-enqueues failed attempts with
// exponential backoff until maxAttempts is reached.
type InMemoryWorker struct {
	queue    Queue
	releaser Releaser
	name     string

	maxAttempts    int
	backoff        time.Duration
	attemptTimeout time.Duration

	// Shutdown control
	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
	retries      sync.WaitGroup

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, releaser Releaser, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:          q,
		releaser:       releaser,
		name:           "worker",
		maxAttempts:    defaultMaxAttempts,
		backoff:        defaultBackoff,
		attemptTimeout: defaultAttemptTimeout,
		shutdown:       make(chan struct{}),
		done:           make(chan struct{}),
		logger:         logger.Get().Named("release-worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.With(logger.String("worker", w.name))
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				// Channel closed, worker should stop
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Warn(ctx, "release attempt failed", logger.Error(err), logger.Int("attempt", j.Attempt))
			}
		}
	}
}

// Shutdown gracefully stops the worker. Pending retry timers are abandoned.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process attempts one release. On failure the job is re-enqueued after a
// backoff until the attempt budget is spent.
func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	actx, cancel := context.WithTimeout(ctx, w.attemptTimeout)
	err := w.releaser.Release(actx, j.Key, j.GrantID)
	cancel()
	if err == nil {
		metrics.RecordCompensation("released")
		w.logger.Info(ctx, "reservation released",
			logger.String("key", j.Key.String()),
			logger.Int("attempt", j.Attempt),
			logger.String("reason", j.Reason),
		)
		return nil
	}

	metrics.RecordWorkerError()
	metrics.RecordErrorByComponent("worker", "release_failed")

	if j.Attempt >= w.maxAttempts {
		metrics.RecordCompensation("dropped")
		w.logger.Error(ctx, "giving up on release, reservation left in place",
			logger.String("key", j.Key.String()),
			logger.Int("attempts", j.Attempt),
			logger.Error(err),
		)
		return fmt.Errorf("release %s: attempts exhausted: %w", j.Key, err)
	}

	next := j
	next.Attempt++
	next.EnqueuedAt = time.Time{}
	delay := Backoff(w.backoff, j.Attempt)

	w.retries.Add(1)
	go func() {
		defer w.retries.Done()
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		}
		metrics.RecordWorkerRetry()
		if !w.queue.Enqueue(ctx, next) {
			metrics.RecordCompensation("dropped")
			w.logger.Error(ctx, "could not re-enqueue release", logger.String("key", next.Key.String()))
		}
	}()
	return fmt.Errorf("release %s: %w", j.Key, err)
}

// Backoff returns base * 2^(attempt-1), capped.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// Pool manages multiple workers.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	releaser Releaser

	// Shutdown control
	shutdown chan struct{}
	once     sync.Once
	started  atomic.Bool

	logger logger.Logger
}

// NewPool creates a new worker pool. opts are applied to every worker.
func NewPool(workerCount int, q Queue, releaser Releaser, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		releaser: releaser,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("release-pool"),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, releaser, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))

	go p.startMetricsUpdater(ctx)
}

// startMetricsUpdater refreshes the queue gauges in the background.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	lener, ok := p.queue.(interface{ Len(context.Context) int })
	if !ok {
		return
	}
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			lener.Len(ctx)
		}
	}
}

// Shutdown closes the queue and waits for every worker to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() { close(p.shutdown) })

	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	if !p.started.Load() {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	for _, w := range p.workers {
		w.retries.Wait()
	}
	metrics.UpdateWorkerActiveCount(0)
	return nil
}
