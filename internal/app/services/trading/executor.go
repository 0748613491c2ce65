package trading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hydrochain/marketplace/internal/app/metrics"
	"github.com/hydrochain/marketplace/internal/app/system"
	"github.com/hydrochain/marketplace/pkg/logger"
)

var _ system.Service = (*Executor)(nil)

// ErrNotRunning is returned when work is submitted before the executor has
// started or after it has stopped.
var ErrNotRunning = fmt.Errorf("trade executor is not running")

type job struct {
	operation string
	fn        func(context.Context) error
	result    chan error
}

// Executor runs trade operations on a bounded worker pool so that slow
// storage writes never block the HTTP serving goroutines.
type Executor struct {
	log       *logger.Logger
	workers   int
	queueSize int

	mu      sync.Mutex
	queue   chan job
	cancel  context.CancelFunc
	runCtx  context.Context
	wg      sync.WaitGroup
	running bool
}

// NewExecutor creates a worker pool with the given worker count and queue
// capacity.
func NewExecutor(workers, queueSize int, log *logger.Logger) *Executor {
	if log == nil {
		log = logger.NewDefault("trade-executor")
	}
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = workers * 8
	}
	return &Executor{
		log:       log,
		workers:   workers,
		queueSize: queueSize,
	}
}

func (e *Executor) Name() string { return "trade-executor" }

func (e *Executor) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.runCtx = runCtx
	e.cancel = cancel
	e.queue = make(chan job, e.queueSize)
	e.running = true
	queue := e.queue
	e.mu.Unlock()

	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for {
				select {
				case <-runCtx.Done():
					return
				case j := <-queue:
					e.run(runCtx, queue, j)
				}
			}
		}()
	}

	e.log.WithField("workers", e.workers).
		WithField("queue_size", e.queueSize).
		Info("trade executor started")
	return nil
}

func (e *Executor) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	cancel := e.cancel
	e.running = false
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	e.log.Info("trade executor stopped")
	return nil
}

// Submit enqueues fn on the pool and blocks until it completes or ctx is
// done. The caller's context carries the result deadline.
func (e *Executor) Submit(ctx context.Context, operation string, fn func(context.Context) error) error {
	e.mu.Lock()
	running := e.running
	queue := e.queue
	runCtx := e.runCtx
	e.mu.Unlock()

	if !running {
		return ErrNotRunning
	}

	j := job{operation: operation, fn: fn, result: make(chan error, 1)}
	select {
	case queue <- j:
		metrics.SetTradeQueueDepth(len(queue))
	case <-ctx.Done():
		return fmt.Errorf("trade queue full: %w", ctx.Err())
	case <-runCtx.Done():
		return ErrNotRunning
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) run(ctx context.Context, queue chan job, j job) {
	metrics.SetTradeQueueDepth(len(queue))
	start := time.Now()
	err := j.fn(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
		e.log.WithError(err).
			WithField("operation", j.operation).
			Warn("trade execution failed")
	}
	metrics.RecordTradeExecution(j.operation, status, time.Since(start))
	j.result <- err
}
