package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrPoolShutdown is returned when submitting to a pool that is stopping
var ErrPoolShutdown = errors.New("worker pool is shutting down")

// WorkerPoolConfig configures worker pool behavior
type WorkerPoolConfig struct {
	Workers         int           // Concurrent series analyzed
	QueueSize       int           // Maximum queued tasks
	WorkerTimeout   time.Duration // Per-task timeout, zero disables it
	SubmitTimeout   time.Duration // How long SubmitTask waits on a full queue
	ShutdownTimeout time.Duration // Graceful shutdown timeout
}

// DefaultWorkerPoolConfig returns sensible defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:         4,
		QueueSize:       100,
		WorkerTimeout:   10 * time.Minute,
		SubmitTimeout:   5 * time.Second,
		ShutdownTimeout: 60 * time.Second,
	}
}

// Task represents a unit of work to be processed
type Task struct {
	ID          string
	ProcessFunc func(ctx context.Context) error
	ResultChan  chan TaskResult
}

// TaskResult represents the result of task execution
type TaskResult struct {
	TaskID    string
	Success   bool
	Error     error
	Duration  time.Duration
	StartTime time.Time
	EndTime   time.Time
}

// WorkerPool runs tasks on a fixed number of goroutines with graceful shutdown
type WorkerPool struct {
	config WorkerPoolConfig
	logger *zap.Logger

	taskQueue chan *Task

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	tasksSubmitted int64
	tasksCompleted int64
	tasksFailed    int64
	activeWorkers  int64

	started       bool
	shutdown      int32
	shutdownMutex sync.RWMutex
}

// NewWorkerPool creates a new worker pool with the given configuration
func NewWorkerPool(ctx context.Context, config WorkerPoolConfig, logger *zap.Logger) *WorkerPool {
	defaults := DefaultWorkerPoolConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.SubmitTimeout <= 0 {
		config.SubmitTimeout = defaults.SubmitTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}

	poolCtx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		config:    config,
		logger:    logger,
		taskQueue: make(chan *Task, config.QueueSize),
		ctx:       poolCtx,
		cancel:    cancel,
	}
}

// Start launches the worker goroutines
func (wp *WorkerPool) Start() error {
	wp.shutdownMutex.Lock()
	defer wp.shutdownMutex.Unlock()

	if atomic.LoadInt32(&wp.shutdown) == 1 {
		return ErrPoolShutdown
	}
	if wp.started {
		return fmt.Errorf("worker pool already started")
	}
	wp.started = true

	wp.logger.Info("Starting worker pool",
		zap.Int("workers", wp.config.Workers),
		zap.Int("queue_size", wp.config.QueueSize))

	for i := 0; i < wp.config.Workers; i++ {
		wp.wg.Add(1)
		go wp.runWorker(wp.logger.With(zap.String("worker", fmt.Sprintf("worker-%d", i))))
	}

	return nil
}

// runWorker runs the main worker loop
func (wp *WorkerPool) runWorker(logger *zap.Logger) {
	defer wp.wg.Done()

	logger.Debug("Worker started")
	defer logger.Debug("Worker stopped")

	for {
		select {
		case <-wp.ctx.Done():
			return

		case task, ok := <-wp.taskQueue:
			if !ok {
				return // Channel closed, queue drained
			}

			atomic.AddInt64(&wp.activeWorkers, 1)
			result := wp.processTask(logger, task)
			atomic.AddInt64(&wp.activeWorkers, -1)

			atomic.AddInt64(&wp.tasksCompleted, 1)
			if !result.Success {
				atomic.AddInt64(&wp.tasksFailed, 1)
			}

			if task.ResultChan != nil {
				select {
				case task.ResultChan <- result:
				case <-wp.ctx.Done():
					return
				}
			}
		}
	}
}

// processTask executes a single task with timeout and panic handling
func (wp *WorkerPool) processTask(logger *zap.Logger, task *Task) TaskResult {
	startTime := time.Now()

	taskCtx, taskCancel := wp.taskContext()
	defer taskCancel()

	logger.Debug("Processing task", zap.String("task_id", task.ID))

	done := make(chan error, 1) // Buffered to prevent goroutine leak

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("task panicked: %v", r)
			}
		}()

		if err := taskCtx.Err(); err != nil {
			done <- err
			return
		}
		done <- task.ProcessFunc(taskCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-taskCtx.Done():
		err = fmt.Errorf("task %s aborted: %w", task.ID, taskCtx.Err())
	}

	endTime := time.Now()
	duration := endTime.Sub(startTime)

	if err != nil {
		logger.Error("Task failed",
			zap.String("task_id", task.ID),
			zap.Error(err),
			zap.Duration("duration", duration))
	} else {
		logger.Debug("Task completed",
			zap.String("task_id", task.ID),
			zap.Duration("duration", duration))
	}

	return TaskResult{
		TaskID:    task.ID,
		Success:   err == nil,
		Error:     err,
		Duration:  duration,
		StartTime: startTime,
		EndTime:   endTime,
	}
}

func (wp *WorkerPool) taskContext() (context.Context, context.CancelFunc) {
	if wp.config.WorkerTimeout > 0 {
		return context.WithTimeout(wp.ctx, wp.config.WorkerTimeout)
	}
	return context.WithCancel(wp.ctx)
}

// SubmitTask queues a task, waiting up to SubmitTimeout for queue space
func (wp *WorkerPool) SubmitTask(task *Task) error {
	wp.shutdownMutex.RLock()
	defer wp.shutdownMutex.RUnlock()

	if atomic.LoadInt32(&wp.shutdown) == 1 {
		return ErrPoolShutdown
	}
	if task == nil || task.ProcessFunc == nil {
		return fmt.Errorf("task has no process function")
	}

	timeout := time.NewTimer(wp.config.SubmitTimeout)
	defer timeout.Stop()

	select {
	case wp.taskQueue <- task:
		atomic.AddInt64(&wp.tasksSubmitted, 1)
		return nil
	case <-wp.ctx.Done():
		return ErrPoolShutdown
	case <-timeout.C:
		return fmt.Errorf("queue full after %v", wp.config.SubmitTimeout)
	}
}

// Shutdown stops accepting tasks, lets workers drain the queue and waits
// for them up to ShutdownTimeout before cancelling in-flight tasks.
func (wp *WorkerPool) Shutdown() error {
	wp.shutdownMutex.Lock()
	if atomic.SwapInt32(&wp.shutdown, 1) == 1 {
		wp.shutdownMutex.Unlock()
		return nil // Already shutting down
	}
	close(wp.taskQueue)
	wp.shutdownMutex.Unlock()

	wp.logger.Info("Shutting down worker pool")

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		wp.logger.Info("All workers stopped gracefully")
	case <-time.After(wp.config.ShutdownTimeout):
		wp.logger.Warn("Shutdown timeout reached, cancelling in-flight tasks")
		err = fmt.Errorf("shutdown timed out after %v", wp.config.ShutdownTimeout)
	}

	wp.cancel()
	wp.logger.Info("Worker pool shutdown complete")
	return err
}

// Statistics returns current worker pool statistics
func (wp *WorkerPool) Statistics() WorkerPoolStats {
	return WorkerPoolStats{
		TasksSubmitted: atomic.LoadInt64(&wp.tasksSubmitted),
		TasksCompleted: atomic.LoadInt64(&wp.tasksCompleted),
		TasksFailed:    atomic.LoadInt64(&wp.tasksFailed),
		ActiveWorkers:  atomic.LoadInt64(&wp.activeWorkers),
		WorkerCount:    wp.config.Workers,
		QueueSize:      len(wp.taskQueue),
		QueueCapacity:  cap(wp.taskQueue),
	}
}

// WorkerPoolStats contains worker pool statistics
type WorkerPoolStats struct {
	TasksSubmitted int64 `json:"tasks_submitted"`
	TasksCompleted int64 `json:"tasks_completed"`
	TasksFailed    int64 `json:"tasks_failed"`
	ActiveWorkers  int64 `json:"active_workers"`
	WorkerCount    int   `json:"worker_count"`
	QueueSize      int   `json:"queue_size"`
	QueueCapacity  int   `json:"queue_capacity"`
}
