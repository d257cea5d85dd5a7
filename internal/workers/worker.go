package workers

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Worker defines the interface for background workers
type Worker interface {
	// Start begins processing
	Start(ctx context.Context) error

	// Stop shuts the worker down and waits for in-flight work
	Stop(ctx context.Context) error

	// Name returns the worker's name
	Name() string

	// IsRunning returns whether the worker is currently running
	IsRunning() bool

	// Stats returns worker statistics
	Stats() WorkerStats
}

// WorkerStats represents statistics about a worker
type WorkerStats struct {
	WorkerName         string        `json:"worker_name"`
	JobsProcessed      int64         `json:"jobs_processed"`
	JobsSucceeded      int64         `json:"jobs_succeeded"`
	JobsFailed         int64         `json:"jobs_failed"`
	AverageProcessTime time.Duration `json:"average_process_time"`
	LastJobTime        time.Time     `json:"last_job_time,omitempty"`
	Uptime             time.Duration `json:"uptime"`
	IsRunning          bool          `json:"is_running"`
}

// WorkerConfig holds configuration for workers
type WorkerConfig struct {
	// WorkerName is a unique identifier for this worker instance
	WorkerName string

	// Concurrency is the number of jobs processed in parallel
	Concurrency int

	// PollInterval is the period of scheduled workers
	PollInterval time.Duration

	// ShutdownTimeout bounds how long Stop waits
	ShutdownTimeout time.Duration

	// MaxRetries is the number of extra attempts for a failed job
	MaxRetries int

	// RetryDelay is the delay between attempts
	RetryDelay time.Duration

	// EnableRecovery turns job panics into errors
	EnableRecovery bool
}

// DefaultWorkerConfig returns a worker configuration with sensible defaults
func DefaultWorkerConfig(workerName string) WorkerConfig {
	return WorkerConfig{
		WorkerName:      workerName,
		Concurrency:     3,
		PollInterval:    2 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MaxRetries:      3,
		RetryDelay:      5 * time.Second,
		EnableRecovery:  true,
	}
}

// BaseWorker provides running state and job statistics
type BaseWorker struct {
	config  WorkerConfig
	running bool
	mu      sync.RWMutex

	jobsProcessed    int64
	jobsSucceeded    int64
	jobsFailed       int64
	totalProcessTime time.Duration
	startTime        time.Time
	lastJobTime      time.Time
	statsMu          sync.RWMutex
}

// NewBaseWorker creates a new base worker
func NewBaseWorker(config WorkerConfig) *BaseWorker {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &BaseWorker{config: config}
}

// Name returns the worker's name
func (w *BaseWorker) Name() string {
	return w.config.WorkerName
}

// IsRunning returns whether the worker is currently running
func (w *BaseWorker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Config returns the worker configuration
func (w *BaseWorker) Config() WorkerConfig {
	return w.config
}

// setRunning flips the running state, returning false when it was already in that state
func (w *BaseWorker) setRunning(running bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running == running {
		return false
	}
	w.running = running
	if running {
		w.startTime = time.Now()
	}
	return true
}

// Stats returns worker statistics
func (w *BaseWorker) Stats() WorkerStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()

	var avgProcessTime time.Duration
	if w.jobsProcessed > 0 {
		avgProcessTime = w.totalProcessTime / time.Duration(w.jobsProcessed)
	}

	w.mu.RLock()
	var uptime time.Duration
	if !w.startTime.IsZero() {
		uptime = time.Since(w.startTime)
	}
	running := w.running
	w.mu.RUnlock()

	return WorkerStats{
		WorkerName:         w.config.WorkerName,
		JobsProcessed:      w.jobsProcessed,
		JobsSucceeded:      w.jobsSucceeded,
		JobsFailed:         w.jobsFailed,
		AverageProcessTime: avgProcessTime,
		LastJobTime:        w.lastJobTime,
		Uptime:             uptime,
		IsRunning:          running,
	}
}

// recordJob records the outcome of one job
func (w *BaseWorker) recordJob(startTime time.Time, err error) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()

	w.jobsProcessed++
	if err != nil {
		w.jobsFailed++
	} else {
		w.jobsSucceeded++
	}
	w.totalProcessTime += time.Since(startTime)
	w.lastJobTime = time.Now()
}

// runJob executes fn with optional panic recovery and retries
func (w *BaseWorker) runJob(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.config.RetryDelay):
			}
		}

		if w.config.EnableRecovery {
			err = recoverable(ctx, fn)
		} else {
			err = fn(ctx)
		}
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

func recoverable(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &WorkerPanicError{Panic: r}
		}
	}()
	return fn(ctx)
}

// ============================================================================
// Worker pool
// ============================================================================

// WorkerPool manages multiple workers
type WorkerPool struct {
	workers []Worker
	mu      sync.RWMutex
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool() *WorkerPool {
	return &WorkerPool{workers: make([]Worker, 0)}
}

// AddWorker adds a worker to the pool
func (p *WorkerPool) AddWorker(worker Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workers = append(p.workers, worker)
}

// StartAll starts all workers in the pool
func (p *WorkerPool) StartAll(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, worker := range p.workers {
		if err := worker.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops all workers concurrently and returns the first error
func (p *WorkerPool) StopAll(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var wg sync.WaitGroup
	errChan := make(chan error, len(p.workers))

	for _, worker := range p.workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			if err := w.Stop(ctx); err != nil {
				errChan <- err
			}
		}(worker)
	}

	wg.Wait()
	close(errChan)

	select {
	case err := <-errChan:
		return err
	default:
		return nil
	}
}

// GetAllStats returns statistics for all workers
func (p *WorkerPool) GetAllStats() []WorkerStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := make([]WorkerStats, 0, len(p.workers))
	for _, worker := range p.workers {
		stats = append(stats, worker.Stats())
	}
	return stats
}

// Count returns the number of workers in the pool
func (p *WorkerPool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}

// ============================================================================
// Errors
// ============================================================================

// WorkerError represents a worker-specific error
type WorkerError struct {
	WorkerName string
	Operation  string
	Err        error
	Message    string
}

func (e *WorkerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	prefix := e.WorkerName + ":" + e.Operation
	if e.Err != nil {
		return prefix + ": " + e.Err.Error()
	}
	return prefix + ": unknown error"
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// NewWorkerError creates a new worker error
func NewWorkerError(workerName, operation string, err error, message string) *WorkerError {
	return &WorkerError{
		WorkerName: workerName,
		Operation:  operation,
		Err:        err,
		Message:    message,
	}
}

// WorkerPanicError represents a panic that occurred during job processing
type WorkerPanicError struct {
	Panic interface{}
}

func (e *WorkerPanicError) Error() string {
	switch v := e.Panic.(type) {
	case string:
		return "worker panic: " + v
	case error:
		return "worker panic: " + v.Error()
	default:
		return fmt.Sprintf("worker panic: %v", v)
	}
}
