package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWorkerConfig(t *testing.T) {
	config := DefaultWorkerConfig("test-worker")

	assert.Equal(t, "test-worker", config.WorkerName)
	assert.Equal(t, 3, config.Concurrency)
	assert.Equal(t, 2*time.Second, config.PollInterval)
	assert.Equal(t, 30*time.Second, config.ShutdownTimeout)
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, 5*time.Second, config.RetryDelay)
	assert.True(t, config.EnableRecovery)
}

func TestNewBaseWorker_Normalizes(t *testing.T) {
	worker := NewBaseWorker(WorkerConfig{WorkerName: "w", Concurrency: 0, MaxRetries: -2})

	assert.Equal(t, "w", worker.Name())
	assert.Equal(t, 1, worker.Config().Concurrency)
	assert.Equal(t, 0, worker.Config().MaxRetries)
	assert.False(t, worker.IsRunning())
}

func TestBaseWorker_SetRunning(t *testing.T) {
	worker := NewBaseWorker(DefaultWorkerConfig("test-worker"))

	assert.True(t, worker.setRunning(true))
	assert.False(t, worker.setRunning(true))
	assert.True(t, worker.IsRunning())

	assert.True(t, worker.setRunning(false))
	assert.False(t, worker.setRunning(false))
	assert.False(t, worker.IsRunning())
}

func TestBaseWorker_Stats(t *testing.T) {
	worker := NewBaseWorker(DefaultWorkerConfig("test-worker"))

	stats := worker.Stats()
	assert.Equal(t, "test-worker", stats.WorkerName)
	assert.Equal(t, int64(0), stats.JobsProcessed)
	assert.False(t, stats.IsRunning)

	worker.setRunning(true)

	start := time.Now()
	time.Sleep(5 * time.Millisecond)
	worker.recordJob(start, nil)
	worker.recordJob(start, errors.New("boom"))

	stats = worker.Stats()
	assert.Equal(t, int64(2), stats.JobsProcessed)
	assert.Equal(t, int64(1), stats.JobsSucceeded)
	assert.Equal(t, int64(1), stats.JobsFailed)
	assert.Greater(t, stats.AverageProcessTime, time.Duration(0))
	assert.False(t, stats.LastJobTime.IsZero())
	assert.True(t, stats.IsRunning)
	assert.Greater(t, stats.Uptime, time.Duration(0))
}

func TestBaseWorker_ConcurrentAccess(t *testing.T) {
	worker := NewBaseWorker(DefaultWorkerConfig("concurrent-worker"))

	var wg sync.WaitGroup
	iterations := 100
	for i := 0; i < iterations; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.recordJob(time.Now(), nil)
			_ = worker.Stats()
		}()
	}
	wg.Wait()

	stats := worker.Stats()
	assert.Equal(t, int64(iterations), stats.JobsProcessed)
	assert.Equal(t, int64(iterations), stats.JobsSucceeded)
}

func TestBaseWorker_RunJob(t *testing.T) {
	t.Run("retries until success", func(t *testing.T) {
		worker := NewBaseWorker(WorkerConfig{MaxRetries: 2, RetryDelay: time.Millisecond})
		var calls int
		err := worker.runJob(context.Background(), func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		worker := NewBaseWorker(WorkerConfig{MaxRetries: 1, RetryDelay: time.Millisecond})
		var calls int
		err := worker.runJob(context.Background(), func(ctx context.Context) error {
			calls++
			return errors.New("permanent")
		})
		assert.EqualError(t, err, "permanent")
		assert.Equal(t, 2, calls)
	})

	t.Run("recovers panics", func(t *testing.T) {
		worker := NewBaseWorker(WorkerConfig{EnableRecovery: true})
		err := worker.runJob(context.Background(), func(ctx context.Context) error {
			panic("kaboom")
		})

		var panicErr *WorkerPanicError
		require.ErrorAs(t, err, &panicErr)
		assert.Equal(t, "worker panic: kaboom", err.Error())
	})

	t.Run("stops retrying on cancel", func(t *testing.T) {
		worker := NewBaseWorker(WorkerConfig{MaxRetries: 5, RetryDelay: time.Hour})
		ctx, cancel := context.WithCancel(context.Background())
		var calls int
		err := worker.runJob(ctx, func(ctx context.Context) error {
			calls++
			cancel()
			return errors.New("fail")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

// ============================================================================
// Worker pool
// ============================================================================

type countingRefresher struct {
	calls int32
}

func (r *countingRefresher) Refresh(ctx context.Context) map[string]string {
	atomic.AddInt32(&r.calls, 1)
	return map[string]string{"cond_a": "A"}
}

func TestWorkerPool_StartStop(t *testing.T) {
	refresher := &countingRefresher{}
	worker := NewRegistryRefreshWorker(WorkerConfig{
		WorkerName:      "registry-refresh",
		PollInterval:    5 * time.Millisecond,
		ShutdownTimeout: time.Second,
	}, refresher, nil)

	pool := NewWorkerPool()
	pool.AddWorker(worker)
	assert.Equal(t, 1, pool.Count())

	require.NoError(t, pool.StartAll(context.Background()))
	assert.True(t, worker.IsRunning())
	assert.Error(t, worker.Start(context.Background()), "second start must fail")

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&refresher.calls) >= 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, pool.StopAll(context.Background()))
	assert.False(t, worker.IsRunning())

	stats := pool.GetAllStats()
	require.Len(t, stats, 1)
	assert.Equal(t, "registry-refresh", stats[0].WorkerName)
	assert.GreaterOrEqual(t, stats[0].JobsSucceeded, int64(2))

	// stopping twice is harmless
	assert.NoError(t, worker.Stop(context.Background()))
}

func TestWorkerError(t *testing.T) {
	inner := errors.New("inner")

	err := NewWorkerError("w", "op", inner, "")
	assert.Equal(t, "w:op: inner", err.Error())
	assert.ErrorIs(t, err, inner)

	assert.Equal(t, "custom", NewWorkerError("w", "op", inner, "custom").Error())
	assert.Equal(t, "w:op: unknown error", NewWorkerError("w", "op", nil, "").Error())
}
