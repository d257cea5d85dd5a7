package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Refresher reloads a cached view of an upstream source
type Refresher interface {
	Refresh(ctx context.Context) map[string]string
}

// RegistryRefreshWorker reloads the condition registry on a fixed period so requests
// rarely pay for a cold load
type RegistryRefreshWorker struct {
	*BaseWorker
	refresher Refresher
	logger    *zap.SugaredLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRegistryRefreshWorker creates a refresh worker. Only PollInterval, ShutdownTimeout and
// EnableRecovery of the config are used.
func NewRegistryRefreshWorker(config WorkerConfig, refresher Refresher, logger *zap.SugaredLogger) *RegistryRefreshWorker {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Minute
	}
	config.MaxRetries = 0
	return &RegistryRefreshWorker{
		BaseWorker: NewBaseWorker(config),
		refresher:  refresher,
		logger:     logger,
	}
}

// Start launches the refresh loop
func (w *RegistryRefreshWorker) Start(ctx context.Context) error {
	if !w.setRunning(true) {
		return NewWorkerError(w.Name(), "start", nil, "worker already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.mu.Lock()
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()

	w.logger.Infof("Starting registry refresh worker: %s (every %v)", w.Name(), w.config.PollInterval)
	go w.loop(loopCtx, done)
	return nil
}

// Stop cancels the loop and waits for the current refresh
func (w *RegistryRefreshWorker) Stop(ctx context.Context) error {
	if !w.setRunning(false) {
		return nil
	}

	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()
	cancel()

	timeout := w.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-done:
	case <-time.After(timeout):
		return NewWorkerError(w.Name(), "stop", context.DeadlineExceeded, "")
	case <-ctx.Done():
		return NewWorkerError(w.Name(), "stop", ctx.Err(), "")
	}

	w.logger.Infof("Registry refresh worker stopped: %s", w.Name())
	return nil
}

func (w *RegistryRefreshWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refreshOnce(ctx)
		}
	}
}

func (w *RegistryRefreshWorker) refreshOnce(ctx context.Context) {
	start := time.Now()
	err := w.runJob(ctx, func(ctx context.Context) error {
		conditions := w.refresher.Refresh(ctx)
		w.logger.Debugf("registry refreshed: %d conditions", len(conditions))
		return nil
	})
	if err != nil {
		w.logger.Errorf("registry refresh failed: %v", err)
	}
	w.recordJob(start, err)
}
