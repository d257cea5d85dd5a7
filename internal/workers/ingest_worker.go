package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ehr-chatbot/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultIngestBatchSize is the number of entries embedded per request
const DefaultIngestBatchSize = 32

// BatchEmbedder turns documents into vectors
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// KnowledgeStore persists embedded knowledge entries
type KnowledgeStore interface {
	EnsureCollection(ctx context.Context) error
	StoreEntries(ctx context.Context, entries []models.KnowledgeEntry, embeddings [][]float32) error
}

// IngestReport summarizes one ingestion run
type IngestReport struct {
	Total   int `json:"total"`
	Stored  int `json:"stored"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Batches int `json:"batches"`
}

// IngestWorker embeds knowledge entries in batches and upserts them into the knowledge base.
// Batches run with the configured concurrency and each batch is retried on failure.
type IngestWorker struct {
	*BaseWorker
	embedder  BatchEmbedder
	store     KnowledgeStore
	batchSize int
	logger    *zap.SugaredLogger
}

// IngestWorkerConfig holds configuration for the ingest worker
type IngestWorkerConfig struct {
	WorkerConfig WorkerConfig
	BatchSize    int
	Embedder     BatchEmbedder
	Store        KnowledgeStore
	Logger       *zap.SugaredLogger
}

// NewIngestWorker creates a new ingest worker
func NewIngestWorker(config IngestWorkerConfig) *IngestWorker {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultIngestBatchSize
	}
	return &IngestWorker{
		BaseWorker: NewBaseWorker(config.WorkerConfig),
		embedder:   config.Embedder,
		store:      config.Store,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Run ingests entries and blocks until every batch has finished. Invalid entries are
// skipped. The returned error joins the failures of batches that exhausted their retries.
func (w *IngestWorker) Run(ctx context.Context, entries []models.KnowledgeEntry) (IngestReport, error) {
	if !w.setRunning(true) {
		return IngestReport{}, NewWorkerError(w.Name(), "run", nil, "worker already running")
	}
	defer w.setRunning(false)

	report := IngestReport{Total: len(entries)}

	// 1. Validate
	valid := make([]models.KnowledgeEntry, 0, len(entries))
	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			w.logger.Warnf("skipping knowledge entry: %v", err)
			report.Skipped++
			continue
		}
		valid = append(valid, entry)
	}
	if len(valid) == 0 {
		return report, nil
	}

	// 2. Make sure the collection exists
	if err := w.store.EnsureCollection(ctx); err != nil {
		return report, NewWorkerError(w.Name(), "ensure_collection", err, "")
	}

	// 3. Embed and store batches concurrently
	batches := splitBatches(valid, w.batchSize)
	report.Batches = len(batches)

	var (
		mu       sync.Mutex
		failures []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.Concurrency)

	for i, batch := range batches {
		g.Go(func() error {
			start := time.Now()
			err := w.runJob(gctx, func(ctx context.Context) error {
				return w.storeBatch(ctx, batch)
			})
			w.recordJob(start, err)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				w.logger.Errorf("batch %d/%d failed: %v", i+1, len(batches), err)
				report.Failed += len(batch)
				failures = append(failures, fmt.Errorf("batch %d: %w", i+1, err))
				return nil
			}
			report.Stored += len(batch)
			w.logger.Infof("✅ Stored batch %d/%d (%d entries)", i+1, len(batches), len(batch))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		failures = append(failures, err)
	}
	if len(failures) > 0 {
		return report, NewWorkerError(w.Name(), "ingest", errors.Join(failures...), "")
	}
	return report, nil
}

// Start is unused for batch ingestion
func (w *IngestWorker) Start(ctx context.Context) error {
	return NewWorkerError(w.Name(), "start", nil, "ingest worker runs on demand, use Run")
}

// Stop is a no-op, Run returns once every batch finishes
func (w *IngestWorker) Stop(ctx context.Context) error {
	return nil
}

func (w *IngestWorker) storeBatch(ctx context.Context, batch []models.KnowledgeEntry) error {
	texts := make([]string, len(batch))
	for i, entry := range batch {
		texts[i] = entry.Document()
	}

	embeddings, err := w.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("got %d embeddings for %d entries", len(embeddings), len(batch))
	}
	return w.store.StoreEntries(ctx, batch, embeddings)
}

func splitBatches(entries []models.KnowledgeEntry, size int) [][]models.KnowledgeEntry {
	batches := make([][]models.KnowledgeEntry, 0, (len(entries)+size-1)/size)
	for start := 0; start < len(entries); start += size {
		end := start + size
		if end > len(entries) {
			end = len(entries)
		}
		batches = append(batches, entries[start:end])
	}
	return batches
}
