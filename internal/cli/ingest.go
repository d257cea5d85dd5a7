package cli

import (
	"encoding/json"
	"errors"

	kbfile "ehr-chatbot/config"
	"ehr-chatbot/internal/server"
	"ehr-chatbot/internal/workers"

	"github.com/spf13/cobra"
)

func newIngestCommand() *cobra.Command {
	var (
		file        string
		batchSize   int
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed knowledge base entries and load them into the Chroma collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			entries, err := kbfile.LoadFromFile(file)
			if err != nil {
				return err
			}
			logger.Infof("Loaded %d knowledge base entries from %s", len(entries), file)

			ctx := contextOrBackground(cmd)
			kb := server.NewKnowledgeBase(ctx, cfg, logger)
			defer kb.Close()

			embedder, err := server.NewEmbedder(cfg, logger)
			if err != nil {
				return err
			}

			workerConfig := workers.DefaultWorkerConfig("ingest")
			workerConfig.Concurrency = concurrency
			worker := workers.NewIngestWorker(workers.IngestWorkerConfig{
				WorkerConfig: workerConfig,
				BatchSize:    batchSize,
				Embedder:     embedder,
				Store:        kb,
				Logger:       logger,
			})

			report, runErr := worker.Run(ctx, entries)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with knowledge base entries")
	cmd.Flags().IntVar(&batchSize, "batch-size", workers.DefaultIngestBatchSize, "Entries embedded per request")
	cmd.Flags().IntVar(&concurrency, "concurrency", 3, "Batches processed in parallel")
	return cmd
}
