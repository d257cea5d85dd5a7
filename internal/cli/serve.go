package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ehr-chatbot/internal/server"

	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Infof("Starting %s %s...", server.ServiceName, Version)
			srv, err := server.NewServer(ctx, cfg, Version, logger)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().String("addr", ":8080", "Listen address")
	cmd.Flags().String("storage", "redis", "Session store: redis, postgres or memory")
	return cmd
}

// contextOrBackground guards commands run without ExecuteContext
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
