// Package cli holds the ehr-chatbot command tree
package cli

import (
	"errors"
	"fmt"

	"ehr-chatbot/internal/config"
	"ehr-chatbot/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is overridden at build time with -ldflags "-X ehr-chatbot/internal/cli.Version=..."
var Version = "dev"

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "ehr-chatbot",
		Short: "Condition scoped patient Q&A service",
		Long: "ehr-chatbot answers patient questions about one medical condition per session. " +
			"Knowledge base answers are served when retrieval is confident; otherwise the " +
			"service asks for clarification or falls back to a generative backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "Path to config file (yaml, json or toml)")
	root.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")

	root.AddCommand(
		newServeCommand(),
		newConditionsCommand(),
		newIngestCommand(),
		newVersionCommand(),
	)
	return root
}

// loadConfig reads configuration for cmd and builds the logger. Validation problems are
// reported together.
func loadConfig(cmd *cobra.Command) (*config.Config, *zap.SugaredLogger, error) {
	configFile, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	logger, err := logging.New(cfg.LoggerOptions())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
