package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"ehr-chatbot/internal/server"
	"ehr-chatbot/internal/services"

	"github.com/spf13/cobra"
)

func newConditionsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "conditions",
		Short: "Print the condition name to id map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := contextOrBackground(cmd)
			kb := server.NewKnowledgeBase(ctx, cfg, logger)
			defer kb.Close()

			registry := services.NewConditionRegistry(kb, nil, cfg.Registry.TTL, logger)
			conditions := registry.Sorted(ctx)

			out := cmd.OutOrStdout()
			if asJSON {
				byName := make(map[string]string, len(conditions))
				for _, c := range conditions {
					byName[c.DisplayName] = c.ID
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(byName)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tID")
			for _, c := range conditions {
				fmt.Fprintf(tw, "%s\t%s\n", c.DisplayName, c.ID)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print a JSON object keyed by display name")
	return cmd
}
