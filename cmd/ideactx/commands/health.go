package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/ideactx-mcp/internal/health"
)

func newHealthCommand(flags *globalFlags) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the IDE bridge, vector index, embedder, reranker and fixtures",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withSignals(cmd.Context())
			defer cancel()

			comps, stop, err := flags.startApp(ctx, "")
			if err != nil {
				return err
			}
			defer stop()

			report := comps.Health.Check(ctx)
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if strict && report.Status != health.StatusOK {
				return fmt.Errorf("status %s", report.Status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when degraded")
	return cmd
}
