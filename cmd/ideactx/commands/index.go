package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/ideactx-mcp/internal/indexer"
)

func newIndexCommand(flags *globalFlags) *cobra.Command {
	var (
		input       string
		batch       int
		workers     int
		skipModules bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed an IDE bridge symbol dump into the local vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return fmt.Errorf("--input is required")
			}
			path, err := filepath.Abs(input)
			if err != nil {
				return err
			}

			ctx, cancel := withSignals(cmd.Context())
			defer cancel()

			comps, stop, err := flags.startApp(ctx, "")
			if err != nil {
				return err
			}
			defer stop()

			if comps.Indexer == nil {
				return fmt.Errorf("vector index is disabled")
			}

			stats, err := comps.Indexer.IndexFile(ctx, path, &indexer.Config{
				BatchSize:         batch,
				Workers:           workers,
				SkipModuleEntries: skipModules,
			})
			if err != nil {
				if errors.Is(err, indexer.ErrIndexInProgress) {
					return fmt.Errorf("another indexing run is in progress")
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexing Statistics:\n")
			fmt.Fprintf(out, "  Run ID: %d\n", stats.RunID)
			fmt.Fprintf(out, "  Records Read: %d\n", stats.RecordsRead)
			fmt.Fprintf(out, "  Module Entries: %d\n", stats.ModuleEntries)
			fmt.Fprintf(out, "  Entries Indexed: %d\n", stats.EntriesIndexed)
			fmt.Fprintf(out, "  Entries Skipped: %d\n", stats.EntriesSkipped)
			fmt.Fprintf(out, "  Entries Failed: %d\n", stats.EntriesFailed)
			fmt.Fprintf(out, "  Duration: %v\n", stats.Duration)

			if len(stats.ErrorMessages) > 0 {
				fmt.Fprintf(out, "\nErrors:\n")
				for _, msg := range stats.ErrorMessages {
					fmt.Fprintf(out, "  - %s\n", msg)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "symbol dump JSON exported by the IDE bridge")
	cmd.Flags().IntVar(&batch, "batch", indexer.DefaultBatchSize, "embedding batch size")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent embedding batches")
	cmd.Flags().BoolVar(&skipModules, "skip-modules", false, "do not synthesize module entries")
	return cmd
}
