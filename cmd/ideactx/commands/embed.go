package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/ideactx-mcp/internal/embedder"
)

// previewValues is how many vector components embed prints
const previewValues = 8

func newEmbedCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed [text]",
		Short: "Embed text with the configured provider and print the vector shape",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}

			emb, err := embedder.New(cfg.Embedding)
			if err != nil {
				return err
			}
			defer func() { _ = emb.Close() }()

			ctx, cancel := withSignals(cmd.Context())
			defer cancel()

			start := time.Now()
			result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: strings.Join(args, " ")})
			if err != nil {
				return fmt.Errorf("embedding failed: %w", err)
			}

			n := min(previewValues, len(result.Vector))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Provider: %s\n", result.Provider)
			fmt.Fprintf(out, "Model: %s\n", result.Model)
			fmt.Fprintf(out, "Dimension: %d\n", result.Dimension)
			fmt.Fprintf(out, "Hash: %s\n", result.Hash)
			fmt.Fprintf(out, "Duration: %v\n", time.Since(start))
			fmt.Fprintf(out, "Vector[:%d]: %v\n", n, result.Vector[:n])
			return nil
		},
	}
	return cmd
}
