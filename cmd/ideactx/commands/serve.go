package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dshills/ideactx-mcp/internal/mcp"
	"github.com/dshills/ideactx-mcp/internal/storage"
)

// Transports
const (
	transportStdio = "stdio"
	transportHTTP  = "http"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	var (
		transport string
		address   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: "Run the MCP server exposing search_java_symbol, search_java_class, health_check " +
			"and index_symbols. The stdio transport is the default; the http transport serves " +
			"MCP at /mcp alongside the JSON API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch transport {
			case transportStdio:
				return runStdio(cmd, flags)
			case transportHTTP:
				return runHTTP(cmd, flags, address)
			default:
				return fmt.Errorf("unsupported transport: %s (supported: stdio, http)", transport)
			}
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", transportStdio, "transport (stdio, http)")
	cmd.Flags().StringVarP(&address, "address", "a", "", "listen address for the http transport (default from IDEACTX_HTTP_ADDR)")
	return cmd
}

func newHTTPCommand(flags *globalFlags) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "http",
		Short: "Run the HTTP API",
		Long:  "Serve POST /api/search, POST /api/strategy, GET /healthz, GET /metrics and the MCP streamable transport at /mcp.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHTTP(cmd, flags, address)
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "", "listen address (default from IDEACTX_HTTP_ADDR)")
	return cmd
}

func runStdio(cmd *cobra.Command, flags *globalFlags) error {
	ctx, cancel := withSignals(cmd.Context())
	defer cancel()

	slog.Info("ideactx MCP server starting",
		slog.String("version", mcp.ServerVersion),
		slog.String("build_mode", storage.BuildMode),
		slog.String("driver", storage.DriverName),
		slog.Bool("vector_extension", storage.VectorExtensionAvailable),
	)

	comps, stop, err := flags.startApp(ctx, "")
	if err != nil {
		return err
	}
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("MCP server ready, listening on stdio")
		errChan <- comps.MCP.Serve(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	slog.Info("server stopped")
	return nil
}

func runHTTP(cmd *cobra.Command, flags *globalFlags, address string) error {
	ctx, cancel := withSignals(cmd.Context())
	defer cancel()

	comps, stop, err := flags.startApp(ctx, address)
	if err != nil {
		return err
	}
	defer stop()

	return comps.HTTP.ListenAndServe(ctx, comps.Settings.HTTPAddr)
}
