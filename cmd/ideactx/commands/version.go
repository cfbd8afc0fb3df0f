package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/ideactx-mcp/internal/mcp"
	"github.com/dshills/ideactx-mcp/internal/storage"
)

func newVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		// skips logging setup
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ideactx MCP Server\n")
			fmt.Fprintf(out, "Version: %s\n", info.Version)
			fmt.Fprintf(out, "Protocol Server Version: %s\n", mcp.ServerVersion)
			fmt.Fprintf(out, "Build Time: %s\n", info.BuildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
			fmt.Fprintf(out, "Vector Extension: %v\n", storage.VectorExtensionAvailable)
		},
	}
}
