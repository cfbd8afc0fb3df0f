package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/dshills/ideactx-mcp/internal/pipeline"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

type searchFlags struct {
	limit        int
	moduleFilter string
	moduleHint   string
	levels       []string
	maxTokens    int
	scenarioID   string
	strategyOnly bool
}

func newSearchCommand(flags *globalFlags) *cobra.Command {
	sf := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run one staged search and print the payload as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			searchArgs := sf.args(strings.Join(args, " "), cmd)
			req, err := searchArgs.Request()
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

			if sf.strategyOnly {
				return writeJSON(cmd.OutOrStdout(), comps.Pipeline.Derive(req))
			}

			resp, err := comps.Pipeline.Search(ctx, req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), pipeline.NewPayload(searchArgs, resp))
		},
	}

	f := cmd.Flags()
	f.IntVarP(&sf.limit, "limit", "n", types.DefaultLimit, "maximum results (1-20)")
	f.StringVarP(&sf.moduleFilter, "module", "m", "", "restrict results to one module")
	f.StringVar(&sf.moduleHint, "module-hint", "", "prefer one module without restricting")
	f.StringSliceVar(&sf.levels, "levels", nil, "preferred levels: module, class, method")
	f.IntVar(&sf.maxTokens, "max-tokens", 0, "context token budget (1000-20000)")
	f.StringVar(&sf.scenarioID, "scenario", "", "fixture scenario id")
	f.BoolVar(&sf.strategyOnly, "strategy", false, "print the derived strategy without searching")
	return cmd
}

// args converts the flags to wire arguments. Unset optional flags stay nil
// so validation and payload defaults match the MCP tool.
func (sf *searchFlags) args(query string, cmd *cobra.Command) types.SearchArgs {
	a := types.SearchArgs{Query: query, PreferredLevels: sf.levels}
	if cmd.Flags().Changed("limit") {
		a.Limit = &sf.limit
	}
	if sf.moduleFilter != "" {
		a.ModuleFilter = &sf.moduleFilter
	}
	if sf.moduleHint != "" {
		a.ModuleHint = &sf.moduleHint
	}
	if cmd.Flags().Changed("max-tokens") {
		a.MaxContextTokens = &sf.maxTokens
	}
	if sf.scenarioID != "" {
		a.ScenarioID = &sf.scenarioID
	}
	return a
}

// writeJSON indents output on a terminal and writes compact lines otherwise
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if isTerminal(w) {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
