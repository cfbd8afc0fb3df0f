package app

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/dshills/ideactx-mcp/internal/health"
	"github.com/dshills/ideactx-mcp/internal/httpapi"
	"github.com/dshills/ideactx-mcp/internal/indexer"
	"github.com/dshills/ideactx-mcp/internal/mcp"
	"github.com/dshills/ideactx-mcp/internal/pipeline"
	"github.com/dshills/ideactx-mcp/internal/searcher"
)

// ServerParams are the dependencies of the MCP server and HTTP API
type ServerParams struct {
	fx.In

	Settings *Settings
	Pipeline *pipeline.Pipeline
	Health   *health.Checker
	Indexer  *indexer.Indexer   `optional:"true"`
	Searcher *searcher.Searcher `optional:"true"`
}

// NewMCPServer creates the MCP server
func NewMCPServer(params ServerParams) (*mcp.Server, error) {
	return mcp.NewServer(mcp.Deps{
		Pipeline: params.Pipeline,
		Health:   params.Health,
		Indexer:  params.Indexer,
		Searcher: params.Searcher,
	})
}

// NewHTTPServer creates the HTTP API with the MCP streamable transport
// mounted at /mcp
func NewHTTPServer(params ServerParams, srv *mcp.Server) (*httpapi.Server, error) {
	return httpapi.New(httpapi.Options{
		Searcher:  params.Pipeline,
		Health:    params.Health,
		MCP:       srv.StreamableHTTP(),
		AccessLog: params.Settings.LogLevel <= slog.LevelDebug,
	})
}

// Lifecycle reports backend health when the application starts and drops
// cached vector results when it stops
type Lifecycle struct {
	health   *health.Checker
	searcher *searcher.Searcher
}

// NewLifecycle creates the lifecycle manager
func NewLifecycle(params ServerParams) *Lifecycle {
	return &Lifecycle{health: params.Health, searcher: params.Searcher}
}

// Start logs a health summary. A degraded backend is not fatal; searches
// degrade to fewer hits or the fallback dataset.
func (l *Lifecycle) Start(ctx context.Context) error {
	report := l.health.Check(ctx)
	attrs := []any{
		slog.String("status", report.Status),
		slog.Bool("vector_enabled", report.Vector.Enabled),
		slog.Int("vector_symbols", report.Vector.SymbolCount),
		slog.Bool("rerank_enabled", report.RerankEnabled),
		slog.Bool("fixture_enabled", report.Fixture.Enabled),
	}
	if report.Bridge != nil {
		attrs = append(attrs, slog.Bool("bridge_reachable", report.Bridge.Reachable))
	}
	if report.OK {
		slog.Info("backends ready", attrs...)
	} else {
		slog.Warn("backends degraded", attrs...)
	}
	return nil
}

// Stop clears the vector result cache
func (l *Lifecycle) Stop(ctx context.Context) error {
	if l.searcher != nil {
		l.searcher.InvalidateCache()
	}
	return nil
}

// ServerModule provides the MCP server, the HTTP API and the lifecycle hooks
var ServerModule = fx.Module("server",
	fx.Provide(
		NewMCPServer,
		NewHTTPServer,
		NewLifecycle,
	),
)
