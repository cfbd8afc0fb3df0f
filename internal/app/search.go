package app

import (
	"go.uber.org/fx"

	"github.com/dshills/ideactx-mcp/internal/bridge"
	"github.com/dshills/ideactx-mcp/internal/embedder"
	"github.com/dshills/ideactx-mcp/internal/fixture"
	"github.com/dshills/ideactx-mcp/internal/health"
	"github.com/dshills/ideactx-mcp/internal/indexer"
	"github.com/dshills/ideactx-mcp/internal/pipeline"
	"github.com/dshills/ideactx-mcp/internal/profile"
	"github.com/dshills/ideactx-mcp/internal/rerank"
	"github.com/dshills/ideactx-mcp/internal/searcher"
	"github.com/dshills/ideactx-mcp/internal/storage"
)

// SearchParams are the dependencies of the search components. Backends are
// nil when disabled.
type SearchParams struct {
	fx.In

	Settings *Settings
	Store    storage.Storage   `optional:"true"`
	Embedder embedder.Embedder `optional:"true"`
	Bridge   *bridge.Client    `optional:"true"`
	Reranker *rerank.Reranker  `optional:"true"`
	Fixtures *fixture.Registry `optional:"true"`
	Registry *profile.Registry
}

// NewSearcher creates the vector stage searcher, or nil without a store
func NewSearcher(params SearchParams) *searcher.Searcher {
	if params.Store == nil {
		return nil
	}
	return searcher.NewSearcher(params.Store, params.Embedder, searcher.Options{
		Timeout: params.Settings.VectorTimeout,
	})
}

// NewIndexer creates the ingest indexer, or nil without a store
func NewIndexer(params SearchParams) *indexer.Indexer {
	if params.Store == nil {
		return nil
	}
	return indexer.New(params.Store, params.Embedder)
}

// PipelineParams are the dependencies of the search pipeline
type PipelineParams struct {
	fx.In

	Settings *Settings
	Registry *profile.Registry
	Bridge   *bridge.Client     `optional:"true"`
	Searcher *searcher.Searcher `optional:"true"`
	Reranker *rerank.Reranker   `optional:"true"`
	Fixtures *fixture.Registry  `optional:"true"`
}

// NewPipeline wires the backends into the search pipeline. Nil backends are
// left unset so the pipeline treats them as contributing no hits.
func NewPipeline(params PipelineParams) (*pipeline.Pipeline, error) {
	cfg := pipeline.Config{
		Registry:      params.Registry,
		Fixtures:      params.Fixtures,
		ProjectRoot:   params.Settings.ProjectRoot,
		ExactTimeout:  params.Settings.ExactTimeout,
		VectorTimeout: params.Settings.VectorTimeout,
	}
	if params.Bridge != nil {
		cfg.Exact = params.Bridge
	}
	if params.Searcher != nil {
		cfg.Vector = params.Searcher
	}
	if params.Reranker != nil {
		cfg.Reranker = params.Reranker
	}
	return pipeline.New(cfg)
}

// NewHealthChecker assembles the health checker from the configured backends
func NewHealthChecker(params SearchParams) *health.Checker {
	c := &health.Checker{
		Embedder:       params.Embedder,
		Reranker:       params.Reranker,
		Fixtures:       params.Fixtures,
		VectorDisabled: params.Settings.VectorDisabled,
	}
	if params.Bridge != nil {
		c.Bridge = params.Bridge
	}
	if params.Store != nil {
		c.Store = params.Store
	}
	return c
}

// SearchModule provides the searcher, indexer, pipeline and health checker
var SearchModule = fx.Module("search",
	fx.Provide(
		NewSearcher,
		NewIndexer,
		NewPipeline,
		NewHealthChecker,
	),
)
