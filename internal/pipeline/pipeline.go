package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/ideactx-mcp/internal/budget"
	"github.com/dshills/ideactx-mcp/internal/fixture"
	"github.com/dshills/ideactx-mcp/internal/profile"
	"github.com/dshills/ideactx-mcp/internal/ranker"
	"github.com/dshills/ideactx-mcp/internal/rerank"
	"github.com/dshills/ideactx-mcp/internal/roles"
	"github.com/dshills/ideactx-mcp/internal/scenario"
	"github.com/dshills/ideactx-mcp/internal/strategy"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

// Reranker reorders boosted hits. used is false when the input came back unchanged.
type Reranker interface {
	Apply(ctx context.Context, query string, hits []types.SymbolHit) (out []types.SymbolHit, used bool)
}

// Config wires the pipeline to its registries and backends. Nil backends
// contribute no hits.
type Config struct {
	Registry    *profile.Registry
	Exact       ExactMatcher
	Vector      VectorSearcher
	Reranker    Reranker
	Fixtures    *fixture.Registry
	ProjectRoot string

	ExactTimeout  time.Duration
	VectorTimeout time.Duration
	// Fallback replaces the built-in fallback dataset when non-nil
	Fallback []types.SymbolHit
}

// Pipeline answers search requests. It holds no per-request state and is
// safe for concurrent use.
type Pipeline struct {
	registry    *profile.Registry
	deriver     *strategy.Deriver
	specializer *scenario.Specializer
	exec        *stageExecutor
	reranker    Reranker
	fixtures    *fixture.Registry
	fallback    []types.SymbolHit
}

// New creates a Pipeline. A nil registry selects the embedded defaults.
func New(cfg Config) (*Pipeline, error) {
	reg := cfg.Registry
	if reg == nil {
		var err error
		if reg, err = profile.Default(); err != nil {
			return nil, err
		}
	}
	if cfg.ExactTimeout <= 0 {
		cfg.ExactTimeout = DefaultExactTimeout
	}
	if cfg.VectorTimeout <= 0 {
		cfg.VectorTimeout = DefaultVectorTimeout
	}
	fallback := cfg.Fallback
	if fallback == nil {
		fallback = FallbackSymbols()
	}

	deriver := strategy.New(reg)
	return &Pipeline{
		registry:    reg,
		deriver:     deriver,
		specializer: scenario.New(reg.Rules(), cfg.ProjectRoot),
		exec: &stageExecutor{
			exact:         cfg.Exact,
			vector:        cfg.Vector,
			deriver:       deriver,
			exactTimeout:  cfg.ExactTimeout,
			vectorTimeout: cfg.VectorTimeout,
		},
		reranker: cfg.Reranker,
		fixtures: cfg.Fixtures,
		fallback: fallback,
	}, nil
}

// Registry returns the profile registry the pipeline was built with
func (p *Pipeline) Registry() *profile.Registry {
	return p.registry
}

// Derive returns the strategy the pipeline would use for req
func (p *Pipeline) Derive(req types.SearchRequest) *types.Strategy {
	return p.deriver.Derive(req)
}

// Search runs the full pipeline. The only error is types.ErrInvalidRequest;
// backend failures degrade to fewer hits or the fallback dataset.
func (p *Pipeline) Search(ctx context.Context, req types.SearchRequest) (*types.SearchResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	log := slog.With(slog.String("request_id", requestID))
	started := time.Now()

	s := p.deriver.Derive(req)
	tokenLimit := req.TokenLimit()
	log.Debug("strategy derived",
		slog.String("tier", string(s.Tier)),
		slog.String("scenario", string(s.Scenario)),
		slog.String("profile", s.Profile.ID),
		slog.String("module_hint", s.ModuleHint),
		slog.String("entity", s.EntityHint),
	)

	resp, outcome := p.run(ctx, log, req, s, tokenLimit)
	resp.RequestID = requestID

	requestsTotal.WithLabelValues(outcome).Inc()
	requestDuration.WithLabelValues(string(s.Tier)).Observe(time.Since(started).Seconds())
	if resp.ContextBudget.Truncated {
		budgetTruncatedTotal.Inc()
	}
	if resp.RerankUsed {
		rerankUsedTotal.Inc()
	}
	log.Info("search complete",
		slog.String("outcome", outcome),
		slog.Int("delivered", len(resp.ContextBudget.Delivered)),
		slog.Int("omitted", resp.ContextBudget.OmittedCount),
		slog.Int("used_tokens", resp.ContextBudget.UsedTokens),
		slog.Duration("duration", time.Since(started)),
	)
	return resp, nil
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, req types.SearchRequest, s *types.Strategy, tokenLimit int) (*types.SearchResponse, string) {
	prof := s.Profile

	if req.ScenarioID != "" && p.fixtures.Has(req.ScenarioID) {
		resp, err := p.fixtures.Outcome(req.ScenarioID, s, tokenLimit)
		if err == nil {
			return resp, outcomeFixture
		}
		log.Warn("fixture replay failed", slog.String("scenario_id", req.ScenarioID), slog.String("error", err.Error()))
	}

	rankOpts := ranker.Options{
		Query:         req.Query,
		Limit:         req.LimitOr(types.DefaultLimit),
		ModuleFilter:  req.ModuleFilter,
		ModuleHint:    req.ModuleHint,
		MinTokenMatch: strategy.MinTokenMatch(s.Scenario),
	}

	if s.Tier == types.TierTargeted {
		if hits := p.exec.searchExact(ctx, log, rankOpts); len(hits) > 0 {
			report := budget.Allocate(hits, prof.BudgetStrategy, tokenLimit)
			return &types.SearchResponse{
				FinalResults:  report.Delivered,
				Stages:        []types.Stage{{Name: types.StageExact, Hits: hits}},
				Strategy:      *s,
				ContextBudget: report,
			}, outcomeExact
		}
	}

	unfiltered := p.exec.runVectorStages(ctx, log, req, s)
	if prof.ID == types.ProfileEntityImpact {
		p.exec.supplementClasses(ctx, log, req, s, unfiltered)
	}

	filtered := profile.ApplyFilters(unfiltered, prof)
	stages := profile.Summaries(filtered)
	merged := profile.Merge(filtered, unfiltered, prof.PreferredLevels)

	grouped := profile.Group(merged, prof.Grouping)
	specialized := p.specializer.Specialize(grouped, prof.ID, scenario.Hints{
		Entity: s.EntityHint,
		Module: s.ModuleHint,
	})
	// Impact groups keep their bucket order
	boosted := specialized
	if !impactGroups(specialized) {
		boosted = ranker.Boost(specialized, ranker.BoostOptions{
			Query:            req.Query,
			ProfileID:        prof.ID,
			RoleBoosts:       prof.RoleBoosts,
			ModulePreference: firstNonEmpty(s.ModuleHint, req.ModuleHint, req.ModuleFilter),
		})
	}

	final, rerankUsed := boosted, false
	if p.reranker != nil {
		final, rerankUsed = p.reranker.Apply(ctx, req.Query, boosted)
	}

	report := budget.Allocate(final, prof.BudgetStrategy, tokenLimit)
	outcome := outcomeVector
	fallbackUsed := false
	if len(report.Delivered) == 0 {
		fallbackHits := roles.Annotate(ranker.Rank(p.fallback, rankOpts))
		report = budget.Allocate(fallbackHits, prof.BudgetStrategy, tokenLimit)
		stages = append(stages, types.Stage{Name: types.StageFallback, Hits: fallbackHits})
		fallbackUsed = true
		outcome = outcomeFallback
		log.Info("no backend results, using fallback dataset", slog.Int("hits", len(fallbackHits)))
	}

	return &types.SearchResponse{
		FinalResults:  report.Delivered,
		ModuleResults: filtered[types.StageModule],
		MethodResults: filtered[types.StageMethod],
		FallbackUsed:  fallbackUsed,
		Stages:        stages,
		Strategy:      *s,
		ContextBudget: report,
		RerankUsed:    rerankUsed,
	}, outcome
}

// impactGroups reports whether hits are entity-impact aggregates
func impactGroups(hits []types.SymbolHit) bool {
	if len(hits) == 0 {
		return false
	}
	for i := range hits {
		if hits[i].Metadata == nil || len(hits[i].Metadata.Impact) == 0 {
			return false
		}
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ Reranker = (*rerank.Reranker)(nil)
