package pipeline

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/ideactx-mcp/internal/profile"
	"github.com/dshills/ideactx-mcp/internal/ranker"
	"github.com/dshills/ideactx-mcp/internal/roles"
	"github.com/dshills/ideactx-mcp/internal/strategy"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

// Adapter timeouts
const (
	DefaultExactTimeout  = 5 * time.Second
	DefaultVectorTimeout = 8 * time.Second
)

// ExactMatcher is the exact-match lookup service
type ExactMatcher interface {
	SearchSymbols(ctx context.Context, query string, limit int, moduleFilter string) ([]types.SymbolHit, error)
}

// VectorSearcher is the approximate nearest-neighbour backend. ok is false
// when the backend is unavailable.
type VectorSearcher interface {
	Search(ctx context.Context, q types.VectorQuery) (hits []types.SymbolHit, ok bool)
}

// stageExecutor calls the retrieval backends. Every call has its own timeout
// and a failure degrades to no hits.
type stageExecutor struct {
	exact         ExactMatcher
	vector        VectorSearcher
	deriver       *strategy.Deriver
	exactTimeout  time.Duration
	vectorTimeout time.Duration
}

// searchExact calls the exact-match adapter and returns its hits ranked by
// opts and annotated with roles
func (e *stageExecutor) searchExact(ctx context.Context, log *slog.Logger, opts ranker.Options) []types.SymbolHit {
	if e.exact == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.exactTimeout)
	defer cancel()

	started := time.Now()
	hits, err := e.exact.SearchSymbols(ctx, opts.Query, opts.Limit, opts.ModuleFilter)
	if err != nil {
		adapterFailuresTotal.WithLabelValues(adapterExact).Inc()
		log.Warn("exact search failed", slog.String("query", opts.Query), slog.String("error", err.Error()))
		return nil
	}
	ranked := roles.Annotate(ranker.Rank(hits, opts))
	stageHits.WithLabelValues(string(types.StageExact)).Observe(float64(len(ranked)))
	log.Debug("exact stage",
		slog.Int("raw", len(hits)),
		slog.Int("ranked", len(ranked)),
		slog.Duration("duration", time.Since(started)),
	)
	return ranked
}

// searchLevel runs one vector stage and ranks its records against the stage query
func (e *stageExecutor) searchLevel(ctx context.Context, log *slog.Logger, q types.VectorQuery, minTokenMatch int) []types.SymbolHit {
	if e.vector == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.vectorTimeout)
	defer cancel()

	started := time.Now()
	records, ok := e.vector.Search(ctx, q)
	if !ok {
		adapterFailuresTotal.WithLabelValues(adapterVector).Inc()
		log.Warn("vector search unavailable", slog.String("level", string(q.Level)))
		return nil
	}
	ranked := roles.Annotate(ranker.Rank(records, ranker.Options{
		Query:         q.Query,
		Limit:         q.Limit,
		ModuleFilter:  q.ModuleFilter,
		ModuleHint:    q.ModuleHint,
		MinTokenMatch: minTokenMatch,
	}))
	stage := types.StageForLevel(q.Level)
	stageHits.WithLabelValues(string(stage)).Observe(float64(len(ranked)))
	log.Debug("vector stage",
		slog.String("stage", string(stage)),
		slog.String("query", q.Query),
		slog.Int("raw", len(records)),
		slog.Int("ranked", len(ranked)),
		slog.Duration("duration", time.Since(started)),
	)
	return ranked
}

// runVectorStages runs one stage per preferred level concurrently. The method
// stage only runs when the strategy allots it a limit.
func (e *stageExecutor) runVectorStages(ctx context.Context, log *slog.Logger, req types.SearchRequest, s *types.Strategy) profile.StageHits {
	moduleFilter := req.ModuleFilter
	if s.Profile != nil && s.Profile.ModuleFilter != "" {
		moduleFilter = s.Profile.ModuleFilter
	}
	minTokenMatch := strategy.MinTokenMatch(s.Scenario)

	var levels []types.Level
	for _, lvl := range []types.Level{types.LevelModule, types.LevelClass, types.LevelMethod} {
		if !slices.Contains(s.PreferredLevels, lvl) || s.Limit(lvl) <= 0 {
			continue
		}
		levels = append(levels, lvl)
	}

	results := make([][]types.SymbolHit, len(levels))
	g, gctx := errgroup.WithContext(ctx)
	for i, lvl := range levels {
		q := types.VectorQuery{
			Query:        e.deriver.StageQuery(req.Query, s, lvl),
			Level:        lvl,
			Limit:        s.Limit(lvl),
			ModuleFilter: moduleFilter,
			ModuleHint:   s.ModuleHint,
		}
		g.Go(func() error {
			results[i] = e.searchLevel(gctx, log, q, minTokenMatch)
			return nil
		})
	}
	_ = g.Wait()

	stages := make(profile.StageHits, len(levels))
	for i, lvl := range levels {
		stages[types.StageForLevel(lvl)] = results[i]
	}
	return stages
}

// supplementClasses tops up a short class stage with one exact-match lookup
// for the entity. Hits already in the class stage are not repeated.
func (e *stageExecutor) supplementClasses(ctx context.Context, log *slog.Logger, req types.SearchRequest, s *types.Strategy, stages profile.StageHits) {
	current := stages[types.StageClass]
	if len(current) >= s.ClassLimit {
		return
	}
	query := s.EntityHint
	if query == "" {
		query = req.Query
	}
	moduleFilter := req.ModuleFilter
	if s.Profile != nil && s.Profile.ModuleFilter != "" {
		moduleFilter = s.Profile.ModuleFilter
	}
	if moduleFilter == "" {
		moduleFilter = s.ModuleHint
	}

	extra := e.searchExact(ctx, log, ranker.Options{
		Query:         query,
		Limit:         max(s.ClassLimit, req.LimitOr(types.DefaultLimit)),
		ModuleFilter:  moduleFilter,
		ModuleHint:    s.ModuleHint,
		MinTokenMatch: strategy.MinTokenMatch(s.Scenario),
	})
	if len(extra) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(current))
	for _, h := range current {
		seen[h.FQN] = struct{}{}
	}
	for _, h := range extra {
		if _, dup := seen[h.FQN]; dup {
			continue
		}
		seen[h.FQN] = struct{}{}
		current = append(current, h)
	}
	stages[types.StageClass] = current
	log.Debug("class stage supplemented", slog.String("query", query), slog.Int("hits", len(current)))
}
