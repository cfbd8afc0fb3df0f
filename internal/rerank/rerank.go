package rerank

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

// Candidate is one document sent to the scorer
type Candidate struct {
	ID   string
	Text string
}

// Result is a relevance score for a candidate id
type Result struct {
	ID    string
	Score float64
}

// Scorer assigns relevance scores to candidates
type Scorer interface {
	Score(ctx context.Context, query string, candidates []Candidate) ([]Result, error)
}

// Reranker reorders ranked hits with an external scorer. A nil *Reranker is
// valid and never reorders.
type Reranker struct {
	cfg    Config
	scorer Scorer
}

// New returns a Reranker for cfg, or nil when reranking is disabled or the
// provider is not supported
func New(cfg Config) *Reranker {
	if !cfg.Enabled {
		return nil
	}
	switch cfg.Provider {
	case "", ProviderJina:
		return NewWithScorer(cfg, NewJinaScorer(cfg))
	default:
		slog.Warn("unsupported rerank provider, reranking disabled", slog.String("provider", cfg.Provider))
		return nil
	}
}

// NewWithScorer returns a Reranker using a caller-supplied scorer
func NewWithScorer(cfg Config, scorer Scorer) *Reranker {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Reranker{cfg: cfg, scorer: scorer}
}

// Enabled reports whether Apply may reorder hits
func (r *Reranker) Enabled() bool {
	return r != nil && r.scorer != nil
}

// Apply reorders hits by scorer relevance: the top-K scored hits first,
// deduplicated by FQN, then the remaining hits in their original order.
// On any failure the input is returned unchanged with used=false.
func (r *Reranker) Apply(ctx context.Context, query string, hits []types.SymbolHit) ([]types.SymbolHit, bool) {
	if !r.Enabled() || len(hits) <= 1 || r.cfg.MaxCandidates <= 1 {
		return hits, false
	}
	candidates := Candidates(hits, r.cfg.MaxCandidates)
	if len(candidates) <= 1 {
		return hits, false
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	started := time.Now()
	results, err := r.scorer.Score(ctx, query, candidates)
	if err != nil {
		slog.Warn("rerank failed, keeping ranked order", slog.String("error", err.Error()))
		return hits, false
	}
	if len(results) == 0 {
		return hits, false
	}

	byID := make(map[string]*types.SymbolHit, len(candidates))
	for i, c := range candidates {
		byID[c.ID] = &hits[i]
	}
	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, func(a, b Result) int {
		return cmp.Compare(b.Score, a.Score)
	})

	seen := make(map[string]struct{}, len(hits))
	out := make([]types.SymbolHit, 0, len(hits))
	for _, res := range sorted[:min(r.cfg.TopK, len(sorted))] {
		hit, ok := byID[res.ID]
		if !ok {
			continue
		}
		if _, dup := seen[hit.FQN]; dup {
			continue
		}
		seen[hit.FQN] = struct{}{}
		out = append(out, *hit)
	}
	for _, hit := range hits {
		if _, dup := seen[hit.FQN]; dup {
			continue
		}
		seen[hit.FQN] = struct{}{}
		out = append(out, hit)
	}

	if r.cfg.LogProbes {
		slog.Info("rerank applied",
			slog.String("provider", r.cfg.Provider),
			slog.Duration("duration", time.Since(started)),
			slog.Int("candidates", len(candidates)),
			slog.Int("results", len(results)),
		)
	}
	return out, true
}

// Candidates builds up to limit candidates from the front of hits, with ids fqn#index
func Candidates(hits []types.SymbolHit, limit int) []Candidate {
	n := min(limit, len(hits))
	out := make([]Candidate, n)
	for i := 0; i < n; i++ {
		out[i] = Candidate{
			ID:   fmt.Sprintf("%s#%d", hits[i].FQN, i),
			Text: CandidateText(&hits[i]),
		}
	}
	return out
}

// CandidateText renders a hit as a single " | " separated document
func CandidateText(hit *types.SymbolHit) string {
	meta := hit.Metadata

	var moduleInfo []string
	if hit.Module != "" {
		moduleInfo = append(moduleInfo, "module="+hit.Module)
	}
	if hit.RepoName != "" {
		moduleInfo = append(moduleInfo, "repo="+hit.RepoName)
	}
	if s := summarizeModules(meta); s != "" {
		moduleInfo = append(moduleInfo, "modules="+s)
	}

	var roles string
	if len(hit.Roles) > 0 {
		names := make([]string, len(hit.Roles))
		for i, r := range hit.Roles {
			names[i] = string(r)
		}
		roles = "roles=" + strings.Join(names, ",")
	}

	var counters, lib []string
	if meta != nil {
		if meta.CallersCount != nil {
			counters = append(counters, fmt.Sprintf("callers=%d", *meta.CallersCount))
		}
		if meta.CalleesCount != nil {
			counters = append(counters, fmt.Sprintf("callees=%d", *meta.CalleesCount))
		}
		if meta.Library != "" {
			lib = append(lib, "library="+meta.Library)
		}
		if meta.LibraryRole != "" {
			lib = append(lib, "libraryRole="+meta.LibraryRole)
		}
	}

	parts := []string{
		hit.FQN,
		hit.Summary,
		fmt.Sprintf("kind=%s level=%s", hit.Kind, hit.IndexLevel),
		strings.Join(moduleInfo, " "),
		roles,
		strings.Join(counters, " "),
		strings.Join(lib, " "),
	}
	return strings.Join(slices.DeleteFunc(parts, func(s string) bool { return s == "" }), " | ")
}

// summarizeModules renders up to five module:count pairs from the caller/callee summary
func summarizeModules(meta *types.Metadata) string {
	if meta == nil || meta.ModuleSummary == nil {
		return ""
	}
	all := append(slices.Clone(meta.ModuleSummary.Callers), meta.ModuleSummary.Callees...)
	var out []string
	for _, mc := range all[:min(5, len(all))] {
		name := mc.Module
		if name == "" {
			name = "unknown"
		}
		out = append(out, fmt.Sprintf("%s:%d", name, mc.Count))
	}
	return strings.Join(out, ",")
}
