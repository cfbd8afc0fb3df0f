package profile

import (
	"slices"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

// StageHits holds the annotated hits of each stage
type StageHits map[types.StageName][]types.SymbolHit

// vectorStages are the stages profile filters apply to, in summary order
var vectorStages = []types.StageName{types.StageModule, types.StageClass, types.StageMethod}

// defaultStageOrder is the merge order when a profile lists no levels
var defaultStageOrder = []types.StageName{types.StageMethod, types.StageClass, types.StageModule}

// ApplyFilters returns a copy of stages with the profile filters applied to
// the vector stages. Exact and fallback stages pass through untouched.
func ApplyFilters(stages StageHits, p *types.Profile) StageHits {
	out := make(StageHits, len(stages))
	for name, hits := range stages {
		out[name] = hits
	}
	if p == nil || len(p.Filters) == 0 {
		return out
	}
	for _, name := range vectorStages {
		out[name] = FilterHits(stages[name], p.Filters)
	}
	return out
}

// FilterHits applies filters in order. An optional filter that would empty
// the list is skipped; a required one prunes and stops the loop once empty.
func FilterHits(hits []types.SymbolHit, filters []types.Filter) []types.SymbolHit {
	if len(hits) == 0 {
		return nil
	}
	current := hits
	for _, f := range filters {
		var next []types.SymbolHit
		for i := range current {
			if Matches(&current[i], f) {
				next = append(next, current[i])
			}
		}
		if len(next) == 0 && f.Optional {
			continue
		}
		current = next
		if len(current) == 0 {
			break
		}
	}
	return current
}

// Matches reports whether a hit satisfies a single filter
func Matches(hit *types.SymbolHit, f types.Filter) bool {
	switch f.Type {
	case types.FilterRole:
		if len(hit.Roles) == 0 {
			return false
		}
		if f.Match == types.MatchAll {
			return hit.Roles.HasAll(f.Roles...)
		}
		return hit.Roles.HasAny(f.Roles...)
	case types.FilterModule:
		return f.Regexp != nil && f.Regexp.MatchString(hit.Module)
	case types.FilterText:
		return f.Regexp != nil && f.Regexp.MatchString(hit.Text())
	}
	return true
}

// Summaries returns the non-empty vector stages in module, class, method order
func Summaries(stages StageHits) []types.Stage {
	var out []types.Stage
	for _, name := range vectorStages {
		if hits := stages[name]; len(hits) > 0 {
			out = append(out, types.Stage{Name: name, Hits: hits})
		}
	}
	return out
}

// Merge concatenates stages in the profile's level order, dropping repeats of
// the same (stage, fqn, summary). When the filtered stages yield nothing the
// unfiltered ones are used, first in the same order and then in the default
// method, class, module order.
func Merge(filtered, unfiltered StageHits, levels []types.Level) []types.SymbolHit {
	order := defaultStageOrder
	if len(levels) > 0 {
		order = make([]types.StageName, 0, len(levels))
		for _, lvl := range levels {
			name := types.StageForLevel(lvl)
			if !slices.Contains(order, name) {
				order = append(order, name)
			}
		}
	}
	if merged := collect(filtered, order); len(merged) > 0 {
		return merged
	}
	if merged := collect(unfiltered, order); len(merged) > 0 {
		return merged
	}
	return collect(unfiltered, defaultStageOrder)
}

type mergeKey struct {
	stage   types.StageName
	fqn     string
	summary string
}

func collect(stages StageHits, order []types.StageName) []types.SymbolHit {
	seen := make(map[mergeKey]struct{})
	var out []types.SymbolHit
	for _, name := range order {
		for _, h := range stages[name] {
			key := mergeKey{name, h.FQN, h.Summary}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, h)
		}
	}
	return out
}
