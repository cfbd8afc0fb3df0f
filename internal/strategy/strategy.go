package strategy

import (
	"slices"
	"strings"
	"unicode"

	"github.com/dshills/ideactx-mcp/internal/profile"
	"github.com/dshills/ideactx-mcp/internal/ranker"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

// Tier reason strings
const (
	ReasonDeep     = "complex query or call-chain/impact keywords"
	ReasonTargeted = "short query, precise class results"
	ReasonBalanced = "default two-stage search"
)

// Deriver turns a request into a retrieval strategy using a profile registry
type Deriver struct {
	registry *profile.Registry
}

// New creates a Deriver
func New(registry *profile.Registry) *Deriver {
	return &Deriver{registry: registry}
}

// Derive computes the tier, scenario, hints, profile and per-stage limits
// for a request. The result is a pure function of the request and registry.
func (d *Deriver) Derive(req types.SearchRequest) *types.Strategy {
	rules := d.registry.Rules()

	tokens := ranker.BaseTokens(req.Query)
	hasKeyword := rules.HasComplexKeyword(req.Query)
	tier := types.TierBalanced
	switch {
	case len(tokens) <= 2 && !hasKeyword:
		tier = types.TierTargeted
	case len(tokens) > 5 || hasKeyword:
		tier = types.TierDeep
	}

	scenario := rules.DetectScenario(req.Query)
	if scenario != types.ScenarioNone && tier == types.TierTargeted {
		tier = types.TierBalanced
	}

	levels := dedupLevels(req.PreferredLevels)
	if len(levels) == 0 {
		levels = defaultLevels(tier)
	}

	moduleHint := req.ModuleHint
	if moduleHint == "" {
		moduleHint = rules.InferModuleHint(req.Query)
	}

	s := &types.Strategy{
		Tier:            tier,
		Reason:          reason(tier),
		PreferredLevels: levels,
		ModuleFilter:    req.ModuleFilter,
		ModuleHint:      moduleHint,
		Scenario:        scenario,
		EntityHint:      InferEntity(req.Query, rules),
		Profile:         d.registry.ForScenario(scenario),
	}

	switch tier {
	case types.TierDeep:
		s.ModuleLimit = 8
		s.ClassLimit = min(12, max(req.LimitOr(8), 10))
	case types.TierTargeted:
		s.ModuleLimit = 3
		s.ClassLimit = min(6, req.LimitOr(5))
	default:
		s.ModuleLimit = 5
		s.ClassLimit = min(8, req.LimitOr(6))
	}
	if slices.Contains(levels, types.LevelMethod) {
		s.MethodLimit = 6
	}
	if moduleHint != "" && tier != types.TierDeep {
		s.ModuleLimit = max(2, s.ModuleLimit-1)
	}
	return s
}

// MinTokenMatch returns the ranking token threshold override for a scenario, or 0
func MinTokenMatch(s types.Scenario) int {
	switch s {
	case types.ScenarioEntityImpact, types.ScenarioEntityEndpoints, types.ScenarioAllBeans:
		return 1
	}
	return 0
}

// InferEntity extracts an entity name from the query using the ordered phrase
// patterns, falling back to the first alphanumeric word longer than two characters
func InferEntity(query string, rules *profile.Rules) string {
	for _, re := range rules.EntityRegexps() {
		m := re.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		raw := strings.TrimSpace(m[re.SubexpIndex("entity")])
		if raw == "" {
			continue
		}
		parts := strings.Fields(raw)
		for len(parts) > 1 && strings.EqualFold(parts[len(parts)-1], "entity") {
			parts = parts[:len(parts)-1]
		}
		return capitalize(parts[len(parts)-1])
	}
	for _, tok := range strings.Fields(query) {
		if len(tok) > 2 && isIdentifier(tok) {
			return capitalize(tok)
		}
	}
	return ""
}

// StageQuery builds the vector query text for one level
func (d *Deriver) StageQuery(query string, s *types.Strategy, level types.Level) string {
	parts := ranker.Tokenize(query)
	if len(parts) == 0 {
		parts = ranker.Words(query)
	}
	switch level {
	case types.LevelModule:
		parts = append(parts, "module", "architecture", "service")
	case types.LevelClass:
		parts = append(parts, "class", "implementation")
	case types.LevelMethod:
		parts = append(parts, "method", "behavior")
	}
	if s.EntityHint != "" {
		parts = append(parts, strings.ToLower(s.EntityHint))
	}
	parts = append(parts, d.registry.Rules().StageKeywords(s.Scenario)...)

	seen := make(map[string]struct{}, len(parts))
	uniq := parts[:0:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		uniq = append(uniq, p)
	}
	text := strings.TrimSpace(strings.Join(uniq, " "))
	if text == "" {
		return query
	}
	return text
}

func defaultLevels(tier types.Tier) []types.Level {
	switch tier {
	case types.TierDeep:
		return []types.Level{types.LevelModule, types.LevelClass, types.LevelMethod}
	case types.TierTargeted:
		return []types.Level{types.LevelClass}
	}
	return []types.Level{types.LevelModule, types.LevelClass}
}

func reason(tier types.Tier) string {
	switch tier {
	case types.TierDeep:
		return ReasonDeep
	case types.TierTargeted:
		return ReasonTargeted
	}
	return ReasonBalanced
}

func dedupLevels(levels []types.Level) []types.Level {
	var out []types.Level
	for _, l := range levels {
		if !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}

func isIdentifier(tok string) bool {
	for i, r := range tok {
		if r > unicode.MaxASCII {
			return false
		}
		switch {
		case unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || r == '_'):
		default:
			return false
		}
	}
	return true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
