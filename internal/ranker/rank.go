package ranker

import (
	"cmp"
	"slices"
	"strings"

	"github.com/dshills/ideactx-mcp/internal/roles"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

// Scoring constants for base relevance
const (
	matchedQueryScore = 0.7
	baseScore         = 0.5
	recencyBoost      = 0.15
	recencyDays       = 14
	defaultAgeDays    = 90
	moduleMatchBoost  = 0.1
	rankTestPenalty   = 0.45
)

// Options controls base relevance ranking
type Options struct {
	Query        string
	Limit        int
	ModuleFilter string
	ModuleHint   string

	// MinTokenMatch overrides the token match threshold when > 0
	MinTokenMatch int
}

// WantsTests reports whether the query itself asks about tests
func WantsTests(query string) bool {
	return strings.Contains(strings.ToLower(query), "test")
}

// Rank filters symbols by token overlap and module, scores them in [0,1] and
// returns the top results in descending score order. Input order breaks ties.
func Rank(symbols []types.SymbolHit, opts Options) []types.SymbolHit {
	query := strings.ToLower(strings.TrimSpace(opts.Query))
	limit := opts.Limit
	if limit <= 0 {
		limit = types.DefaultLimit
	}
	limit = min(max(limit, 1), types.MaxLimit)

	preferred := opts.ModuleFilter
	if preferred == "" {
		preferred = opts.ModuleHint
	}
	tokens := Tokenize(query)
	threshold := opts.MinTokenMatch
	if threshold <= 0 {
		threshold = 1
		if len(tokens) >= 4 {
			threshold = 2
		}
	}
	wantsTests := WantsTests(query)

	type scored struct {
		hit   types.SymbolHit
		score float64
	}
	var out []scored
	for i := range symbols {
		sym := &symbols[i]
		if opts.ModuleFilter != "" && sym.Module != opts.ModuleFilter {
			continue
		}
		if !matchesQuery(sym, query, tokens, threshold) {
			continue
		}
		h := sym.Clone()
		if len(h.Roles) == 0 {
			h.Roles = roles.Classify(&h)
		}
		out = append(out, scored{hit: h, score: baseRelevance(&h, query, tokens, preferred, wantsTests)})
	}

	slices.SortStableFunc(out, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	hits := make([]types.SymbolHit, len(out))
	for i, s := range out {
		s.hit.Score = s.score
		hits[i] = s.hit
	}
	return hits
}

func matchesQuery(sym *types.SymbolHit, query string, tokens []string, threshold int) bool {
	haystack := strings.ToLower(sym.FQN + " " + sym.Summary)
	if len(tokens) == 0 {
		return query != "" && strings.Contains(haystack, query)
	}
	matches := 0
	for _, tok := range tokens {
		if strings.Contains(haystack, tok) {
			matches++
		}
	}
	return matches >= threshold
}

func baseRelevance(h *types.SymbolHit, query string, tokens []string, preferred string, wantsTests bool) float64 {
	score := baseScore
	if query != "" && strings.Contains(strings.ToLower(h.Summary), query) {
		score = matchedQueryScore
	}
	refs, age := 0, defaultAgeDays
	if h.ScoreHints != nil {
		if h.ScoreHints.References != nil {
			refs = *h.ScoreHints.References
		}
		if h.ScoreHints.LastModifiedDays != nil {
			age = *h.ScoreHints.LastModifiedDays
		}
	}
	score += float64(refs) / 100
	if age < recencyDays {
		score += recencyBoost
	}
	if preferred != "" && h.Module == preferred {
		score += moduleMatchBoost
	}
	isTest := h.Roles.Has(types.RoleTest)
	if isTest && !wantsTests {
		score -= rankTestPenalty
	}
	score += domainBoost(h, tokens, isTest && !wantsTests)
	return min(max(score, 0), 1)
}

// DomainRule is a keyword-triggered relevance boost
type DomainRule struct {
	Name    string
	Trigger func(has func(string) bool) bool
	Score   func(h *types.SymbolHit, fqn, pkg string, penalizedTest bool) float64
}

// DomainRules are evaluated in order and their scores summed
var DomainRules = []DomainRule{
	{
		Name: "aop-proxy",
		Trigger: func(has func(string) bool) bool {
			return has("aop") || has("proxy") || has("proxies") || has("advice")
		},
		Score: func(_ *types.SymbolHit, fqn, pkg string, _ bool) float64 {
			s := 0.0
			if strings.Contains(pkg, ".aop") || strings.Contains(fqn, ".aop.") {
				s += 0.3
			}
			if containsAny(fqn, "proxyfactory", "aopproxy", "advisor") {
				s += 0.25
			}
			return s
		},
	},
	{
		Name: "bean-scanning",
		Trigger: func(has func(string) bool) bool {
			return has("bean") && (has("scan") || has("scanning") || has("register"))
		},
		Score: func(h *types.SymbolHit, fqn, _ string, _ bool) float64 {
			s := 0.0
			if containsAny(fqn, "beandefinitionscanner", "classpathscanningcandidate", "componentscan") {
				s += 0.35
			}
			if h.Roles.HasAny(types.RoleSpringBean, types.RoleConfig) {
				s += 0.1
			}
			return s
		},
	},
	{
		Name: "bean-post-processor",
		Trigger: func(has func(string) bool) bool {
			return has("beanpostprocessor")
		},
		Score: func(h *types.SymbolHit, fqn, _ string, penalizedTest bool) float64 {
			s := 0.0
			if strings.Contains(fqn, "beanpostprocessor") {
				s += 0.35
			}
			if h.Roles.HasAny(types.RoleSpringBean, types.RoleConfig) {
				s += 0.1
			}
			if penalizedTest {
				s -= 0.1
			}
			return s
		},
	},
	{
		Name: "application-events",
		Trigger: func(has func(string) bool) bool {
			return has("event") || has("events")
		},
		Score: func(_ *types.SymbolHit, fqn, pkg string, _ bool) float64 {
			s := 0.0
			if strings.Contains(pkg, "context.event") {
				s += 0.3
			}
			if containsAny(fqn, "eventlistener", "applicationevent", "eventmulticaster") {
				s += 0.25
			}
			return s
		},
	},
}

func domainBoost(h *types.SymbolHit, tokens []string, penalizedTest bool) float64 {
	has := func(tok string) bool { return slices.Contains(tokens, tok) }
	fqn := strings.ToLower(h.FQN)
	pkg := strings.ToLower(h.PackageName)
	total := 0.0
	for _, rule := range DomainRules {
		if rule.Trigger(has) {
			total += rule.Score(h, fqn, pkg, penalizedTest)
		}
	}
	return total
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
