package ranker

import (
	"cmp"
	"encoding/json"
	"math"
	"slices"
	"strings"

	"github.com/dshills/ideactx-mcp/internal/roles"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

// InfraCategory is the kind of outbound infrastructure a hit touches
type InfraCategory string

const (
	InfraNone InfraCategory = ""
	InfraHTTP InfraCategory = "HTTP"
	InfraMQ   InfraCategory = "MQ"
	InfraDB   InfraCategory = "DB"
)

// Booster constants
const (
	callerLogWeight      = 0.04
	calleeLogWeight      = 0.02
	modulePreferenceGain = 0.05
	boostTestPenalty     = 0.3
)

var infraBoosts = map[InfraCategory]float64{
	InfraHTTP: 0.12,
	InfraMQ:   0.12,
	InfraDB:   0.10,
}

// BoostOptions parameterizes the final scoring pass
type BoostOptions struct {
	Query            string
	ProfileID        string
	RoleBoosts       map[types.Role]float64
	ModulePreference string
}

// Boost stable-sorts hits by FinalScore, descending. Hit scores are left as
// base relevance; only the order changes.
func Boost(hits []types.SymbolHit, opts BoostOptions) []types.SymbolHit {
	if len(hits) == 0 {
		return hits
	}
	type scored struct {
		hit   types.SymbolHit
		score float64
	}
	tmp := make([]scored, len(hits))
	for i := range hits {
		tmp[i] = scored{hit: hits[i], score: FinalScore(&hits[i], opts)}
	}
	slices.SortStableFunc(tmp, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})
	out := make([]types.SymbolHit, len(tmp))
	for i, s := range tmp {
		out[i] = s.hit
	}
	return out
}

// FinalScore combines base relevance with role, reference, infrastructure,
// module-preference and structural boosts
func FinalScore(hit *types.SymbolHit, opts BoostOptions) float64 {
	hitRoles := hit.Roles
	if len(hitRoles) == 0 {
		hitRoles = roles.Classify(hit)
	}

	score := hit.Score

	roleBonus := 0.0
	for _, r := range hitRoles {
		roleBonus = max(roleBonus, opts.RoleBoosts[r])
	}
	score += roleBonus

	callers := max(hit.Metadata.Callers(), 0)
	callees := max(hit.Metadata.Callees(), 0)
	score += math.Log1p(float64(callers))*callerLogWeight + math.Log1p(float64(callees))*calleeLogWeight

	if opts.ModulePreference != "" && strings.EqualFold(hit.Module, opts.ModulePreference) {
		score += modulePreferenceGain
	}

	if opts.ProfileID == types.ProfileImpactAnalysis {
		score += infraBoosts[DetectInfra(hit, hitRoles)]
		score += structuralBoost(hit, hitRoles, callers)
	}

	if hitRoles.Has(types.RoleTest) && !WantsTests(opts.Query) {
		score -= boostTestPenalty
	}
	return score
}

// DetectInfra classifies outbound HTTP, messaging or database access from FQN and metadata text
func DetectInfra(hit *types.SymbolHit, hitRoles types.RoleSet) InfraCategory {
	fqn := strings.ToLower(hit.FQN)
	meta := metadataText(hit)
	switch {
	case containsAny(fqn, "resttemplate", "webclient", "restoperations", "feign", "httpclient") ||
		strings.Contains(meta, "http"):
		return InfraHTTP
	case containsAny(fqn, "rabbit", "kafka", "rocketmq", "amqp", "jms") ||
		strings.Contains(meta, "mq"):
		return InfraMQ
	case hitRoles.Has(types.RoleRepository) ||
		containsAny(fqn, "jdbc", "mybatis", "jpa", "datasource") ||
		strings.Contains(meta, "repository"):
		return InfraDB
	}
	return InfraNone
}

func structuralBoost(hit *types.SymbolHit, hitRoles types.RoleSet, callers int) float64 {
	fqn := strings.ToLower(hit.FQN)
	s := 0.0
	if hitRoles.HasAny(types.RoleRestController, types.RoleRestEndpoint) {
		s += 0.12
	}
	if strings.HasSuffix(fqn, "service") || hitRoles.Has(types.RoleSpringBean) {
		s += 0.08
	}
	if hitRoles.Has(types.RoleRepository) && strings.Contains(fqn, "mapper") {
		s += 0.08
	}
	s += float64(min(callers, 20)) * 0.005

	unique, top := moduleSpread(hit.Metadata)
	if unique > 1 {
		s += float64(min(unique, 8)) * 0.01
	}
	if top > 0 {
		s += float64(min(top, 12)) * 0.003
	}
	return s
}

// moduleSpread returns the number of distinct modules in the caller/callee
// summary and the largest per-module count
func moduleSpread(meta *types.Metadata) (unique, top int) {
	if meta == nil || meta.ModuleSummary == nil {
		return 0, 0
	}
	counts := make(map[string]int)
	track := func(list []types.ModuleCount) {
		for _, mc := range list {
			name := mc.Module
			if name == "" {
				name = "unknown"
			}
			c := mc.Count
			if c == 0 {
				c = 1
			}
			counts[name] += c
		}
	}
	track(meta.ModuleSummary.Callers)
	track(meta.ModuleSummary.Callees)
	for _, c := range counts {
		top = max(top, c)
	}
	return len(counts), top
}

func metadataText(hit *types.SymbolHit) string {
	if hit.Metadata == nil {
		return ""
	}
	b, err := json.Marshal(hit.Metadata)
	if err != nil {
		return ""
	}
	return strings.ToLower(string(b))
}
