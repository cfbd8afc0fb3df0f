package scenario

import (
	"strings"

	"github.com/dshills/ideactx-mcp/internal/profile"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

// Hints carry the strategy context a specialization needs
type Hints struct {
	Entity string
	Module string
}

// Specializer reshapes merged hits for known scenario profiles.
// Everything except the optional source scan under projectRoot is pure.
type Specializer struct {
	rules       *profile.Rules
	projectRoot string
}

// New creates a Specializer. An empty projectRoot disables source scanning.
func New(rules *profile.Rules, projectRoot string) *Specializer {
	return &Specializer{rules: rules, projectRoot: projectRoot}
}

// Specialize applies the aggregation for profileID. When a specialization
// yields nothing the input is returned unchanged.
func (s *Specializer) Specialize(hits []types.SymbolHit, profileID string, hints Hints) []types.SymbolHit {
	scoped := hits
	if profileID == types.ProfileEntityEndpoints || profileID == types.ProfileEntityImpact {
		scoped = withoutKind(hits, types.KindModule)
	}

	var out []types.SymbolHit
	switch profileID {
	case types.ProfileEntityEndpoints:
		out = s.entityEndpoints(scoped, hints)
	case types.ProfileEntityImpact:
		out = s.entityImpact(scoped, hints)
	case types.ProfileAllBeans:
		out = expandBeans(hits)
	case types.ProfileBeanPostProcessor:
		out = beanPostProcessors(scoped)
	}
	if len(out) == 0 {
		return hits
	}
	return out
}

// MatchesEntity reports whether the lowercased entity appears in the hit FQN,
// summary or serialized metadata. An empty entity matches everything.
func MatchesEntity(hit *types.SymbolHit, entity string) bool {
	if entity == "" {
		return true
	}
	return strings.Contains(hit.Text(), strings.ToLower(entity))
}

func withoutKind(hits []types.SymbolHit, kind types.SymbolKind) []types.SymbolHit {
	var out []types.SymbolHit
	for _, h := range hits {
		if h.Kind != kind {
			out = append(out, h)
		}
	}
	return out
}

func selectHits(hits []types.SymbolHit, keep func(h *types.SymbolHit) bool) []types.SymbolHit {
	var out []types.SymbolHit
	for i := range hits {
		if keep(&hits[i]) {
			out = append(out, hits[i])
		}
	}
	return out
}
