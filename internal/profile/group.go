package profile

import (
	"fmt"
	"strings"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

const unknownModule = "unknown-module"

// Group collapses hits according to the profile grouping mode
func Group(hits []types.SymbolHit, grouping types.Grouping) []types.SymbolHit {
	if len(hits) == 0 {
		return hits
	}
	switch grouping {
	case types.GroupingByModule:
		return GroupByModule(hits)
	case types.GroupingByRole:
		return GroupByRole(hits)
	}
	return hits
}

// GroupByModule emits one MODULE hit per module in first-seen order
func GroupByModule(hits []types.SymbolHit) []types.SymbolHit {
	var order []string
	members := make(map[string][]types.SymbolHit)
	for _, h := range hits {
		mod := h.Module
		if mod == "" {
			mod = unknownModule
		}
		if _, ok := members[mod]; !ok {
			order = append(order, mod)
		}
		members[mod] = append(members[mod], h)
	}

	out := make([]types.SymbolHit, 0, len(order))
	for _, mod := range order {
		group := members[mod]
		var roles types.RoleSet
		for _, m := range group {
			roles = roles.Add(m.Roles...)
		}
		label := "module"
		if len(roles) > 0 {
			label = strings.Join(roles.Strings(), ", ")
		}
		out = append(out, types.SymbolHit{
			FQN:      mod + "#module-group",
			Kind:     types.KindModule,
			Module:   mod,
			RepoName: group[0].RepoName,
			Summary:  fmt.Sprintf("%s (%s)", mod, label),
			Score:    maxScore(group),
			Roles:    roles,
			Metadata: &types.Metadata{
				GroupSize: len(group),
				Members:   memberFQNs(group),
			},
		})
	}
	return out
}

// GroupByRole emits one hit per primary role in first-seen order
func GroupByRole(hits []types.SymbolHit) []types.SymbolHit {
	var order []types.Role
	members := make(map[types.Role][]types.SymbolHit)
	for _, h := range hits {
		role := h.Roles.Primary()
		if _, ok := members[role]; !ok {
			order = append(order, role)
		}
		members[role] = append(members[role], h)
	}

	out := make([]types.SymbolHit, 0, len(order))
	for _, role := range order {
		group := members[role]
		agg := group[0].Clone()
		agg.FQN = string(role) + "-group"
		agg.Summary = fmt.Sprintf("%s: %d result(s)", role, len(group))
		agg.Score = maxScore(group)
		agg.Roles = types.RoleSet{role}
		meta := agg.Meta()
		meta.GroupedRole = role
		meta.GroupSize = len(group)
		meta.Members = memberFQNs(group)
		out = append(out, agg)
	}
	return out
}

func maxScore(hits []types.SymbolHit) float64 {
	best := 0.0
	for _, h := range hits {
		best = max(best, h.Score)
	}
	return best
}

func memberFQNs(hits []types.SymbolHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.FQN
	}
	return out
}
