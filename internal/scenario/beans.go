package scenario

import (
	"fmt"
	"strings"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

const beanScoreStep = 0.001

// expandBeans replaces MODULE hits that list spring beans with one CLASS hit
// per bean, deduplicated by FQN
func expandBeans(hits []types.SymbolHit) []types.SymbolHit {
	var combined []types.SymbolHit
	var modules []types.SymbolHit
	for _, h := range hits {
		if h.Kind == types.KindModule {
			modules = append(modules, h)
		} else {
			combined = append(combined, h)
		}
	}
	for _, m := range modules {
		combined = append(combined, beansFromModule(m)...)
	}

	seen := make(map[string]struct{}, len(combined))
	var out []types.SymbolHit
	for _, h := range combined {
		key := h.FQN
		if key == "" {
			key = h.Module + ":" + h.Summary
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out
}

func beansFromModule(m types.SymbolHit) []types.SymbolHit {
	if m.Metadata == nil || len(m.Metadata.SpringBeans) == 0 {
		return nil
	}
	source := m.Module
	if source == "" {
		source = "module"
	}
	out := make([]types.SymbolHit, 0, len(m.Metadata.SpringBeans))
	for i, bean := range m.Metadata.SpringBeans {
		out = append(out, types.SymbolHit{
			FQN:        bean,
			Kind:       types.KindClass,
			Module:     m.Module,
			RepoName:   m.RepoName,
			IndexLevel: types.LevelClass,
			Summary:    fmt.Sprintf("%s (from %s)", bean, source),
			Score:      m.Score - float64(i)*beanScoreStep,
			Roles:      RolesFromBeanName(bean),
			Metadata:   &types.Metadata{SourceModule: m.FQN, Derived: true},
		})
	}
	return out
}

// RolesFromBeanName infers roles from a bean class name, defaulting to SPRING_BEAN
func RolesFromBeanName(bean string) types.RoleSet {
	lower := strings.ToLower(bean)
	var roles types.RoleSet
	if strings.Contains(lower, "controller") || strings.Contains(lower, "resource") {
		roles = roles.Add(types.RoleRestController)
	}
	if strings.Contains(lower, "repository") {
		roles = roles.Add(types.RoleRepository)
	}
	if strings.Contains(lower, "service") || strings.Contains(lower, "bean") || strings.Contains(lower, "component") {
		roles = roles.Add(types.RoleSpringBean)
	}
	if strings.Contains(lower, "config") {
		roles = roles.Add(types.RoleConfig)
	}
	if len(roles) == 0 {
		roles = types.RoleSet{types.RoleSpringBean}
	}
	return roles
}

// beanPostProcessors keeps non-test hits from spring-context modules
func beanPostProcessors(hits []types.SymbolHit) []types.SymbolHit {
	return selectHits(hits, func(h *types.SymbolHit) bool {
		return !h.Roles.Has(types.RoleTest) &&
			!strings.Contains(strings.ToLower(h.FQN), "test") &&
			strings.Contains(h.Module, "spring-context")
	})
}
