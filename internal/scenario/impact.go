package scenario

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dshills/ideactx-mcp/internal/profile"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

const scannedImpactScore = 0.42

func (s *Specializer) entityImpact(scoped []types.SymbolHit, hints Hints) []types.SymbolHit {
	classes := selectHits(scoped, func(h *types.SymbolHit) bool {
		return h.Kind != types.KindModule && h.Kind != types.KindMethod && MatchesEntity(h, hints.Entity)
	})
	if len(classes) == 0 {
		classes = s.scanImpactHits(hints)
	}
	if len(classes) == 0 {
		return nil
	}

	buckets := s.rules.Impact.Buckets
	members := make([][]types.SymbolHit, len(buckets))
	for _, h := range classes {
		if i := bucketFor(h.Roles, buckets); i >= 0 {
			members[i] = append(members[i], h)
		}
	}

	var out []types.SymbolHit
	for i, b := range buckets {
		if len(members[i]) > 0 {
			out = append(out, impactGroup(b, members[i]))
		}
	}
	return out
}

// bucketFor returns the first bucket whose role the hit carries, else the
// first catch-all bucket, else -1
func bucketFor(roles types.RoleSet, buckets []profile.ImpactBucket) int {
	catchAll := -1
	for i, b := range buckets {
		if b.Role == "" {
			if catchAll < 0 {
				catchAll = i
			}
			continue
		}
		if roles.Has(b.Role) {
			return i
		}
	}
	return catchAll
}

func impactGroup(b profile.ImpactBucket, members []types.SymbolHit) types.SymbolHit {
	role := b.Role
	if role == "" {
		role = types.RoleOther
	}
	agg := members[0].Clone()
	agg.FQN = b.Name + "-entity-impact"
	agg.Kind = types.KindClass
	agg.Summary = fmt.Sprintf("%s (%d match%s)", b.Label, len(members), plural(len(members), "", "es"))
	agg.Roles = types.RoleSet{role}

	best := 0.0
	impact := make([]types.ImpactMember, len(members))
	for i, m := range members {
		best = max(best, m.Score)
		im := types.ImpactMember{
			FQN:    m.FQN,
			Module: m.Module,
			Roles:  append(types.RoleSet(nil), m.Roles...),
		}
		if m.Metadata != nil {
			im.FilePath = m.Metadata.FilePath
		}
		impact[i] = im
	}
	agg.Score = best

	meta := agg.Meta()
	meta.Impact = impact
	meta.GroupedRole = role
	meta.GroupSize = len(members)
	return agg
}

// scanImpactHits builds class hits from entity-named Java files in the project tree
func (s *Specializer) scanImpactHits(hints Hints) []types.SymbolHit {
	if hints.Entity == "" || s.projectRoot == "" {
		return nil
	}
	files := s.scanEntityFiles(hints.Entity, hints.Module, s.rules.Impact.ScanLimit)
	out := make([]types.SymbolHit, 0, len(files))
	for _, f := range files {
		loc := s.locate(f, hints.Module)
		out = append(out, types.SymbolHit{
			FQN:        loc.fqn,
			Kind:       types.KindClass,
			Module:     loc.module,
			RepoName:   filepath.Base(s.projectRoot),
			IndexLevel: types.LevelClass,
			Summary:    fmt.Sprintf("%s (%s impact fallback)", loc.fqn, hints.Entity),
			Score:      scannedImpactScore,
			Roles:      s.rolesFromPath(loc.fqn, loc.pkgPath, hints.Entity),
			Metadata:   &types.Metadata{FilePath: loc.filePath, Synthetic: true},
		})
	}
	return out
}

// rolesFromPath classifies a scanned file from its FQN and package path
func (s *Specializer) rolesFromPath(fqn, pkgPath, entity string) types.RoleSet {
	lowerFQN := strings.ToLower(fqn)
	lowerPath := "/" + strings.ToLower(pkgPath)
	lowerEntity := strings.ToLower(entity)

	var roles types.RoleSet
	if strings.Contains(lowerFQN, "repository") {
		roles = roles.Add(types.RoleRepository)
	}
	simple := lowerFQN
	if i := strings.LastIndex(simple, "."); i >= 0 {
		simple = simple[i+1:]
	}
	if s.rules.IsControllerName(simple) {
		roles = roles.Add(types.RoleRestController)
	}
	if strings.Contains(lowerFQN, "dto") || strings.Contains(lowerPath, "/dto/") {
		roles = roles.Add(types.RoleDTO)
	}
	if strings.Contains(lowerFQN, "test") || strings.Contains(lowerPath, "/test/") {
		roles = roles.Add(types.RoleTest)
	}
	isEntity := strings.HasSuffix(lowerFQN, "."+lowerEntity) || strings.Contains(lowerFQN, lowerEntity+"builder")
	for _, hint := range s.rules.Impact.EntityPathHints {
		if strings.Contains(lowerPath, strings.ToLower(hint)) {
			isEntity = true
		}
	}
	if isEntity {
		roles = roles.Add(types.RoleEntity)
	}
	if len(roles) == 0 {
		roles = types.RoleSet{types.RoleOther}
	}
	return roles
}
