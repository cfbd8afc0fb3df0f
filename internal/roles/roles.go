package roles

import (
	"strings"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

// metadataRoleAliases maps upstream role strings to roles. Canonical role
// names map to themselves.
var metadataRoleAliases = map[string]types.Role{
	"CONTROLLER":    types.RoleRestController,
	"ENDPOINT":      types.RoleRestEndpoint,
	"SERVICE":       types.RoleSpringBean,
	"COMPONENT":     types.RoleSpringBean,
	"BEAN":          types.RoleSpringBean,
	"CONFIGURATION": types.RoleConfig,
	"MAPPER":        types.RoleRepository,
	"APPLICATION":   types.RoleEntrypoint,
	"MAIN":          types.RoleEntrypoint,
}

// AnnotationRule maps an annotation name suffix to a role
type AnnotationRule struct {
	Suffix string
	Role   types.Role
}

// AnnotationRules are matched against normalized annotation names
var AnnotationRules = []AnnotationRule{
	{"springbootapplication", types.RoleEntrypoint},
	{"enablediscoveryclient", types.RoleDiscoveryClient},
	{"enableeurekaclient", types.RoleDiscoveryClient},
	{"enableeurekaserver", types.RoleDiscoveryServer},
	{"restcontroller", types.RoleRestController},
	{"controller", types.RoleRestController},
	{"requestmapping", types.RoleRestEndpoint},
	{"getmapping", types.RoleRestEndpoint},
	{"postmapping", types.RoleRestEndpoint},
	{"putmapping", types.RoleRestEndpoint},
	{"deletemapping", types.RoleRestEndpoint},
	{"patchmapping", types.RoleRestEndpoint},
	{"component", types.RoleSpringBean},
	{"service", types.RoleSpringBean},
	{"repository", types.RoleRepository},
	{"configuration", types.RoleConfig},
}

// NameRule assigns a role when its predicate matches
type NameRule struct {
	Name  string
	Role  types.Role
	Match func(s *Subject) bool
}

// NameRules run after the annotation rules, in order
var NameRules = []NameRule{
	{"test-fqn-or-path", types.RoleTest, func(s *Subject) bool {
		return strings.Contains(s.FQN, "test") || strings.Contains(s.Path, "/test/")
	}},
	{"repository-or-mapper-name", types.RoleRepository, func(s *Subject) bool {
		return strings.Contains(s.SimpleName, "repository") || strings.HasSuffix(s.SimpleName, "mapper")
	}},
	{"controller-name", types.RoleRestController, func(s *Subject) bool {
		return strings.HasSuffix(s.SimpleName, "controller")
	}},
	{"dto-name", types.RoleDTO, func(s *Subject) bool {
		return strings.HasSuffix(s.SimpleName, "dto")
	}},
	{"config-name", types.RoleConfig, func(s *Subject) bool {
		return strings.HasSuffix(s.SimpleName, "config")
	}},
	{"service-name", types.RoleSpringBean, func(s *Subject) bool {
		return strings.HasSuffix(s.SimpleName, "service")
	}},
	{"entity-fqn-or-path", types.RoleEntity, func(s *Subject) bool {
		return containsAny(s.FQN, "entity", "domain", "model") || containsAny(s.Path, "entity", "domain", "model")
	}},
	{"mapped-method", types.RoleRestEndpoint, func(s *Subject) bool {
		if s.Kind != types.KindMethod {
			return false
		}
		for _, a := range s.Annotations {
			if strings.HasSuffix(a, "mapping") {
				return true
			}
		}
		return false
	}},
}

// Subject is the normalized view of a hit that rules inspect
type Subject struct {
	Kind         types.SymbolKind
	FQN          string // lowercased
	SimpleName   string // lowercased last dotted segment
	Path         string // lowercased file or module path
	Annotations  []string
	MetadataRole string // uppercased
}

// NewSubject normalizes a hit for rule evaluation
func NewSubject(hit *types.SymbolHit) *Subject {
	s := &Subject{
		Kind: hit.Kind,
		FQN:  strings.ToLower(hit.FQN),
	}
	s.SimpleName = s.FQN
	if idx := strings.LastIndex(s.FQN, "."); idx >= 0 {
		s.SimpleName = s.FQN[idx+1:]
	}
	path := hit.ModulePath
	if hit.Metadata != nil {
		if hit.Metadata.FilePath != "" {
			path = hit.Metadata.FilePath
		}
		s.MetadataRole = strings.ToUpper(strings.TrimSpace(hit.Metadata.Role))
		for _, a := range hit.Metadata.Annotations {
			s.Annotations = append(s.Annotations, NormalizeAnnotation(a))
		}
	}
	s.Path = strings.ToLower(path)
	if hit.SpringInfo != nil {
		for _, a := range hit.SpringInfo.Annotations {
			s.Annotations = append(s.Annotations, NormalizeAnnotation(a))
		}
	}
	return s
}

// NormalizeAnnotation lowercases an annotation and strips "@", package and arguments
func NormalizeAnnotation(a string) string {
	a = strings.ToLower(strings.TrimSpace(a))
	a = strings.TrimPrefix(a, "@")
	if idx := strings.IndexByte(a, '('); idx >= 0 {
		a = a[:idx]
	}
	if idx := strings.LastIndex(a, "."); idx >= 0 {
		a = a[idx+1:]
	}
	return strings.TrimSpace(a)
}

// Classify returns the non-empty ordered role set for a hit.
// It only reads the hit, so classifying twice yields the same result.
func Classify(hit *types.SymbolHit) types.RoleSet {
	s := NewSubject(hit)
	var out types.RoleSet

	if role, ok := metadataRole(s.MetadataRole); ok {
		out = out.Add(role)
	}
	for _, a := range s.Annotations {
		for _, rule := range AnnotationRules {
			if strings.HasSuffix(a, rule.Suffix) {
				out = out.Add(rule.Role)
			}
		}
	}
	for _, rule := range NameRules {
		if rule.Match(s) {
			out = out.Add(rule.Role)
		}
	}
	if len(out) == 0 {
		out = types.RoleSet{types.RoleOther}
	}
	return out
}

// Annotate returns copies of hits with Roles populated
func Annotate(hits []types.SymbolHit) []types.SymbolHit {
	if len(hits) == 0 {
		return nil
	}
	out := make([]types.SymbolHit, len(hits))
	for i := range hits {
		h := hits[i].Clone()
		h.Roles = Classify(&h)
		out[i] = h
	}
	return out
}

func metadataRole(raw string) (types.Role, bool) {
	if raw == "" {
		return "", false
	}
	if r := types.Role(raw); r.Valid() && r != types.RoleOther {
		return r, true
	}
	r, ok := metadataRoleAliases[raw]
	return r, ok
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
