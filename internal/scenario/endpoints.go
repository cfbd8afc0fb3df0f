package scenario

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

const (
	standaloneEndpointScore  = 0.5
	syntheticControllerScore = 0.4
	syntheticScanLimit       = 50
)

var (
	annotationPathPattern = regexp.MustCompile(`\("([^"]+)"\)`)
	summaryMethodPattern  = regexp.MustCompile(`([A-Za-z0-9_]+)\s*\(`)
	trailingNamePattern   = regexp.MustCompile(`\.([A-Za-z0-9_]+)$`)
)

func (s *Specializer) entityEndpoints(scoped []types.SymbolHit, hints Hints) []types.SymbolHit {
	controllers := selectHits(scoped, func(h *types.SymbolHit) bool {
		return h.Roles.Has(types.RoleRestController) && !h.Roles.Has(types.RoleTest) && MatchesEntity(h, hints.Entity)
	})
	methods := selectHits(scoped, func(h *types.SymbolHit) bool {
		return h.Kind == types.KindMethod || h.Roles.Has(types.RoleRestEndpoint)
	})
	if out := s.aggregateControllers(controllers, methods, hints); len(out) > 0 {
		return out
	}

	rest := selectHits(scoped, func(h *types.SymbolHit) bool {
		return h.Roles.HasAny(types.RoleRestController, types.RoleRestEndpoint) && MatchesEntity(h, hints.Entity)
	})
	if nonTest := selectHits(rest, func(h *types.SymbolHit) bool { return !h.Roles.Has(types.RoleTest) }); len(nonTest) > 0 {
		return nonTest
	}
	return rest
}

// endpointIndex groups method-level descriptors by controller in first-seen order
type endpointIndex struct {
	order []string
	byCtl map[string][]types.EndpointDescriptor
}

func (s *Specializer) aggregateControllers(controllers, methods []types.SymbolHit, hints Hints) []types.SymbolHit {
	relevant := selectHits(methods, func(h *types.SymbolHit) bool { return MatchesEntity(h, hints.Entity) })
	index := collectMethodEndpoints(relevant)

	var out []types.SymbolHit
	for _, ctl := range controllers {
		var endpoints []types.EndpointDescriptor
		endpoints = append(endpoints, index.byCtl[ctl.FQN]...)
		if ctl.Metadata != nil {
			for _, ep := range parseEndpointsFile(s.resolveSourcePath(ctl.Metadata.FilePath)) {
				ep.Controller = ctl.FQN
				ep.Module = ctl.Module
				endpoints = append(endpoints, ep)
			}
			endpoints = append(endpoints, metadataEndpoints(&ctl)...)
		}
		endpoints = DedupEndpoints(endpoints)
		if hints.Entity != "" {
			if matched := endpointsMentioning(endpoints, hints.Entity); len(matched) > 0 {
				endpoints = matched
			}
		}
		if len(endpoints) == 0 {
			out = append(out, ctl)
			continue
		}
		agg := ctl.Clone()
		agg.Summary = fmt.Sprintf("%s (%d endpoint%s)", ctl.FQN, len(endpoints), plural(len(endpoints), "", "s"))
		agg.Meta().Endpoints = endpoints
		out = append(out, agg)
	}
	if len(out) > 0 {
		return out
	}

	for _, ctl := range index.order {
		for _, ep := range index.byCtl[ctl] {
			out = append(out, endpointHit(ep))
		}
	}
	if len(out) > 0 {
		return out
	}

	module := hints.Module
	if module == "" && len(controllers) > 0 {
		module = controllers[0].Module
	}
	return s.synthesizeController(hints.Entity, module)
}

func collectMethodEndpoints(methods []types.SymbolHit) endpointIndex {
	idx := endpointIndex{byCtl: make(map[string][]types.EndpointDescriptor)}
	for i := range methods {
		h := &methods[i]
		ctl := controllerOf(h)
		if ctl == "" {
			continue
		}
		name := methodNameOf(h)
		if name == "" {
			continue
		}
		var annotations []string
		if h.Metadata != nil {
			annotations = h.Metadata.Annotations
		}
		if _, seen := idx.byCtl[ctl]; !seen {
			idx.order = append(idx.order, ctl)
		}
		idx.byCtl[ctl] = append(idx.byCtl[ctl], types.EndpointDescriptor{
			Controller: ctl,
			Module:     h.Module,
			Name:       name,
			HTTPVerb:   DetectVerb(annotations),
			HTTPPath:   DetectPath(annotations),
			Summary:    h.Summary,
		})
	}
	return idx
}

// metadataEndpoints builds descriptors from a controller's methods and methodAnnotations
func metadataEndpoints(ctl *types.SymbolHit) []types.EndpointDescriptor {
	meta := ctl.Metadata
	out := make([]types.EndpointDescriptor, 0, len(meta.Methods))
	for _, name := range meta.Methods {
		annotations := meta.MethodAnnotations[name]
		out = append(out, types.EndpointDescriptor{
			Controller: ctl.FQN,
			Module:     ctl.Module,
			Name:       name,
			HTTPVerb:   DetectVerb(annotations),
			HTTPPath:   DetectPath(annotations),
		})
	}
	return out
}

// controllerOf derives the enclosing controller FQN of a method hit
func controllerOf(h *types.SymbolHit) string {
	if m := h.Metadata; m != nil {
		for _, v := range []string{m.EnclosingClass, m.ParentFQN, m.ControllerFQN, m.ClassFQN} {
			if v != "" {
				return v
			}
		}
	}
	if before, _, ok := strings.Cut(h.FQN, "#"); ok {
		return before
	}
	if i := strings.LastIndex(h.FQN, "."); i > 0 {
		return h.FQN[:i]
	}
	return ""
}

// methodNameOf derives the method name of a method hit
func methodNameOf(h *types.SymbolHit) string {
	if h.Metadata != nil && h.Metadata.MethodName != "" {
		return h.Metadata.MethodName
	}
	if _, after, ok := strings.Cut(h.FQN, "#"); ok {
		return after
	}
	if m := trailingNamePattern.FindStringSubmatch(h.FQN); m != nil {
		return m[1]
	}
	if m := summaryMethodPattern.FindStringSubmatch(h.Summary); m != nil {
		return m[1]
	}
	return ""
}

// DetectVerb maps the first mapping annotation to an HTTP verb
func DetectVerb(annotations []string) string {
	for _, a := range annotations {
		lower := strings.ToLower(a)
		switch {
		case strings.Contains(lower, "getmapping"):
			return "GET"
		case strings.Contains(lower, "postmapping"):
			return "POST"
		case strings.Contains(lower, "putmapping"):
			return "PUT"
		case strings.Contains(lower, "deletemapping"):
			return "DELETE"
		case strings.Contains(lower, "patchmapping"):
			return "PATCH"
		case strings.Contains(lower, "requestmapping"):
			if m := requestMethodPattern.FindStringSubmatch(a); m != nil {
				return strings.ToUpper(m[1])
			}
			return "REQUEST"
		}
	}
	return ""
}

// DetectPath returns the first quoted annotation argument
func DetectPath(annotations []string) string {
	for _, a := range annotations {
		if m := annotationPathPattern.FindStringSubmatch(a); m != nil {
			return m[1]
		}
	}
	return ""
}

// DedupEndpoints keeps the first descriptor per controller|name|verb|path
func DedupEndpoints(endpoints []types.EndpointDescriptor) []types.EndpointDescriptor {
	seen := make(map[string]struct{}, len(endpoints))
	var out []types.EndpointDescriptor
	for _, ep := range endpoints {
		key := ep.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ep)
	}
	return out
}

func endpointsMentioning(endpoints []types.EndpointDescriptor, entity string) []types.EndpointDescriptor {
	lower := strings.ToLower(entity)
	var out []types.EndpointDescriptor
	for _, ep := range endpoints {
		for _, v := range []string{ep.Name, ep.HTTPPath, ep.Summary} {
			if v != "" && strings.Contains(strings.ToLower(v), lower) {
				out = append(out, ep)
				break
			}
		}
	}
	return out
}

func endpointHit(ep types.EndpointDescriptor) types.SymbolHit {
	var parts []string
	for _, v := range []string{ep.HTTPVerb, ep.HTTPPath, ep.Summary} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	fqn := ep.Controller + "#" + ep.Name
	summary := fqn
	if len(parts) > 0 {
		summary = strings.Join(parts, " ")
	}
	desc := ep
	return types.SymbolHit{
		FQN:        fqn,
		Kind:       types.KindMethod,
		Module:     ep.Module,
		IndexLevel: types.LevelMethod,
		Summary:    summary,
		Score:      standaloneEndpointScore,
		Roles:      types.RoleSet{types.RoleRestEndpoint},
		Metadata:   &types.Metadata{Endpoint: &desc, Derived: true},
	}
}

// synthesizeController builds a controller hit from the first entity-named
// controller file in the project tree
func (s *Specializer) synthesizeController(entity, moduleHint string) []types.SymbolHit {
	if entity == "" || s.projectRoot == "" {
		return nil
	}
	var controllerFile string
	for _, f := range s.scanEntityFiles(entity, moduleHint, syntheticScanLimit) {
		if s.rules.IsControllerName(strings.ToLower(filepath.Base(f))) {
			controllerFile = f
			break
		}
	}
	if controllerFile == "" {
		return nil
	}

	loc := s.locate(controllerFile, moduleHint)
	endpoints := parseEndpointsFile(controllerFile)
	for i := range endpoints {
		endpoints[i].Controller = loc.fqn
		endpoints[i].Module = loc.module
	}
	return []types.SymbolHit{{
		FQN:        loc.fqn,
		Kind:       types.KindClass,
		Module:     loc.module,
		RepoName:   filepath.Base(s.projectRoot),
		IndexLevel: types.LevelClass,
		Summary:    fmt.Sprintf("%s (%s synthetic controller)", loc.fqn, entity),
		Score:      syntheticControllerScore,
		Roles:      types.RoleSet{types.RoleRestController},
		Metadata: &types.Metadata{
			FilePath:  loc.filePath,
			Endpoints: endpoints,
			Synthetic: true,
		},
	}}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
