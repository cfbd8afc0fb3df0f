package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

func hit(fqn string, kind types.SymbolKind, meta *types.Metadata) *types.SymbolHit {
	return &types.SymbolHit{FQN: fqn, Kind: kind, Module: "m", Metadata: meta}
}

func TestAnnotationRules(t *testing.T) {
	for _, rule := range AnnotationRules {
		t.Run(rule.Suffix, func(t *testing.T) {
			h := hit("x.Plain", types.KindClass, &types.Metadata{
				Annotations: types.StringList{"@org.springframework.X" + rule.Suffix + "(\"/p\")"},
			})
			assert.True(t, Classify(h).Has(rule.Role), "annotation %s should yield %s", rule.Suffix, rule.Role)
		})
	}
}

func TestNameRules(t *testing.T) {
	tests := []struct {
		rule string
		hit  *types.SymbolHit
		want types.Role
	}{
		{"test-fqn-or-path", hit("org.x.VisitResourceTest", types.KindClass, nil), types.RoleTest},
		{"test-fqn-or-path", hit("org.x.Visit", types.KindClass, &types.Metadata{FilePath: "src/test/java/Visit.java"}), types.RoleTest},
		{"repository-or-mapper-name", hit("org.x.VisitRepository", types.KindInterface, nil), types.RoleRepository},
		{"repository-or-mapper-name", hit("org.x.VisitMapper", types.KindClass, nil), types.RoleRepository},
		{"controller-name", hit("org.x.VisitController", types.KindClass, nil), types.RoleRestController},
		{"dto-name", hit("org.x.VisitDto", types.KindClass, nil), types.RoleDTO},
		{"config-name", hit("org.x.WebConfig", types.KindClass, nil), types.RoleConfig},
		{"service-name", hit("org.x.VisitService", types.KindClass, nil), types.RoleSpringBean},
		{"entity-fqn-or-path", hit("org.x.model.Visit", types.KindClass, nil), types.RoleEntity},
		{"mapped-method", hit("org.x.VisitResource.create", types.KindMethod, &types.Metadata{Annotations: types.StringList{"@PostMapping"}}), types.RoleRestEndpoint},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			assert.True(t, Classify(tt.hit).Has(tt.want))
		})
	}
}

func TestMetadataRole(t *testing.T) {
	h := hit("org.x.Anything", types.KindClass, &types.Metadata{Role: "controller"})
	roles := Classify(h)
	assert.Equal(t, types.RoleRestController, roles.Primary())

	h = hit("org.x.Anything", types.KindClass, &types.Metadata{Role: "entrypoint"})
	assert.Equal(t, types.RoleEntrypoint, Classify(h).Primary())
}

func TestSpringInfoAnnotations(t *testing.T) {
	h := hit("org.x.VisitsServiceApplication", types.KindClass, nil)
	h.SpringInfo = &types.SpringInfo{Annotations: []string{"SpringBootApplication", "EnableDiscoveryClient"}}
	roles := Classify(h)
	assert.True(t, roles.HasAll(types.RoleEntrypoint, types.RoleDiscoveryClient))
}

func TestClassifyDefaultsToOther(t *testing.T) {
	assert.Equal(t, types.RoleSet{types.RoleOther}, Classify(hit("org.x.Util", types.KindClass, nil)))
}

func TestClassifyIsIdempotent(t *testing.T) {
	h := hit("org.x.web.VisitController", types.KindClass, &types.Metadata{Annotations: types.StringList{"@RestController"}})
	first := Annotate([]types.SymbolHit{*h})
	second := Annotate(first)
	assert.Equal(t, first[0].Roles, second[0].Roles)
	assert.Equal(t, Classify(h), Classify(h))
	assert.Nil(t, h.Roles, "Annotate must not mutate its input")
}

func TestNormalizeAnnotation(t *testing.T) {
	assert.Equal(t, "getmapping", NormalizeAnnotation(`@GetMapping("/owners")`))
	assert.Equal(t, "restcontroller", NormalizeAnnotation("org.springframework.web.bind.annotation.RestController"))
	assert.Equal(t, "service", NormalizeAnnotation("  @Service "))
}
