package pipeline

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ideactx-mcp/internal/budget"
	"github.com/dshills/ideactx-mcp/internal/fixture"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

type exactCall struct {
	query        string
	limit        int
	moduleFilter string
}

// mockExact implements ExactMatcher for testing
type mockExact struct {
	mu    sync.Mutex
	hits  map[string][]types.SymbolHit // keyed by query; "" matches any
	err   error
	calls []exactCall
}

func (m *mockExact) SearchSymbols(ctx context.Context, query string, limit int, moduleFilter string) ([]types.SymbolHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, exactCall{query, limit, moduleFilter})
	if m.err != nil {
		return nil, m.err
	}
	if hits, ok := m.hits[query]; ok {
		return types.CloneHits(hits), nil
	}
	return types.CloneHits(m.hits[""]), nil
}

func (m *mockExact) getCalls() []exactCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// mockVector implements VectorSearcher for testing
type mockVector struct {
	mu          sync.Mutex
	byLevel     map[types.Level][]types.SymbolHit
	unavailable bool
	queries     []types.VectorQuery
}

func (m *mockVector) Search(ctx context.Context, q types.VectorQuery) ([]types.SymbolHit, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	if m.unavailable {
		return nil, false
	}
	return types.CloneHits(m.byLevel[q.Level]), true
}

func (m *mockVector) query(level types.Level) (types.VectorQuery, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.queries {
		if q.Level == level {
			return q, true
		}
	}
	return types.VectorQuery{}, false
}

func (m *mockVector) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// frontReranker moves hits whose FQN contains match to the front
type frontReranker struct {
	match string
	query string
}

func (r *frontReranker) Apply(ctx context.Context, query string, hits []types.SymbolHit) ([]types.SymbolHit, bool) {
	r.query = query
	out := make([]types.SymbolHit, 0, len(hits))
	for _, h := range hits {
		if strings.Contains(h.FQN, r.match) {
			out = append(out, h)
		}
	}
	for _, h := range hits {
		if !strings.Contains(h.FQN, r.match) {
			out = append(out, h)
		}
	}
	return out, true
}

func newTestPipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func fqns(hits []types.SymbolHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.FQN
	}
	return out
}

func assertBudgetInvariants(t *testing.T, resp *types.SearchResponse, candidates int) {
	t.Helper()
	b := resp.ContextBudget
	assert.Equal(t, candidates, len(b.Delivered)+b.OmittedCount, "delivered + omitted")
	assert.LessOrEqual(t, b.UsedTokens, b.TokenLimit)
	assert.Equal(t, resp.FinalResults, b.Delivered)
}

func TestSearch_InvalidRequest(t *testing.T) {
	p := newTestPipeline(t, Config{})

	_, err := p.Search(context.Background(), types.SearchRequest{Query: "   "})
	assert.ErrorIs(t, err, types.ErrInvalidRequest)

	_, err = p.Search(context.Background(), types.SearchRequest{Query: "visits", Limit: 50})
	assert.ErrorIs(t, err, types.ErrInvalidRequest)

	_, err = p.Search(context.Background(), types.SearchRequest{Query: "visits", MaxContextTokens: 500})
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
}

func TestSearch_TargetedExactShortCircuit(t *testing.T) {
	exact := &mockExact{hits: map[string][]types.SymbolHit{"": {
		{FQN: "com.example.auth.UserService", Kind: types.KindInterface, Module: "auth-service", Summary: "User lookup"},
		{FQN: "com.example.billing.InvoiceService", Kind: types.KindInterface, Module: "billing-service", Summary: "Invoices"},
	}}}
	vector := &mockVector{}
	p := newTestPipeline(t, Config{Exact: exact, Vector: vector})

	resp, err := p.Search(context.Background(), types.SearchRequest{Query: "UserService", ModuleFilter: "auth-service"})
	require.NoError(t, err)

	assert.Equal(t, types.TierTargeted, resp.Strategy.Tier)
	assert.NotEmpty(t, resp.RequestID)
	require.Len(t, resp.Stages, 1)
	assert.Equal(t, types.StageExact, resp.Stages[0].Name)
	assert.Equal(t, []string{"com.example.auth.UserService"}, fqns(resp.FinalResults))
	assert.NotEmpty(t, resp.FinalResults[0].Roles)
	assert.False(t, resp.FallbackUsed)
	assert.Zero(t, vector.callCount(), "vector stages must not run")

	calls := exact.getCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, exactCall{"UserService", types.DefaultLimit, "auth-service"}, calls[0])
	assertBudgetInvariants(t, resp, 1)
}

func TestSearch_TotalMissUsesFallback(t *testing.T) {
	exact := &mockExact{err: errors.New("connection refused")}
	vector := &mockVector{unavailable: true}
	p := newTestPipeline(t, Config{Exact: exact, Vector: vector})

	resp, err := p.Search(context.Background(), types.SearchRequest{Query: "UserService"})
	require.NoError(t, err, "backend failures are not errors")

	assert.True(t, resp.FallbackUsed)
	require.NotEmpty(t, resp.Stages)
	last := resp.Stages[len(resp.Stages)-1]
	assert.Equal(t, types.StageFallback, last.Name)
	assert.Equal(t, []string{
		"com.example.auth.UserService",
		"com.example.auth.impl.UserServiceImpl",
		"com.example.auth.UserServiceImpl.findById",
	}, fqns(resp.FinalResults))
	assert.Equal(t, 1, vector.callCount(), "targeted tier runs the class stage after an empty exact stage")
	assertBudgetInvariants(t, resp, 3)
}

func TestSearch_NoBackends(t *testing.T) {
	p := newTestPipeline(t, Config{Fallback: []types.SymbolHit{}})

	resp, err := p.Search(context.Background(), types.SearchRequest{Query: "where are invoices created"})
	require.NoError(t, err)
	assert.True(t, resp.FallbackUsed)
	assert.Empty(t, resp.FinalResults)
	assert.Equal(t, 0, resp.ContextBudget.UsedTokens)
	assert.Equal(t, types.DefaultTokenLimit, resp.ContextBudget.TokenLimit)
}

func TestSearch_SpringBootEntrypoints(t *testing.T) {
	vector := &mockVector{byLevel: map[types.Level][]types.SymbolHit{
		types.LevelClass: {
			{
				FQN:      "org.springframework.samples.petclinic.visits.VisitsServiceApplication",
				Kind:     types.KindClass,
				Module:   "spring-petclinic-visits-service",
				Summary:  "Spring Boot entry point for the visits microservice",
				Metadata: &types.Metadata{Annotations: types.StringList{"@SpringBootApplication", "@EnableDiscoveryClient"}},
			},
			{
				FQN:      "org.springframework.samples.petclinic.customers.CustomersServiceApplication",
				Kind:     types.KindClass,
				Module:   "spring-petclinic-customers-service",
				Summary:  "Spring Boot entry point for the customers microservice",
				Metadata: &types.Metadata{Annotations: types.StringList{"SpringBootApplication"}},
			},
			{
				FQN:     "org.springframework.samples.petclinic.visits.web.VisitResource",
				Kind:    types.KindClass,
				Module:  "spring-petclinic-visits-service",
				Summary: "REST controller for the visits service",
			},
		},
		types.LevelModule: {
			{
				FQN:     "spring-petclinic-microservices:spring-petclinic-visits-service",
				Kind:    types.KindModule,
				Module:  "spring-petclinic-visits-service",
				Summary: "Module spring-petclinic-visits-service (4 classes, 2 packages) spring boot service",
			},
		},
	}}
	p := newTestPipeline(t, Config{Vector: vector})

	resp, err := p.Search(context.Background(), types.SearchRequest{
		Query: "Show me all Spring Boot service entry points across microservices",
	})
	require.NoError(t, err)

	assert.Equal(t, types.ScenarioSpringBootEntry, resp.Strategy.Scenario)
	assert.Equal(t, types.ProfileEntrypoints, resp.Strategy.Profile.ID)
	assert.False(t, resp.FallbackUsed)

	require.Len(t, resp.FinalResults, 2)
	var members []string
	for _, h := range resp.FinalResults {
		assert.Equal(t, types.KindModule, h.Kind)
		assert.True(t, strings.HasSuffix(h.FQN, "#module-group"), h.FQN)
		assert.True(t, h.Roles.Has(types.RoleEntrypoint))
		require.NotNil(t, h.Metadata)
		members = append(members, h.Metadata.Members...)
	}
	assert.ElementsMatch(t, []string{
		"org.springframework.samples.petclinic.visits.VisitsServiceApplication",
		"org.springframework.samples.petclinic.customers.CustomersServiceApplication",
	}, members)

	// The required ENTRYPOINT filter emptied the module stage
	assert.Empty(t, resp.ModuleResults)
	for _, st := range resp.Stages {
		for _, h := range st.Hits {
			assert.True(t, h.Roles.Has(types.RoleEntrypoint), "%s in %s stage", h.FQN, st.Name)
		}
	}
}

func TestSearch_EntityImpactGroups(t *testing.T) {
	vector := &mockVector{byLevel: map[types.Level][]types.SymbolHit{
		types.LevelClass: {
			{FQN: "org.springframework.samples.petclinic.visits.web.VisitResourceTest", Kind: types.KindClass, Module: "visits-service", Summary: "Tests for the visit controller"},
			{FQN: "org.springframework.samples.petclinic.visits.web.VisitDto", Kind: types.KindClass, Module: "visits-service", Summary: "Visit transfer object"},
			{
				FQN: "org.springframework.samples.petclinic.visits.web.VisitResource", Kind: types.KindClass, Module: "visits-service",
				Summary:  "REST controller for visits",
				Metadata: &types.Metadata{Annotations: types.StringList{"RestController"}},
			},
			{FQN: "org.springframework.samples.petclinic.visits.repository.VisitRepository", Kind: types.KindInterface, Module: "visits-service", Summary: "Visit persistence"},
			{FQN: "org.springframework.samples.petclinic.visits.model.Visit", Kind: types.KindClass, Module: "visits-service", Summary: "Visit JPA entity"},
		},
	}}
	exact := &mockExact{hits: map[string][]types.SymbolHit{"Visit": {
		{FQN: "org.springframework.samples.petclinic.visits.mapper.VisitMapper", Kind: types.KindClass, Module: "visits-service", Summary: "Maps visits"},
		{FQN: "org.springframework.samples.petclinic.visits.model.Visit", Kind: types.KindClass, Module: "visits-service", Summary: "Visit JPA entity"},
	}}}
	p := newTestPipeline(t, Config{Exact: exact, Vector: vector})

	resp, err := p.Search(context.Background(), types.SearchRequest{
		Query:      "If I change the Visit entity schema, what controllers, repositories, and DTOs will be affected?",
		ModuleHint: "visits-service",
	})
	require.NoError(t, err)

	assert.Equal(t, types.ScenarioEntityImpact, resp.Strategy.Scenario)
	assert.Equal(t, "Visit", resp.Strategy.EntityHint)
	assert.Equal(t, types.ProfileEntityImpact, resp.Strategy.Profile.ID)

	assert.Equal(t, []string{
		"ENTITY-entity-impact",
		"REPOSITORY-entity-impact",
		"CONTROLLER-entity-impact",
		"DTO-entity-impact",
		"TEST-entity-impact",
	}, fqns(resp.FinalResults))

	repos := resp.FinalResults[1]
	require.NotNil(t, repos.Metadata)
	var repoMembers []string
	for _, m := range repos.Metadata.Impact {
		repoMembers = append(repoMembers, m.FQN)
	}
	assert.Equal(t, []string{
		"org.springframework.samples.petclinic.visits.repository.VisitRepository",
		"org.springframework.samples.petclinic.visits.mapper.VisitMapper",
	}, repoMembers)
	assert.Equal(t, 2, repos.Metadata.GroupSize)
	assert.Equal(t, budget.PreviewDetailed, repos.Metadata.PreviewLevel, "entity-impact spends its budget breadth-first")

	calls := exact.getCalls()
	require.Len(t, calls, 1, "one supplementary class lookup")
	assert.Equal(t, exactCall{"Visit", resp.Strategy.ClassLimit, "visits-service"}, calls[0])

	q, ok := vector.query(types.LevelClass)
	require.True(t, ok)
	assert.Equal(t, "visits-service", q.ModuleHint)
	assert.Empty(t, q.ModuleFilter)
}

func TestSearch_BudgetTruncation(t *testing.T) {
	long := strings.Repeat("x", 2000)
	exact := &mockExact{hits: map[string][]types.SymbolHit{"": {
		{FQN: "com.shop.OrderService", Kind: types.KindInterface, Module: "orders", Summary: long},
		{FQN: "com.shop.OrderServiceImpl", Kind: types.KindClass, Module: "orders", Summary: long},
		{FQN: "com.shop.OrderServiceClient", Kind: types.KindClass, Module: "orders", Summary: long},
	}}}
	p := newTestPipeline(t, Config{Exact: exact})

	resp, err := p.Search(context.Background(), types.SearchRequest{Query: "OrderService", MaxContextTokens: 1200})
	require.NoError(t, err)

	b := resp.ContextBudget
	assert.Len(t, b.Delivered, 2)
	assert.Equal(t, 1, b.OmittedCount)
	assert.True(t, b.Truncated)
	assert.Equal(t, 1000, b.UsedTokens)
	assert.Equal(t, 1200, b.TokenLimit)
	assert.Equal(t, []string{"com.shop.OrderService", "com.shop.OrderServiceImpl"}, fqns(b.Delivered))
	assertBudgetInvariants(t, resp, 3)
}

func TestSearch_VectorStagesAndRerank(t *testing.T) {
	vector := &mockVector{byLevel: map[types.Level][]types.SymbolHit{
		types.LevelClass: {
			{FQN: "org.springframework.samples.petclinic.customers.model.OwnerRepository", Kind: types.KindInterface, Module: "spring-petclinic-customers-service", Summary: "Repository class for owner lookup"},
			{FQN: "org.springframework.samples.petclinic.customers.web.OwnerResource", Kind: types.KindClass, Module: "spring-petclinic-customers-service", Summary: "REST controller class for owner lookup"},
		},
	}}
	rr := &frontReranker{match: "OwnerResource"}
	p := newTestPipeline(t, Config{Vector: vector, Reranker: rr})

	resp, err := p.Search(context.Background(), types.SearchRequest{Query: "owner repository lookup"})
	require.NoError(t, err)

	assert.Equal(t, types.TierBalanced, resp.Strategy.Tier)
	assert.Equal(t, "spring-petclinic-customers-service", resp.Strategy.ModuleHint)
	assert.True(t, resp.RerankUsed)
	assert.Equal(t, "owner repository lookup", rr.query)
	require.Len(t, resp.FinalResults, 2)
	assert.Equal(t, "org.springframework.samples.petclinic.customers.web.OwnerResource", resp.FinalResults[0].FQN)

	classQ, ok := vector.query(types.LevelClass)
	require.True(t, ok)
	assert.Equal(t, 6, classQ.Limit)
	assert.Contains(t, classQ.Query, "class implementation")
	assert.Equal(t, "spring-petclinic-customers-service", classQ.ModuleHint)

	moduleQ, ok := vector.query(types.LevelModule)
	require.True(t, ok)
	assert.Equal(t, 4, moduleQ.Limit, "module hint trims the module stage")

	_, ok = vector.query(types.LevelMethod)
	assert.False(t, ok, "method stage needs a method limit")

	require.Len(t, resp.Stages, 1)
	assert.Equal(t, types.StageClass, resp.Stages[0].Name)
	assert.Empty(t, resp.MethodResults)
}

func TestSearch_ModuleFilterReachesVectorStages(t *testing.T) {
	vector := &mockVector{byLevel: map[types.Level][]types.SymbolHit{}}
	p := newTestPipeline(t, Config{Vector: vector, Fallback: []types.SymbolHit{}})

	_, err := p.Search(context.Background(), types.SearchRequest{
		Query:           "pet type formatter",
		ModuleFilter:    "spring-petclinic-customers-service",
		PreferredLevels: []types.Level{types.LevelMethod, types.LevelClass},
	})
	require.NoError(t, err)

	for _, lvl := range []types.Level{types.LevelClass, types.LevelMethod} {
		q, ok := vector.query(lvl)
		require.True(t, ok, lvl)
		assert.Equal(t, "spring-petclinic-customers-service", q.ModuleFilter)
	}
	_, ok := vector.query(types.LevelModule)
	assert.False(t, ok)
}

func TestSearch_FixtureReplay(t *testing.T) {
	reg, err := fixture.Parse(strings.NewReader(`{
		"petclinic-entrypoints": {
			"finalResults": [
				{"fqn": "spring-petclinic-visits-service#module-group", "kind": "MODULE", "module": "spring-petclinic-visits-service", "summary": "visits (ENTRYPOINT)"}
			],
			"contextBudget": {"usedTokens": 120000, "omittedCount": 2, "truncated": true},
			"stages": [{"name": "class", "hits": []}]
		}
	}`))
	require.NoError(t, err)

	exact := &mockExact{}
	vector := &mockVector{}
	p := newTestPipeline(t, Config{Exact: exact, Vector: vector, Fixtures: reg})

	resp, err := p.Search(context.Background(), types.SearchRequest{
		Query:            "Show me all Spring Boot service entry points",
		ScenarioID:       "petclinic-entrypoints",
		MaxContextTokens: 4000,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"spring-petclinic-visits-service#module-group"}, fqns(resp.FinalResults))
	assert.Equal(t, 4000, resp.ContextBudget.TokenLimit)
	assert.Equal(t, 4000, resp.ContextBudget.UsedTokens)
	assert.Equal(t, 2, resp.ContextBudget.OmittedCount)
	assert.True(t, resp.ContextBudget.Truncated)
	assert.Equal(t, types.ScenarioSpringBootEntry, resp.Strategy.Scenario)
	assert.NotEmpty(t, resp.RequestID)
	assert.Empty(t, exact.getCalls())
	assert.Zero(t, vector.callCount())

	// Unknown scenario ids run the live pipeline
	resp, err = p.Search(context.Background(), types.SearchRequest{Query: "UserService", ScenarioID: "unknown"})
	require.NoError(t, err)
	assert.True(t, resp.FallbackUsed)
}

func TestSearch_Deterministic(t *testing.T) {
	vector := &mockVector{byLevel: map[types.Level][]types.SymbolHit{
		types.LevelClass: {
			{FQN: "com.example.a.VisitService", Kind: types.KindClass, Module: "visits", Summary: "visit service class"},
			{FQN: "com.example.b.VisitServiceImpl", Kind: types.KindClass, Module: "visits", Summary: "visit service implementation class"},
		},
	}}
	p := newTestPipeline(t, Config{Vector: vector})
	req := types.SearchRequest{Query: "visit service flow", MaxContextTokens: 2000}

	first, err := p.Search(context.Background(), req)
	require.NoError(t, err)
	for range 5 {
		next, err := p.Search(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, fqns(first.FinalResults), fqns(next.FinalResults))
		assert.Equal(t, first.ContextBudget.UsedTokens, next.ContextBudget.UsedTokens)
		assert.Equal(t, first.Strategy, next.Strategy)
	}
}

func TestSearch_ConcurrentRequests(t *testing.T) {
	vector := &mockVector{byLevel: map[types.Level][]types.SymbolHit{
		types.LevelClass: {{FQN: "com.example.VisitService", Kind: types.KindClass, Module: "visits", Summary: "visit service class"}},
	}}
	p := newTestPipeline(t, Config{Vector: vector})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := p.Search(context.Background(), types.SearchRequest{Query: "visit service class lookup"})
			assert.NoError(t, err)
			if resp != nil {
				assert.NotEmpty(t, resp.FinalResults)
			}
		}()
	}
	wg.Wait()
}

func TestImpactGroups(t *testing.T) {
	assert.False(t, impactGroups(nil))
	assert.False(t, impactGroups([]types.SymbolHit{{FQN: "a"}}))
	assert.True(t, impactGroups([]types.SymbolHit{{
		FQN:      "ENTITY-entity-impact",
		Metadata: &types.Metadata{Impact: []types.ImpactMember{{FQN: "a.Visit"}}},
	}}))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
