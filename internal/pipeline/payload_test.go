package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

func moduleHit(name string, extra map[string]any, beans ...string) types.SymbolHit {
	return types.SymbolHit{
		FQN:        "spring-petclinic-microservices:" + name,
		Kind:       types.KindModule,
		Module:     name,
		IndexLevel: types.LevelModule,
		Summary:    "Module " + name,
		Metadata:   &types.Metadata{Extra: extra, SpringBeans: beans},
	}
}

func TestNewPayload(t *testing.T) {
	delivered := []types.SymbolHit{
		{FQN: "org.springframework.samples.petclinic.visits.web.VisitResource", Kind: types.KindClass, IndexLevel: types.LevelClass, Summary: "REST controller for visits"},
		{FQN: "org.springframework.samples.petclinic.visits.web.VisitResource#create", Kind: types.KindMethod, IndexLevel: types.LevelMethod, Summary: "Creates a visit"},
	}
	modules := []types.SymbolHit{
		moduleHit("m1", map[string]any{"classCount": 12, "packageCount": float64(3)}, "visitResource", "visitRepository"),
		moduleHit("m2", nil),
		moduleHit("m3", map[string]any{"classes": float64(4)}),
		moduleHit("m4", nil),
		moduleHit("m5", nil),
		moduleHit("m6", nil),
	}
	resp := &types.SearchResponse{
		RequestID:     "req-1",
		FinalResults:  delivered,
		ModuleResults: modules,
		Stages: []types.Stage{
			{Name: types.StageModule, Hits: modules},
			{Name: types.StageClass, Hits: []types.SymbolHit{delivered[0], {FQN: "x.Y", Kind: types.KindInterface}}},
		},
		Strategy: types.Strategy{
			Tier:            types.TierBalanced,
			Reason:          "default",
			PreferredLevels: []types.Level{types.LevelMethod, types.LevelClass, types.LevelModule},
			ModuleLimit:     4,
			ClassLimit:      6,
			ModuleHint:      "spring-petclinic-visits-service",
			Profile:         &types.Profile{ID: types.ProfileGeneric},
		},
		ContextBudget: types.ContextBudgetReport{
			Delivered:    delivered,
			UsedTokens:   120,
			TokenLimit:   9000,
			OmittedCount: 2,
			Truncated:    true,
		},
		RerankUsed: true,
	}

	t.Run("defaults come from the strategy", func(t *testing.T) {
		p := NewPayload(types.SearchArgs{Query: "visit endpoints"}, resp)

		assert.Equal(t, "req-1", p.RequestID)
		assert.Equal(t, types.DefaultLimit, p.RequestedLimit)
		assert.Nil(t, p.ModuleFilter)
		require.NotNil(t, p.ModuleHint)
		assert.Equal(t, "spring-petclinic-visits-service", *p.ModuleHint)
		assert.Equal(t, resp.Strategy.PreferredLevels, p.PreferredLevels)
		assert.True(t, p.RerankUsed)
		assert.Equal(t, 4, p.TotalCandidates)
		assert.Equal(t, 2, p.DeliveredCount)
		assert.Equal(t, 2, p.OmittedCount)
		assert.Equal(t, BudgetSummary{MaxTokens: 9000, UsedTokens: 120, OmittedCount: 2, Truncated: true}, p.ContextBudget)
		assert.Equal(t, "generic", p.Debug.Strategy.ProfileID)
		assert.Equal(t, types.TierBalanced, p.Debug.Strategy.Profile)
		assert.Nil(t, p.Debug.Strategy.ModuleFilter)
	})

	t.Run("explicit request values win", func(t *testing.T) {
		limit := 3
		filter := "spring-petclinic-customers-service"
		p := NewPayload(types.SearchArgs{
			Query:           "owners",
			Limit:           &limit,
			ModuleFilter:    &filter,
			PreferredLevels: []string{"class"},
		}, resp)

		assert.Equal(t, 3, p.RequestedLimit)
		assert.Equal(t, &filter, p.ModuleFilter)
		assert.Equal(t, []types.Level{types.LevelClass}, p.PreferredLevels)
	})

	t.Run("stage summaries", func(t *testing.T) {
		p := NewPayload(types.SearchArgs{Query: "q"}, resp)
		require.Len(t, p.Stages, 2)
		assert.Equal(t, StageSummary{
			Name:     types.StageModule,
			HitCount: 6,
			Kinds:    []types.SymbolKind{types.KindModule},
			Levels:   []string{"module"},
		}, p.Stages[0])
		assert.Equal(t, []types.SymbolKind{types.KindClass, types.KindInterface}, p.Stages[1].Kinds)
		assert.Equal(t, []string{"class", "unknown"}, p.Stages[1].Levels)
	})

	t.Run("module candidates", func(t *testing.T) {
		p := NewPayload(types.SearchArgs{Query: "q"}, resp)
		require.Len(t, p.ModuleCandidates, maxModuleCandidates)

		first := p.ModuleCandidates[0]
		require.NotNil(t, first.Stats)
		assert.Equal(t, 12, *first.Stats.ClassCount)
		assert.Equal(t, 3, *first.Stats.PackageCount)
		assert.Equal(t, 2, *first.Stats.SpringBeans)
		assert.Nil(t, p.ModuleCandidates[1].Stats)
		assert.Equal(t, 4, *p.ModuleCandidates[2].Stats.ClassCount)
	})

	t.Run("json shape", func(t *testing.T) {
		data, err := json.Marshal(NewPayload(types.SearchArgs{Query: "q"}, resp))
		require.NoError(t, err)

		var body map[string]any
		require.NoError(t, json.Unmarshal(data, &body))
		for _, key := range []string{
			"query", "requestedLimit", "moduleFilter", "moduleHint", "preferredLevels",
			"fallbackUsed", "rerankUsed", "totalCandidates", "deliveredCount", "omittedCount",
			"stages", "moduleCandidates", "deliveredResults", "contextBudget", "debug", "requestId",
		} {
			assert.Contains(t, body, key)
		}
		assert.Nil(t, body["moduleFilter"], "absent filter is null")

		results := body["deliveredResults"].([]any)
		first := results[0].(map[string]any)
		assert.Equal(t, "org.springframework.samples.petclinic.visits.web.VisitResource", first["fqn"])
		assert.Equal(t, float64(20), first["estimatedTokens"])
	})
}

func TestNewPayload_EmptyResponse(t *testing.T) {
	resp := &types.SearchResponse{Strategy: types.Strategy{Tier: types.TierTargeted}}
	p := NewPayload(types.SearchArgs{Query: "q"}, resp)

	assert.NotNil(t, p.Stages)
	assert.NotNil(t, p.ModuleCandidates)
	assert.NotNil(t, p.DeliveredResults)
	assert.Empty(t, p.Debug.Strategy.ProfileID)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"deliveredResults":[]`)
}
