package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

type vectorFixture struct {
	fqn    string
	level  types.Level
	module string
	vector []float32
}

var vectorFixtures = []vectorFixture{
	{"org.petclinic.visits.model.Visit", types.LevelClass, "visits-service", []float32{1, 0, 0}},
	{"org.petclinic.visits.model.VisitRepository", types.LevelClass, "visits-service", []float32{0.9, 0.1, 0}},
	{"org.petclinic.customers.model.Owner", types.LevelClass, "customers-service", []float32{0, 1, 0}},
	{"org.petclinic.visits.web.VisitResource#create", types.LevelMethod, "visits-service", []float32{1, 0, 0}},
	{"org.petclinic.visits.legacy.OldVisit", types.LevelClass, "visits-service", []float32{1, 0}},
}

// seedVectors stores the fixtures and returns their ids by fqn
func seedVectors(tb testing.TB, storage *SQLiteStorage) map[string]int64 {
	tb.Helper()
	ctx := context.Background()
	ids := make(map[string]int64, len(vectorFixtures))
	for _, f := range vectorFixtures {
		sym := &Symbol{FQN: f.fqn, Level: f.level, Kind: types.KindClass, Module: f.module}
		require.NoError(tb, storage.UpsertSymbol(ctx, sym))
		blob, err := EncodeVector(f.vector)
		require.NoError(tb, err)
		require.NoError(tb, storage.UpsertEmbedding(ctx, &Embedding{
			SymbolID:  sym.ID,
			Vector:    blob,
			Dimension: len(f.vector),
			Provider:  "local",
			Model:     "test",
		}))
		ids[f.fqn] = sym.ID
	}
	return ids
}

func TestSearchVectorFallback(t *testing.T) {
	storage := setupTestDB(t)
	ids := seedVectors(t, storage)
	ctx := context.Background()
	query := []float32{1, 0, 0}

	tests := []struct {
		name    string
		filters *SearchFilters
		limit   int
		want    []string
	}{
		{
			name:  "no filters skips other dimensions",
			limit: 10,
			want: []string{
				"org.petclinic.visits.model.Visit",
				"org.petclinic.visits.web.VisitResource#create",
				"org.petclinic.visits.model.VisitRepository",
				"org.petclinic.customers.model.Owner",
			},
		},
		{
			name:    "level and module",
			filters: &SearchFilters{Level: types.LevelClass, Module: "visits-service"},
			limit:   10,
			want: []string{
				"org.petclinic.visits.model.Visit",
				"org.petclinic.visits.model.VisitRepository",
			},
		},
		{
			name:    "method level",
			filters: &SearchFilters{Level: types.LevelMethod},
			limit:   10,
			want:    []string{"org.petclinic.visits.web.VisitResource#create"},
		},
		{
			name:    "min relevance",
			filters: &SearchFilters{MinRelevance: 0.5},
			limit:   10,
			want: []string{
				"org.petclinic.visits.model.Visit",
				"org.petclinic.visits.web.VisitResource#create",
				"org.petclinic.visits.model.VisitRepository",
			},
		},
		{
			name:  "limit",
			limit: 1,
			want:  []string{"org.petclinic.visits.model.Visit"},
		},
		{
			name:    "unknown module",
			filters: &SearchFilters{Module: "vets-service"},
			limit:   10,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := searchVectorFallback(ctx, storage.db, query, tt.limit, tt.filters)
			require.NoError(t, err)
			got := make([]int64, len(results))
			for i, r := range results {
				got[i] = r.SymbolID
			}
			want := make([]int64, len(tt.want))
			for i, fqn := range tt.want {
				want[i] = ids[fqn]
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestSearchVectorScores(t *testing.T) {
	storage := setupTestDB(t)
	seedVectors(t, storage)

	results, err := storage.SearchVector(context.Background(), []float32{1, 0, 0}, 4, nil)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.InDelta(t, 1.0, results[0].SimilarityScore, 1e-5)
	assert.InDelta(t, 0.9/0.9055385, results[2].SimilarityScore, 1e-4)
	assert.InDelta(t, 0.0, results[3].SimilarityScore, 1e-5)
}

func TestSearchVectorEdgeCases(t *testing.T) {
	storage := setupTestDB(t)
	seedVectors(t, storage)
	ctx := context.Background()

	results, err := storage.SearchVector(ctx, []float32{1, 0, 0}, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = storage.SearchVector(ctx, nil, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	// No stored vector has dimension 5
	results, err = storage.SearchVector(ctx, []float32{1, 0, 0, 0, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// TestVectorSearchOptimization checks the sqlite-vec path agrees with the Go fallback
func TestVectorSearchOptimization(t *testing.T) {
	if !VectorExtensionAvailable {
		t.Skip("Skipping test: sqlite-vec extension not available")
	}
	storage := setupTestDB(t)
	seedVectors(t, storage)
	ctx := context.Background()

	for _, filters := range []*SearchFilters{
		nil,
		{Level: types.LevelClass},
		{Module: "visits-service", MinRelevance: 0.5},
	} {
		t.Run(fmt.Sprintf("%+v", filters), func(t *testing.T) {
			fast, err := searchVectorOptimized(ctx, storage.db, []float32{1, 0, 0}, 10, filters)
			require.NoError(t, err)
			slow, err := searchVectorFallback(ctx, storage.db, []float32{1, 0, 0}, 10, filters)
			require.NoError(t, err)
			require.Len(t, fast, len(slow))
			for i := range slow {
				assert.Equal(t, slow[i].SymbolID, fast[i].SymbolID)
				assert.InDelta(t, slow[i].SimilarityScore, fast[i].SimilarityScore, 1e-4)
			}
		})
	}
}

func TestSerializeVector(t *testing.T) {
	v := []float32{0.5, -1.25, 3}
	blob, err := EncodeVector(v)
	require.NoError(t, err)
	assert.Len(t, blob, 12)
	assert.Equal(t, serializeVector(v), blob)
	assert.Equal(t, v, DeserializeVector(blob))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 0}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func BenchmarkVectorSearchFallback(b *testing.B) {
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(b, err)
	defer func() { _ = storage.Close() }()

	ctx := context.Background()
	for i := 0; i < 500; i++ {
		sym := &Symbol{FQN: fmt.Sprintf("bench.Class%d", i), Level: types.LevelClass, Kind: types.KindClass, Module: "bench"}
		require.NoError(b, storage.UpsertSymbol(ctx, sym))
		vec := make([]float32, 384)
		vec[i%384] = 1
		require.NoError(b, storage.UpsertEmbedding(ctx, &Embedding{SymbolID: sym.ID, Vector: serializeVector(vec), Dimension: 384, Provider: "local", Model: "bench"}))
	}
	query := make([]float32, 384)
	for i := range query {
		query[i] = float32(i) * 0.01
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := searchVectorFallback(ctx, storage.db, query, 10, nil); err != nil {
			b.Fatal(err)
		}
	}
}
