package searcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ideactx-mcp/internal/embedder"
	"github.com/dshills/ideactx-mcp/internal/storage"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

// mockEmbedder embeds with the local hash and can be made to fail
type mockEmbedder struct {
	provider string
	err      error
	calls    atomic.Int32
}

func (m *mockEmbedder) GenerateEmbedding(_ context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	vec := embedder.HashVector(req.Text)
	return &embedder.Embedding{Vector: vec, Dimension: len(vec), Provider: m.Provider(), Model: "mock-model"}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	resp := &embedder.BatchEmbeddingResponse{Provider: m.Provider(), Model: "mock-model"}
	for _, text := range req.Texts {
		emb, err := m.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		resp.Embeddings = append(resp.Embeddings, emb)
	}
	return resp, nil
}

func (m *mockEmbedder) Dimension() int { return embedder.LocalDimension }

func (m *mockEmbedder) Provider() string {
	if m.provider == "" {
		return "mock"
	}
	return m.provider
}

func (m *mockEmbedder) Model() string { return "mock-model" }

func (m *mockEmbedder) Close() error { return nil }

var testHits = []types.SymbolHit{
	{FQN: "org.petclinic.visits.web.VisitResource", Kind: types.KindClass, Module: "visits-service", Summary: "REST controller for visits"},
	{FQN: "org.petclinic.visits.model.VisitRepository", Kind: types.KindInterface, Module: "visits-service", Summary: "JPA repository for visits"},
	{FQN: "org.petclinic.customers.web.OwnerResource", Kind: types.KindClass, Module: "customers-service", Summary: "REST controller for owners"},
	{FQN: "org.petclinic.visits.web.VisitResource#create", Kind: types.KindMethod, Module: "visits-service", Summary: "POST create visit"},
	{FQN: "visits-service", Kind: types.KindModule, Module: "visits-service", Summary: "Module visits-service"},
}

// setupTestSearcher indexes testHits with the local hash into in-memory storage
func setupTestSearcher(t *testing.T, emb embedder.Embedder) (*Searcher, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	for i := range testHits {
		sym, err := storage.FromHit(&testHits[i], "")
		require.NoError(t, err)
		require.NoError(t, store.UpsertSymbol(ctx, sym))
		vec := embedder.HashVector(testHits[i].FQN + " " + testHits[i].Summary)
		blob, err := storage.EncodeVector(vec)
		require.NoError(t, err)
		require.NoError(t, store.UpsertEmbedding(ctx, &storage.Embedding{
			SymbolID:  sym.ID,
			Vector:    blob,
			Dimension: len(vec),
			Provider:  embedder.ProviderLocal,
			Model:     embedder.DefaultLocalModel,
		}))
	}
	return NewSearcher(store, emb, Options{}), store
}

func fqns(hits []types.SymbolHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.FQN
	}
	return out
}

func TestSearch_LevelFilter(t *testing.T) {
	s, _ := setupTestSearcher(t, &mockEmbedder{})
	ctx := context.Background()

	hits, ok := s.Search(ctx, types.VectorQuery{Query: "visit rest controller", Level: types.LevelClass, Limit: 10})
	require.True(t, ok)
	require.Len(t, hits, 3)
	for _, h := range hits {
		assert.Equal(t, types.LevelClass, h.IndexLevel)
		assert.Greater(t, h.Score, 0.0)
	}
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}

	hits, ok = s.Search(ctx, types.VectorQuery{Query: "create visit", Level: types.LevelMethod, Limit: 10})
	require.True(t, ok)
	assert.Equal(t, []string{"org.petclinic.visits.web.VisitResource#create"}, fqns(hits))

	hits, ok = s.Search(ctx, types.VectorQuery{Query: "visits module", Level: types.LevelModule, Limit: 10})
	require.True(t, ok)
	assert.Equal(t, []string{"visits-service"}, fqns(hits))
}

func TestSearch_ModuleFilter(t *testing.T) {
	s, _ := setupTestSearcher(t, &mockEmbedder{})

	hits, ok := s.Search(context.Background(), types.VectorQuery{
		Query:        "rest controller",
		Level:        types.LevelClass,
		Limit:        10,
		ModuleFilter: "customers-service",
		ModuleHint:   "visits-service",
	})
	require.True(t, ok)
	assert.Equal(t, []string{"org.petclinic.customers.web.OwnerResource"}, fqns(hits))
}

func TestSearch_Limit(t *testing.T) {
	s, _ := setupTestSearcher(t, &mockEmbedder{})
	ctx := context.Background()

	hits, ok := s.Search(ctx, types.VectorQuery{Query: "visit", Level: types.LevelClass, Limit: 1})
	require.True(t, ok)
	assert.Len(t, hits, 1)

	// Zero limit uses the default, which exceeds the three class rows
	hits, ok = s.Search(ctx, types.VectorQuery{Query: "visit", Level: types.LevelClass})
	require.True(t, ok)
	assert.Len(t, hits, 3)
}

func TestSearch_EmbedderFallback(t *testing.T) {
	remote := &mockEmbedder{provider: embedder.ProviderOllama, err: errors.New("connection refused")}
	s, _ := setupTestSearcher(t, remote)

	hits, ok := s.Search(context.Background(), types.VectorQuery{Query: "visit repository", Level: types.LevelClass, Limit: 5})
	require.True(t, ok)
	assert.NotEmpty(t, hits)
	assert.Equal(t, int32(1), remote.calls.Load())
}

func TestSearch_Unavailable(t *testing.T) {
	t.Run("nil searcher", func(t *testing.T) {
		var s *Searcher
		hits, ok := s.Search(context.Background(), types.VectorQuery{Query: "x"})
		assert.False(t, ok)
		assert.Nil(t, hits)
	})

	t.Run("empty query", func(t *testing.T) {
		s, _ := setupTestSearcher(t, &mockEmbedder{})
		_, ok := s.Search(context.Background(), types.VectorQuery{})
		assert.False(t, ok)
	})

	t.Run("local embedder failure has no fallback", func(t *testing.T) {
		s, _ := setupTestSearcher(t, &mockEmbedder{provider: embedder.ProviderLocal, err: errors.New("boom")})
		_, ok := s.Search(context.Background(), types.VectorQuery{Query: "visit", Level: types.LevelClass})
		assert.False(t, ok)
	})

	t.Run("closed storage", func(t *testing.T) {
		s, store := setupTestSearcher(t, &mockEmbedder{})
		require.NoError(t, store.Close())
		_, ok := s.Search(context.Background(), types.VectorQuery{Query: "visit", Level: types.LevelClass})
		assert.False(t, ok)
	})
}

func TestSearch_Cache(t *testing.T) {
	emb := &mockEmbedder{}
	s, _ := setupTestSearcher(t, emb)
	ctx := context.Background()
	q := types.VectorQuery{Query: "visit controller", Level: types.LevelClass, Limit: 3}

	first, ok := s.Search(ctx, q)
	require.True(t, ok)
	assert.Equal(t, 1, s.CacheLen())

	// Mutating a returned hit must not leak into the cache
	first[0].Score = -1

	second, ok := s.Search(ctx, q)
	require.True(t, ok)
	assert.Equal(t, int32(1), emb.calls.Load(), "served from cache")
	assert.NotEqual(t, -1.0, second[0].Score)
	assert.Equal(t, fqns(first), fqns(second))

	s.InvalidateCache()
	assert.Zero(t, s.CacheLen())
	_, ok = s.Search(ctx, q)
	require.True(t, ok)
	assert.Equal(t, int32(2), emb.calls.Load())
}

func TestSearch_CacheExpiry(t *testing.T) {
	emb := &mockEmbedder{}
	s, store := setupTestSearcher(t, emb)
	s = NewSearcher(store, emb, Options{CacheTTL: time.Nanosecond})
	ctx := context.Background()
	q := types.VectorQuery{Query: "visit", Level: types.LevelClass}

	_, ok := s.Search(ctx, q)
	require.True(t, ok)
	time.Sleep(time.Millisecond)
	_, ok = s.Search(ctx, q)
	require.True(t, ok)
	assert.Equal(t, int32(2), emb.calls.Load())
}

func TestComputeQueryHash(t *testing.T) {
	a := computeQueryHash(types.VectorQuery{Query: "visit", Level: types.LevelClass, Limit: 5})
	b := computeQueryHash(types.VectorQuery{Query: "visit", Level: types.LevelMethod, Limit: 5})
	c := computeQueryHash(types.VectorQuery{Query: "visit", Level: types.LevelClass, Limit: 5, ModuleHint: "x"})
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, c, "module hint does not affect vector results")
}
