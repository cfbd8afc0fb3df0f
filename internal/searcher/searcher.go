package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/ideactx-mcp/internal/embedder"
	"github.com/dshills/ideactx-mcp/internal/storage"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

// Searcher defaults
const (
	DefaultCacheSize = 1000
	DefaultCacheTTL  = 10 * time.Minute
	DefaultTimeout   = 8 * time.Second
)

// cacheEntry represents cached stage hits with expiration time
type cacheEntry struct {
	hits      []types.SymbolHit
	expiresAt time.Time
}

// Options tunes a Searcher. Zero values use the defaults.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
	Timeout   time.Duration
}

// Searcher answers vector stage queries from the local symbol index.
// When the configured embedder fails, the query is embedded with the
// deterministic local hash so indexes built offline stay searchable.
type Searcher struct {
	storage  storage.Storage
	embedder embedder.Embedder
	fallback embedder.Embedder
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
	cacheTTL time.Duration
	timeout  time.Duration
}

// NewSearcher creates a new Searcher instance
func NewSearcher(store storage.Storage, emb embedder.Embedder, opts Options) *Searcher {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	cache, err := lru.New[[32]byte, *cacheEntry](opts.CacheSize)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	var fallback embedder.Embedder
	if emb == nil || emb.Provider() != embedder.ProviderLocal {
		fallback = embedder.NewLocalProvider(nil)
	}

	return &Searcher{
		storage:  store,
		embedder: emb,
		fallback: fallback,
		cache:    cache,
		cacheTTL: opts.CacheTTL,
		timeout:  opts.Timeout,
	}
}

// Search runs one vector stage. The boolean is false when the index could not
// be queried; callers treat that the same as no hits.
func (s *Searcher) Search(ctx context.Context, q types.VectorQuery) ([]types.SymbolHit, bool) {
	if s == nil || s.storage == nil {
		return nil, false
	}
	if q.Query == "" {
		return nil, false
	}
	if q.Limit <= 0 {
		q.Limit = types.DefaultLimit
	}
	q.Limit = min(q.Limit, types.MaxLimit)

	hash := computeQueryHash(q)
	if hits, ok := s.checkCache(hash); ok {
		return hits, true
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vector, err := s.embed(ctx, q.Query)
	if err != nil {
		slog.Warn("vector search unavailable", slog.String("level", string(q.Level)), slog.Any("error", err))
		return nil, false
	}

	filters := &storage.SearchFilters{Level: q.Level, Module: q.ModuleFilter}
	results, err := s.storage.SearchVector(ctx, vector, q.Limit, filters)
	if err != nil {
		slog.Warn("vector search failed", slog.String("level", string(q.Level)), slog.Any("error", err))
		return nil, false
	}

	hits := s.fetchHits(ctx, results)
	s.storeInCache(hash, hits)
	return cloneHits(hits), true
}

// embed uses the configured embedder and falls back to the local hash
func (s *Searcher) embed(ctx context.Context, text string) ([]float32, error) {
	req := embedder.EmbeddingRequest{Text: text}
	if s.embedder != nil {
		emb, err := s.embedder.GenerateEmbedding(ctx, req)
		if err == nil {
			return emb.Vector, nil
		}
		if s.fallback == nil {
			return nil, fmt.Errorf("failed to generate query embedding: %w", err)
		}
		slog.Warn("query embedding failed, using local hash",
			slog.String("provider", s.embedder.Provider()),
			slog.Any("error", err))
	}
	emb, err := s.fallback.GenerateEmbedding(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate fallback embedding: %w", err)
	}
	return emb.Vector, nil
}

// fetchHits loads the stored symbols in result order. Rows that cannot be
// loaded or decoded are skipped.
func (s *Searcher) fetchHits(ctx context.Context, results []storage.VectorResult) []types.SymbolHit {
	hits := make([]types.SymbolHit, 0, len(results))
	for _, r := range results {
		sym, err := s.storage.GetSymbol(ctx, r.SymbolID)
		if err != nil {
			continue
		}
		hit, err := sym.ToHit()
		if err != nil {
			slog.Debug("skipping undecodable symbol", slog.Int64("id", r.SymbolID), slog.Any("error", err))
			continue
		}
		if hit.Kind == "" {
			hit.Kind = types.KindClass
		}
		hit.Score = r.SimilarityScore
		hits = append(hits, hit)
	}
	return hits
}

// checkCache looks up cached stage hits
func (s *Searcher) checkCache(hash [32]byte) ([]types.SymbolHit, bool) {
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil, false
	}
	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil, false
	}
	hits := cloneHits(entry.hits)
	s.cacheMu.RUnlock()
	return hits, true
}

// storeInCache saves a deep copy of the stage hits
func (s *Searcher) storeInCache(hash [32]byte, hits []types.SymbolHit) {
	entry := &cacheEntry{
		hits:      cloneHits(hits),
		expiresAt: time.Now().Add(s.cacheTTL),
	}
	s.cacheMu.Lock()
	s.cache.Add(hash, entry)
	s.cacheMu.Unlock()
}

// InvalidateCache drops all cached stage results, typically after an ingest
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// CacheLen reports the number of cached stage queries
func (s *Searcher) CacheLen() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.Len()
}

func cloneHits(src []types.SymbolHit) []types.SymbolHit {
	out := make([]types.SymbolHit, len(src))
	for i := range src {
		out[i] = src[i].Clone()
	}
	return out
}

// computeQueryHash computes a unique hash for a stage query
func computeQueryHash(q types.VectorQuery) [32]byte {
	key := fmt.Sprintf("%s|%s|%d|%s", q.Query, q.Level, q.Limit, q.ModuleFilter)
	return sha256.Sum256([]byte(key))
}
