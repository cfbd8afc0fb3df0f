package embedder

import (
	"context"
	"math"
	"unicode/utf16"
)

// LocalProvider produces deterministic character-hash vectors without any
// network access. Similar strings land close together, which is enough for
// offline use and as a query-time fallback.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates the offline embedder
func NewLocalProvider(cache *Cache) *LocalProvider {
	return &LocalProvider{
		model: DefaultLocalModel,
		cache: cache,
	}
}

// HashVector folds the UTF-16 code units of text into a LocalDimension
// vector, normalizes it and rounds components to six decimals
func HashVector(text string) []float32 {
	acc := make([]float64, LocalDimension)
	for _, code := range utf16.Encode([]rune(text)) {
		acc[int(code)%LocalDimension] += float64(code%7) + 1
	}
	var sum float64
	for _, v := range acc {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = 1
	}
	out := make([]float32, LocalDimension)
	for i, v := range acc {
		out[i] = float32(math.Round(v/norm*1e6) / 1e6)
	}
	return out
}

func (l *LocalProvider) GenerateEmbedding(_ context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	hash := ComputeHash(l.model, req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    HashVector(req.Text),
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}
	if l.cache != nil {
		l.cache.Set(hash, emb)
	}
	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}
