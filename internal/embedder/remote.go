package embedder

import (
	"context"
	"fmt"
)

// callFunc performs one provider round trip for texts, in order
type callFunc func(ctx context.Context, texts []string, model string) ([]*Embedding, error)

// remote holds the cache, retry and batching logic shared by HTTP providers
type remote struct {
	provider string
	model    string
	cache    *Cache
	call     callFunc
}

func (r *remote) embedOne(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	resp, err := r.embedBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}, Model: req.Model})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}
	return resp.Embeddings[0], nil
}

// embedBatch serves cached texts locally and sends only misses upstream
func (r *remote) embedBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = r.model
	}

	out := make([]*Embedding, len(req.Texts))
	var missing []string
	var missingIdx []int
	for i, text := range req.Texts {
		if r.cache != nil {
			if emb, ok := r.cache.Get(ComputeHash(model, text)); ok {
				out[i] = emb
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		embeddings, err := retryWithBackoff(ctx, DefaultRetryConfig(), func() ([]*Embedding, error) {
			return r.call(ctx, missing, model)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrProviderFailed, r.provider, err)
		}
		if len(embeddings) != len(missing) {
			return nil, fmt.Errorf("%w: %s returned %d embeddings for %d texts",
				ErrProviderFailed, r.provider, len(embeddings), len(missing))
		}
		for j, emb := range embeddings {
			emb.Hash = ComputeHash(model, missing[j])
			if r.cache != nil {
				r.cache.Set(emb.Hash, emb)
			}
			out[missingIdx[j]] = emb
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: out,
		Provider:   r.provider,
		Model:      model,
	}, nil
}
