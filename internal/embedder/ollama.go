package embedder

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"
)

// OllamaProvider implements Embedder using a local Ollama server.
// Ollama embeds one prompt per request, so batches are sent sequentially.
type OllamaProvider struct {
	remote
	endpoint   string
	httpClient *http.Client
	dimension  atomic.Int64
}

// NewOllamaProvider creates an Ollama embedder for host (for example http://127.0.0.1:11434)
func NewOllamaProvider(host, model string, cache *Cache) (*OllamaProvider, error) {
	if host == "" {
		host = DefaultOllamaHost
	}
	endpoint, err := url.JoinPath(host, "/api/embeddings")
	if err != nil {
		return nil, fmt.Errorf("%w: ollama host %q: %v", ErrInvalidInput, host, err)
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	o := &OllamaProvider{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	o.remote = remote{provider: ProviderOllama, model: model, cache: cache, call: o.callAPI}
	return o, nil
}

func (o *OllamaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return o.embedOne(ctx, req)
}

func (o *OllamaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	return o.embedBatch(ctx, req)
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

func (o *OllamaProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	embeddings := make([]*Embedding, 0, len(texts))
	for _, text := range texts {
		var apiResp struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := postJSON(ctx, o.httpClient, o.endpoint, "", ollamaRequest{Model: model, Prompt: text}, &apiResp); err != nil {
			return nil, err
		}
		if len(apiResp.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding from model %s", model)
		}
		o.dimension.Store(int64(len(apiResp.Embedding)))
		embeddings = append(embeddings, &Embedding{
			Vector:    apiResp.Embedding,
			Dimension: len(apiResp.Embedding),
			Provider:  ProviderOllama,
			Model:     model,
		})
	}
	return embeddings, nil
}

// Dimension returns the size of the last vector the model produced, or 0 before the first call
func (o *OllamaProvider) Dimension() int {
	return int(o.dimension.Load())
}

func (o *OllamaProvider) Provider() string {
	return ProviderOllama
}

func (o *OllamaProvider) Model() string {
	return o.model
}

func (o *OllamaProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
