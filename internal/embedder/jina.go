package embedder

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// JinaProvider implements Embedder using the Jina AI embeddings API
type JinaProvider struct {
	remote
	apiKey     string
	endpoint   string
	task       string
	httpClient *http.Client
}

// NewJinaProvider creates a Jina embedder. An empty endpoint uses the public API.
func NewJinaProvider(apiKey, endpoint, model, task string, cache *Cache) (*JinaProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvJinaAPIKey)
	}
	if endpoint == "" {
		endpoint = DefaultJinaEndpoint
	}
	if model == "" {
		model = DefaultJinaModel
	}
	j := &JinaProvider{
		apiKey:   apiKey,
		endpoint: endpoint,
		task:     task,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	j.remote = remote{provider: ProviderJina, model: model, cache: cache, call: j.callAPI}
	return j, nil
}

func (j *JinaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return j.embedOne(ctx, req)
}

func (j *JinaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	return j.embedBatch(ctx, req)
}

type jinaRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
	Task  string   `json:"task,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

func (j *JinaProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	var apiResp struct {
		Data  []embeddingData `json:"data"`
		Model string          `json:"model"`
	}
	if err := postJSON(ctx, j.httpClient, j.endpoint, j.apiKey, jinaRequest{Input: texts, Model: model, Task: j.task}, &apiResp); err != nil {
		return nil, err
	}

	sort.SliceStable(apiResp.Data, func(a, b int) bool {
		return apiResp.Data[a].Index < apiResp.Data[b].Index
	})
	if apiResp.Model != "" {
		model = apiResp.Model
	}
	embeddings := make([]*Embedding, len(apiResp.Data))
	for i, data := range apiResp.Data {
		embeddings[i] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  ProviderJina,
			Model:     model,
		}
	}
	return embeddings, nil
}

func (j *JinaProvider) Dimension() int {
	return JinaDimension
}

func (j *JinaProvider) Provider() string {
	return ProviderJina
}

func (j *JinaProvider) Model() string {
	return j.model
}

func (j *JinaProvider) Close() error {
	j.httpClient.CloseIdleConnections()
	return nil
}
