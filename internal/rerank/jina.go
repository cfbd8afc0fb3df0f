package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// ErrRerankFailed is returned when the rerank endpoint cannot be used
var ErrRerankFailed = errors.New("rerank request failed")

// JinaScorer scores candidates with a Jina-compatible /rerank endpoint
type JinaScorer struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewJinaScorer creates a scorer from cfg. Host and model fall back to the Jina defaults.
func NewJinaScorer(cfg Config) *JinaScorer {
	endpoint := cfg.Host
	if endpoint == "" {
		endpoint = DefaultHost
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	return &JinaScorer{
		endpoint:   endpoint,
		model:      model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

type jinaRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_k"`
}

type jinaResponse struct {
	Results []struct {
		Index          int      `json:"index"`
		RelevanceScore *float64 `json:"relevance_score"`
	} `json:"results"`
}

// Score posts the candidate texts and maps result indexes back to candidate ids
func (j *JinaScorer) Score(ctx context.Context, query string, candidates []Candidate) ([]Result, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if err := j.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit: %v", ErrRerankFailed, err)
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Text
	}
	body, err := json.Marshal(jinaRequest{Model: j.model, Query: query, Documents: docs, TopK: len(candidates)})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if j.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+j.apiKey)
	}

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRerankFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRerankFailed, resp.StatusCode, string(bodyBytes))
	}

	var apiResp jinaResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRerankFailed, err)
	}

	results := make([]Result, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		score := 0.0
		if r.RelevanceScore != nil {
			score = *r.RelevanceScore
		}
		results = append(results, Result{ID: candidates[r.Index].ID, Score: score})
	}
	return results, nil
}

// Close releases idle connections
func (j *JinaScorer) Close() error {
	j.httpClient.CloseIdleConnections()
	return nil
}
