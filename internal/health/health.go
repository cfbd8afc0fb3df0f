package health

import (
	"context"
	"time"

	"github.com/dshills/ideactx-mcp/internal/bridge"
	"github.com/dshills/ideactx-mcp/internal/embedder"
	"github.com/dshills/ideactx-mcp/internal/fixture"
	"github.com/dshills/ideactx-mcp/internal/rerank"
	"github.com/dshills/ideactx-mcp/internal/storage"
)

// Overall report states
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// BridgeProber reports IDE bridge reachability
type BridgeProber interface {
	Health(ctx context.Context) bridge.Health
}

// StatusReader reports vector index statistics
type StatusReader interface {
	GetStatus(ctx context.Context) (*storage.Status, error)
}

// Checker assembles a health report from whichever backends are configured.
// Nil fields are reported as not configured.
type Checker struct {
	Bridge         BridgeProber
	Store          StatusReader
	Embedder       embedder.Embedder
	Reranker       *rerank.Reranker
	Fixtures       *fixture.Registry
	VectorDisabled bool
}

// VectorHealth describes the local vector index
type VectorHealth struct {
	Enabled         bool           `json:"enabled"`
	Reachable       bool           `json:"reachable"`
	SymbolCount     int            `json:"symbolCount"`
	EmbeddingsCount int            `json:"embeddingsCount"`
	LevelCounts     map[string]int `json:"levelCounts,omitempty"`
	IndexSizeMB     float64        `json:"indexSizeMb"`
	VectorExtension bool           `json:"vectorExtension"`
	LastIndexedAt   *time.Time     `json:"lastIndexedAt,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// EmbedderHealth names the query embedding provider
type EmbedderHealth struct {
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	Dimension int    `json:"dimension,omitempty"`
}

// FixtureHealth describes fixture replay mode
type FixtureHealth struct {
	Enabled   bool   `json:"enabled"`
	Path      string `json:"path,omitempty"`
	Scenarios int    `json:"scenarios"`
}

// Report is the combined health view
type Report struct {
	OK            bool           `json:"ok"`
	Status        string         `json:"status"`
	Bridge        *bridge.Health `json:"bridge"`
	Vector        VectorHealth   `json:"vector"`
	Embedder      EmbedderHealth `json:"embedder"`
	RerankEnabled bool           `json:"rerankEnabled"`
	Fixture       FixtureHealth  `json:"fixture"`
	CheckedAt     time.Time      `json:"checkedAt"`
}

// Check probes every configured backend. It never fails; a backend that
// cannot be reached is reported and marks the report degraded.
func (c *Checker) Check(ctx context.Context) Report {
	r := Report{
		RerankEnabled: c.Reranker.Enabled(),
		CheckedAt:     time.Now().UTC(),
	}

	if c.Bridge != nil {
		h := c.Bridge.Health(ctx)
		r.Bridge = &h
	}

	r.Vector.Enabled = !c.VectorDisabled && c.Store != nil
	if r.Vector.Enabled {
		r.Vector = vectorHealth(ctx, c.Store)
	}

	if c.Embedder != nil {
		r.Embedder = EmbedderHealth{
			Provider:  c.Embedder.Provider(),
			Model:     c.Embedder.Model(),
			Dimension: c.Embedder.Dimension(),
		}
	}

	if c.Fixtures != nil {
		r.Fixture = FixtureHealth{
			Enabled:   true,
			Path:      c.Fixtures.Path(),
			Scenarios: c.Fixtures.Len(),
		}
	}

	bridgeOK := r.Bridge != nil && r.Bridge.Reachable
	vectorOK := r.Vector.Reachable && r.Vector.SymbolCount > 0
	r.OK = bridgeOK && (vectorOK || !r.Vector.Enabled)
	r.Status = StatusDegraded
	if r.OK {
		r.Status = StatusOK
	}
	return r
}

func vectorHealth(ctx context.Context, store StatusReader) VectorHealth {
	v := VectorHealth{Enabled: true}
	status, err := store.GetStatus(ctx)
	if err != nil {
		v.Error = err.Error()
		return v
	}
	v.Reachable = status.Health.DatabaseAccessible
	v.SymbolCount = status.SymbolsCount
	v.EmbeddingsCount = status.EmbeddingsCount
	v.IndexSizeMB = status.IndexSizeMB
	v.VectorExtension = status.Health.VectorExtension
	if len(status.LevelCounts) > 0 {
		v.LevelCounts = make(map[string]int, len(status.LevelCounts))
		for lvl, n := range status.LevelCounts {
			v.LevelCounts[string(lvl)] = n
		}
	}
	if status.LastRun != nil && !status.LastRun.FinishedAt.IsZero() {
		finished := status.LastRun.FinishedAt
		v.LastIndexedAt = &finished
	}
	return v
}
