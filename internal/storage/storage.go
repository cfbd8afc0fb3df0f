package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

// Storage defines the interface for persisting and querying the symbol vector index
type Storage interface {
	// Index run operations
	CreateRun(ctx context.Context, run *IndexRun) error
	FinishRun(ctx context.Context, run *IndexRun) error
	LatestRun(ctx context.Context) (*IndexRun, error)

	// Symbol operations
	UpsertSymbol(ctx context.Context, symbol *Symbol) error
	GetSymbol(ctx context.Context, symbolID int64) (*Symbol, error)
	GetSymbolByFQN(ctx context.Context, fqn string, level types.Level) (*Symbol, error)
	ListSymbolsByModule(ctx context.Context, module string) ([]*Symbol, error)
	DeleteSymbol(ctx context.Context, symbolID int64) error

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, symbolID int64) (*Embedding, error)

	// Search operations
	SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)

	// Status operations
	CountSymbols(ctx context.Context) (int, error)
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// IndexRun records one ingest of a symbol dump
type IndexRun struct {
	ID           int64
	SourcePath   string
	RepoName     string
	TotalSymbols int
	Failed       int
	IndexVersion string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Symbol is one indexed entry at a given level. Payload holds the full
// hit JSON as exported by the IDE bridge.
type Symbol struct {
	ID          int64
	FQN         string
	Level       types.Level
	Kind        types.SymbolKind
	Module      string
	ModulePath  string
	RepoName    string
	PackageName string
	Summary     string
	Payload     []byte
	TextHash    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Embedding represents a vector embedding for a symbol
type Embedding struct {
	ID        int64
	SymbolID  int64
	Vector    []byte // Serialized float32 array
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// SearchFilters narrows vector search. Module is an exact match.
type SearchFilters struct {
	Level        types.Level
	Module       string
	MinRelevance float64
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	SymbolID        int64
	SimilarityScore float64
}

// Status contains statistics about the index
type Status struct {
	LastRun         *IndexRun
	SymbolsCount    int
	EmbeddingsCount int
	LevelCounts     map[types.Level]int
	IndexSizeMB     float64
	Health          HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	VectorExtension     bool
}

// FromHit converts an exported hit to a storage Symbol at the given level.
// An empty level is derived from the hit's indexLevel or kind.
func FromHit(hit *types.SymbolHit, level types.Level) (*Symbol, error) {
	if level == "" {
		level = hit.IndexLevel
	}
	if !level.Valid() {
		level = types.LevelForKind(hit.Kind)
	}
	stored := hit.Clone()
	stored.Score = 0
	stored.Roles = nil
	stored.IndexLevel = level
	payload, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encoding symbol %s: %w", hit.FQN, err)
	}
	return &Symbol{
		FQN:         hit.FQN,
		Level:       level,
		Kind:        hit.Kind,
		Module:      hit.Module,
		ModulePath:  hit.ModulePath,
		RepoName:    hit.RepoName,
		PackageName: hit.PackageName,
		Summary:     hit.Summary,
		Payload:     payload,
	}, nil
}

// ToHit decodes the stored payload. Column values win over payload fields.
func (s *Symbol) ToHit() (types.SymbolHit, error) {
	var hit types.SymbolHit
	if len(s.Payload) > 0 {
		if err := json.Unmarshal(s.Payload, &hit); err != nil {
			return types.SymbolHit{}, fmt.Errorf("decoding symbol %d: %w", s.ID, err)
		}
	}
	hit.FQN = s.FQN
	hit.Kind = s.Kind
	hit.Module = s.Module
	hit.IndexLevel = s.Level
	hit.Summary = s.Summary
	if s.ModulePath != "" {
		hit.ModulePath = s.ModulePath
	}
	if s.RepoName != "" {
		hit.RepoName = s.RepoName
	}
	if s.PackageName != "" {
		hit.PackageName = s.PackageName
	}
	return hit, nil
}
