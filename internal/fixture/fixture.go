package fixture

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

// Environment variables
const (
	EnvCIFixture   = "CI_FIXTURE"
	EnvEvalFixture = "MCP_EVAL_FIXTURE"
	EnvFixtureFile = "IDEACTX_FIXTURE_FILE"
)

// defaultTokensPerHit is charged per recorded hit when a fixture has no usedTokens
const defaultTokensPerHit = 40

// Candidates are searched in order when no fixture file is configured
var Candidates = []string{
	"fixtures/petclinic-fixtures.json",
	"../fixtures/petclinic-fixtures.json",
	"../../fixtures/petclinic-fixtures.json",
}

// ErrNotFound is returned for unknown scenario ids
var ErrNotFound = errors.New("fixture not found")

// Budget is the recorded, possibly partial, budget of a fixture
type Budget struct {
	UsedTokens   *int  `json:"usedTokens,omitempty"`
	OmittedCount *int  `json:"omittedCount,omitempty"`
	Truncated    *bool `json:"truncated,omitempty"`
}

// Entry is one recorded pipeline outcome
type Entry struct {
	FinalResults  []types.SymbolHit `json:"finalResults"`
	ContextBudget *Budget           `json:"contextBudget,omitempty"`
	Stages        []types.Stage     `json:"stages,omitempty"`
	FallbackUsed  bool              `json:"fallbackUsed,omitempty"`
}

// Registry maps scenario ids to recorded outcomes. It is read-only after
// load; a nil *Registry holds no fixtures.
type Registry struct {
	path    string
	entries map[string]Entry
}

// EnabledFromEnv reports whether fixture replay was requested
func EnabledFromEnv() bool {
	return os.Getenv(EnvCIFixture) == "1" || os.Getenv(EnvEvalFixture) == "1"
}

// Open loads the fixture registry when enabled. An empty path searches
// Candidates. A missing file is logged and yields a nil registry.
func Open(enabled bool, path string) (*Registry, error) {
	if !enabled {
		return nil, nil
	}
	if path == "" {
		path = findCandidate()
	}
	if path == "" {
		slog.Warn("fixture mode requested but no fixture file was found")
		return nil, nil
	}
	reg, err := Load(path)
	if err != nil {
		return nil, err
	}
	slog.Info("fixture replay enabled", slog.String("path", path), slog.Int("scenarios", len(reg.entries)))
	return reg, nil
}

func findCandidate() string {
	for _, c := range Candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

// Load reads a fixture file
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close()

	reg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("fixtures %s: %w", path, err)
	}
	reg.path = path
	return reg, nil
}

// Parse decodes a scenarioId -> Entry JSON object
func Parse(r io.Reader) (*Registry, error) {
	entries := make(map[string]Entry)
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &Registry{entries: entries}, nil
}

// Path returns the file the registry was loaded from
func (r *Registry) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// Len returns the number of recorded scenarios
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Has reports whether a fixture exists for id
func (r *Registry) Has(id string) bool {
	if r == nil || id == "" {
		return false
	}
	_, ok := r.entries[id]
	return ok
}

// Outcome returns the recorded response for id with its budget renormalized
// to tokenLimit
func (r *Registry) Outcome(id string, strategy *types.Strategy, tokenLimit int) (*types.SearchResponse, error) {
	if !r.Has(id) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	entry := r.entries[id]

	delivered := make([]types.SymbolHit, len(entry.FinalResults))
	for i := range entry.FinalResults {
		delivered[i] = entry.FinalResults[i].Clone()
	}
	stages := make([]types.Stage, len(entry.Stages))
	copy(stages, entry.Stages)

	resp := &types.SearchResponse{
		FinalResults:  delivered,
		FallbackUsed:  entry.FallbackUsed,
		Stages:        stages,
		ContextBudget: normalizeBudget(entry.ContextBudget, delivered, tokenLimit),
	}
	if strategy != nil {
		resp.Strategy = *strategy
	}
	return resp, nil
}

func normalizeBudget(b *Budget, delivered []types.SymbolHit, tokenLimit int) types.ContextBudgetReport {
	report := types.ContextBudgetReport{
		Delivered:  delivered,
		UsedTokens: len(delivered) * defaultTokensPerHit,
		TokenLimit: tokenLimit,
	}
	if b != nil {
		if b.UsedTokens != nil {
			report.UsedTokens = *b.UsedTokens
		}
		if b.OmittedCount != nil {
			report.OmittedCount = *b.OmittedCount
		}
		if b.Truncated != nil {
			report.Truncated = *b.Truncated
		}
	}
	report.UsedTokens = min(report.UsedTokens, tokenLimit)
	return report
}
