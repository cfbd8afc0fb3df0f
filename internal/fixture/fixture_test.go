package fixture

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

const sampleFixtures = `{
  "recorded": {
    "finalResults": [
      {"fqn": "a.A", "kind": "CLASS", "module": "m", "summary": "A", "score": 0.9},
      {"fqn": "b.B", "kind": "CLASS", "module": "m", "summary": "B", "score": 0.8}
    ],
    "contextBudget": {"usedTokens": 5000, "omittedCount": 3, "truncated": true},
    "stages": [{"name": "class", "hits": []}],
    "fallbackUsed": true
  },
  "bare": {
    "finalResults": [
      {"fqn": "c.C", "kind": "METHOD", "module": "m", "summary": "C", "score": 0.5}
    ]
  }
}`

func TestOutcomeRenormalizesBudget(t *testing.T) {
	reg, err := Parse(strings.NewReader(sampleFixtures))
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	strategy := &types.Strategy{Tier: types.TierBalanced}
	resp, err := reg.Outcome("recorded", strategy, 1200)
	require.NoError(t, err)

	assert.Equal(t, types.TierBalanced, resp.Strategy.Tier)
	assert.True(t, resp.FallbackUsed)
	require.Len(t, resp.Stages, 1)
	assert.Equal(t, types.StageClass, resp.Stages[0].Name)
	require.Len(t, resp.FinalResults, 2)

	b := resp.ContextBudget
	assert.Equal(t, 1200, b.TokenLimit)
	assert.Equal(t, 1200, b.UsedTokens, "recorded usage is capped at the current limit")
	assert.Equal(t, 3, b.OmittedCount)
	assert.True(t, b.Truncated)
	assert.Equal(t, resp.FinalResults, b.Delivered)
}

func TestOutcomeDefaultsBudget(t *testing.T) {
	reg, err := Parse(strings.NewReader(sampleFixtures))
	require.NoError(t, err)

	resp, err := reg.Outcome("bare", nil, 9000)
	require.NoError(t, err)

	assert.Equal(t, 40, resp.ContextBudget.UsedTokens)
	assert.Zero(t, resp.ContextBudget.OmittedCount)
	assert.False(t, resp.ContextBudget.Truncated)
	assert.False(t, resp.FallbackUsed)
	assert.Empty(t, resp.Stages)
}

func TestOutcomeDoesNotShareState(t *testing.T) {
	reg, err := Parse(strings.NewReader(sampleFixtures))
	require.NoError(t, err)

	first, err := reg.Outcome("recorded", nil, 9000)
	require.NoError(t, err)
	first.FinalResults[0].Score = 0

	second, err := reg.Outcome("recorded", nil, 9000)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, second.FinalResults[0].Score, 1e-9)
}

func TestUnknownScenario(t *testing.T) {
	reg, err := Parse(strings.NewReader(sampleFixtures))
	require.NoError(t, err)

	assert.False(t, reg.Has("missing"))
	assert.False(t, reg.Has(""))
	_, err = reg.Outcome("missing", nil, 9000)
	assert.ErrorIs(t, err, ErrNotFound)

	var nilReg *Registry
	assert.False(t, nilReg.Has("recorded"))
	assert.Zero(t, nilReg.Len())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixtures.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleFixtures), 0o644))

	reg, err := Open(false, path)
	require.NoError(t, err)
	assert.Nil(t, reg, "disabled")

	reg, err = Open(true, path)
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.True(t, reg.Has("recorded"))
	assert.Equal(t, path, reg.Path())

	_, err = Open(true, filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("[1,2"), 0o644))
	_, err = Open(true, bad)
	assert.Error(t, err)
}

func TestRepositoryFixturesParse(t *testing.T) {
	reg, err := Load(filepath.Join("..", "..", "fixtures", "petclinic-fixtures.json"))
	require.NoError(t, err)
	assert.True(t, reg.Has("petclinic-entrypoints"))
	assert.True(t, reg.Has("petclinic-visit-endpoints"))

	resp, err := reg.Outcome("petclinic-visit-endpoints", nil, 9000)
	require.NoError(t, err)
	require.Len(t, resp.FinalResults, 1)
	assert.Len(t, resp.FinalResults[0].Metadata.Endpoints, 2)
}

func TestEnabledFromEnv(t *testing.T) {
	t.Setenv(EnvCIFixture, "")
	t.Setenv(EnvEvalFixture, "")
	assert.False(t, EnabledFromEnv())

	t.Setenv(EnvEvalFixture, "1")
	assert.True(t, EnabledFromEnv())
}
