package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func testSymbol(fqn string, level types.Level, module string) *Symbol {
	return &Symbol{
		FQN:     fqn,
		Level:   level,
		Kind:    types.KindClass,
		Module:  module,
		Summary: "summary of " + fqn,
	}
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	assert.NotNil(t, storage.db)
}

func TestNewSQLiteStorage_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.db")
	storage, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, storage.Close())

	// Reopening must not re-run applied migrations
	storage, err = NewSQLiteStorage(path)
	require.NoError(t, err)
	assert.NoError(t, storage.Close())
}

func TestMigrations(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	v, err := currentVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())

	// Idempotent
	require.NoError(t, ApplyMigrations(ctx, storage.db))

	require.NoError(t, RollbackMigration(ctx, storage.db))
	v, err = currentVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())

	require.NoError(t, ApplyMigrations(ctx, storage.db))
	v, err = currentVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())
}

func TestUpsertSymbol(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	sym := testSymbol("org.petclinic.visits.Visit", types.LevelClass, "visits-service")
	require.NoError(t, storage.UpsertSymbol(ctx, sym))
	assert.Greater(t, sym.ID, int64(0))

	// Same (fqn, level) updates in place
	again := testSymbol("org.petclinic.visits.Visit", types.LevelClass, "visits-service")
	again.Summary = "updated"
	require.NoError(t, storage.UpsertSymbol(ctx, again))
	assert.Equal(t, sym.ID, again.ID)

	got, err := storage.GetSymbol(ctx, sym.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Summary)
	assert.Equal(t, types.LevelClass, got.Level)
	assert.Equal(t, types.KindClass, got.Kind)

	// Another level is a distinct row
	method := testSymbol("org.petclinic.visits.Visit", types.LevelMethod, "visits-service")
	require.NoError(t, storage.UpsertSymbol(ctx, method))
	assert.NotEqual(t, sym.ID, method.ID)

	n, err := storage.CountSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUpsertSymbol_Invalid(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name string
		sym  *Symbol
	}{
		{"missing fqn", testSymbol("", types.LevelClass, "m")},
		{"bad level", testSymbol("a.B", types.Level("repository"), "m")},
		{"missing module", testSymbol("a.B", types.LevelClass, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, storage.UpsertSymbol(ctx, tt.sym), ErrInvalidSymbol)
		})
	}
}

func TestGetSymbol_NotFound(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	_, err := storage.GetSymbol(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = storage.GetSymbolByFQN(ctx, "missing", types.LevelClass)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetSymbolByFQN(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	sym := testSymbol("org.petclinic.visits.VisitResource", types.LevelClass, "visits-service")
	require.NoError(t, storage.UpsertSymbol(ctx, sym))

	got, err := storage.GetSymbolByFQN(ctx, sym.FQN, types.LevelClass)
	require.NoError(t, err)
	assert.Equal(t, sym.ID, got.ID)

	_, err = storage.GetSymbolByFQN(ctx, sym.FQN, types.LevelModule)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSymbolsByModule(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, storage.UpsertSymbol(ctx, testSymbol("a.One", types.LevelClass, "visits-service")))
	require.NoError(t, storage.UpsertSymbol(ctx, testSymbol("a.Two", types.LevelClass, "customers-service")))
	require.NoError(t, storage.UpsertSymbol(ctx, testSymbol("a.Three", types.LevelMethod, "visits-service")))

	symbols, err := storage.ListSymbolsByModule(ctx, "visits-service")
	require.NoError(t, err)
	require.Len(t, symbols, 2)
	assert.Equal(t, "a.One", symbols[0].FQN)
	assert.Equal(t, "a.Three", symbols[1].FQN)
}

func TestEmbeddings(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	sym := testSymbol("a.One", types.LevelClass, "m")
	require.NoError(t, storage.UpsertSymbol(ctx, sym))

	blob, err := EncodeVector([]float32{1, 0, 0})
	require.NoError(t, err)
	emb := &Embedding{SymbolID: sym.ID, Vector: blob, Dimension: 3, Provider: "local", Model: "char-hash-384"}
	require.NoError(t, storage.UpsertEmbedding(ctx, emb))
	assert.Greater(t, emb.ID, int64(0))

	// Re-embedding replaces the vector
	blob, err = EncodeVector([]float32{0, 1, 0})
	require.NoError(t, err)
	require.NoError(t, storage.UpsertEmbedding(ctx, &Embedding{SymbolID: sym.ID, Vector: blob, Dimension: 3, Provider: "ollama", Model: "m"}))

	got, err := storage.GetEmbedding(ctx, sym.ID)
	require.NoError(t, err)
	assert.Equal(t, "ollama", got.Provider)
	assert.Equal(t, []float32{0, 1, 0}, DeserializeVector(got.Vector))

	// Deleting the symbol cascades
	require.NoError(t, storage.DeleteSymbol(ctx, sym.ID))
	_, err = storage.GetEmbedding(ctx, sym.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndexRuns(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	_, err := storage.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	run := &IndexRun{SourcePath: "symbols.json", IndexVersion: CurrentSchemaVersion}
	require.NoError(t, storage.CreateRun(ctx, run))
	assert.Greater(t, run.ID, int64(0))

	run.RepoName = "spring-petclinic-microservices"
	run.TotalSymbols = 12
	run.Failed = 1
	require.NoError(t, storage.FinishRun(ctx, run))

	latest, err := storage.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)
	assert.Equal(t, "spring-petclinic-microservices", latest.RepoName)
	assert.Equal(t, 12, latest.TotalSymbols)
	assert.Equal(t, 1, latest.Failed)
	assert.False(t, latest.FinishedAt.IsZero())

	assert.ErrorIs(t, storage.FinishRun(ctx, &IndexRun{ID: 999}), ErrNotFound)
}

func TestGetStatus(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	status, err := storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.SymbolsCount)
	assert.Nil(t, status.LastRun)
	assert.False(t, status.Health.EmbeddingsAvailable)
	assert.True(t, status.Health.DatabaseAccessible)

	sym := testSymbol("a.One", types.LevelClass, "m")
	require.NoError(t, storage.UpsertSymbol(ctx, sym))
	require.NoError(t, storage.UpsertSymbol(ctx, testSymbol("m", types.LevelModule, "m")))
	require.NoError(t, storage.UpsertEmbedding(ctx, &Embedding{SymbolID: sym.ID, Vector: serializeVector([]float32{1}), Dimension: 1, Provider: "local", Model: "x"}))
	require.NoError(t, storage.CreateRun(ctx, &IndexRun{SourcePath: "s.json", IndexVersion: CurrentSchemaVersion}))

	status, err = storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.SymbolsCount)
	assert.Equal(t, 1, status.EmbeddingsCount)
	assert.Equal(t, 1, status.LevelCounts[types.LevelClass])
	assert.Equal(t, 1, status.LevelCounts[types.LevelModule])
	assert.True(t, status.Health.EmbeddingsAvailable)
	assert.Equal(t, VectorExtensionAvailable, status.Health.VectorExtension)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, "s.json", status.LastRun.SourcePath)
}

func TestBeginTx_CommitRollback(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertSymbol(ctx, testSymbol("a.Kept", types.LevelClass, "m")))
	require.NoError(t, tx.Commit())

	tx, err = storage.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertSymbol(ctx, testSymbol("a.Dropped", types.LevelClass, "m")))
	n, err := tx.CountSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, tx.Rollback())

	n, err = storage.CountSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = storage.GetSymbolByFQN(ctx, "a.Dropped", types.LevelClass)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFromHitToHit(t *testing.T) {
	refs := 7
	hit := types.SymbolHit{
		FQN:      "org.petclinic.visits.web.VisitResource#create",
		Kind:     types.KindMethod,
		Module:   "visits-service",
		RepoName: "spring-petclinic-microservices",
		Summary:  "POST /owners/*/pets/{petId}/visits",
		ScoreHints: &types.ScoreHints{
			References: &refs,
		},
		SpringInfo: &types.SpringInfo{Annotations: []string{"PostMapping"}},
		Score:      0.9,
		Roles:      types.RoleSet{types.RoleRestEndpoint},
	}

	sym, err := FromHit(&hit, "")
	require.NoError(t, err)
	assert.Equal(t, types.LevelMethod, sym.Level, "level derived from kind")

	got, err := sym.ToHit()
	require.NoError(t, err)
	assert.Equal(t, hit.FQN, got.FQN)
	assert.Equal(t, types.LevelMethod, got.IndexLevel)
	assert.Equal(t, "spring-petclinic-microservices", got.RepoName)
	require.NotNil(t, got.ScoreHints)
	assert.Equal(t, 7, *got.ScoreHints.References)
	assert.Equal(t, []string{"PostMapping"}, got.SpringInfo.Annotations)
	assert.Zero(t, got.Score, "scores are not persisted")
	assert.Empty(t, got.Roles)

	// Explicit indexLevel wins over kind
	hit.IndexLevel = types.LevelClass
	sym, err = FromHit(&hit, "")
	require.NoError(t, err)
	assert.Equal(t, types.LevelClass, sym.Level)

	// Argument wins over both
	sym, err = FromHit(&hit, types.LevelModule)
	require.NoError(t, err)
	assert.Equal(t, types.LevelModule, sym.Level)
}
