package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/dshills/ideactx-mcp/internal/config"
	"github.com/dshills/ideactx-mcp/internal/embedder"
	"github.com/dshills/ideactx-mcp/internal/pipeline"
	"github.com/dshills/ideactx-mcp/internal/rerank"
	"github.com/dshills/ideactx-mcp/internal/storage"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		BridgeDisabled: true,
		DBPath:         filepath.Join(t.TempDir(), "index.db"),
		Embedding:      embedder.Config{Provider: embedder.ProviderLocal},
		Rerank:         rerank.DefaultConfig(),
		HTTPAddr:       config.DefaultHTTPAddr,
		ExactTimeout:   pipeline.DefaultExactTimeout,
		VectorTimeout:  pipeline.DefaultVectorTimeout,
	}
}

func startApp(t *testing.T, app *fx.App) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	t.Cleanup(func() {
		require.NoError(t, app.Stop(ctx))
	})
}

func TestConfigModule(t *testing.T) {
	var settings *Settings
	app := fx.New(
		ConfigModule,
		fx.Supply(testConfig(t)),
		fx.Supply(
			fx.Annotate("/tmp/override.db", fx.ResultTags(`name:"dbPath"`)),
			fx.Annotate("/etc/rules.yaml", fx.ResultTags(`name:"rulesFile"`)),
			fx.Annotate(":9000", fx.ResultTags(`name:"httpAddr"`)),
		),
		fx.Populate(&settings),
	)
	startApp(t, app)

	require.NotNil(t, settings)
	assert.Equal(t, "/tmp/override.db", settings.DBPath)
	assert.Equal(t, "/etc/rules.yaml", settings.RulesFile)
	assert.Equal(t, ":9000", settings.HTTPAddr)
	assert.True(t, settings.BridgeDisabled)
}

func TestConfigModule_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.BridgeDisabled = false
	cfg.BridgeURL = ""

	var settings *Settings
	app := fx.New(
		ConfigModule,
		fx.Supply(cfg),
		fx.Populate(&settings),
	)
	assert.Error(t, app.Err())
}

func TestStorageModule_VectorDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.VectorDisabled = true

	var emb embedder.Embedder
	var store storage.Storage
	app := fx.New(
		ConfigModule,
		StorageModule,
		fx.Supply(cfg),
		fx.Populate(&emb, &store),
	)
	startApp(t, app)

	assert.Nil(t, emb)
	assert.Nil(t, store)
}

func TestApp_Components(t *testing.T) {
	cfg := testConfig(t)

	var comps Components
	app := New(cfg, fx.Populate(&comps))
	require.NoError(t, app.Err())
	startApp(t, app)

	assert.NotNil(t, comps.Settings)
	assert.NotNil(t, comps.Pipeline)
	assert.NotNil(t, comps.Health)
	assert.NotNil(t, comps.MCP)
	assert.NotNil(t, comps.HTTP)
	assert.NotNil(t, comps.Store)
	assert.NotNil(t, comps.Indexer)
	assert.NotNil(t, comps.Searcher)

	_, err := os.Stat(cfg.DBPath)
	assert.NoError(t, err, "database file is created")

	names := make([]string, 0)
	for _, tool := range comps.MCP.Tools() {
		names = append(names, tool.Name)
	}
	assert.Contains(t, names, "index_symbols")

	report := comps.Health.Check(context.Background())
	assert.True(t, report.Vector.Enabled)
	assert.True(t, report.Vector.Reachable)
	assert.Nil(t, report.Bridge)
	assert.Equal(t, embedder.ProviderLocal, report.Embedder.Provider)
}

func TestApp_SearchFallsBackWithoutBackends(t *testing.T) {
	cfg := testConfig(t)
	cfg.VectorDisabled = true

	var comps Components
	app := New(cfg, fx.Populate(&comps))
	startApp(t, app)

	assert.Nil(t, comps.Store)
	assert.Nil(t, comps.Indexer)
	assert.Nil(t, comps.Searcher)

	resp, err := comps.Pipeline.Search(context.Background(), types.SearchRequest{Query: "user service"})
	require.NoError(t, err)
	assert.True(t, resp.FallbackUsed)
	assert.NotEmpty(t, resp.FinalResults)
}

func TestApp_IndexThenSearch(t *testing.T) {
	cfg := testConfig(t)

	var comps Components
	app := New(cfg, fx.Populate(&comps))
	startApp(t, app)

	records := []types.SymbolHit{{
		FQN:     "org.springframework.samples.petclinic.visits.web.VisitResource",
		Kind:    types.KindClass,
		Module:  "spring-petclinic-visits-service",
		Summary: "REST controller exposing visit endpoints",
	}}
	stats, err := comps.Indexer.IndexRecords(context.Background(), "test", records, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.EntriesIndexed)

	hits, ok := comps.Searcher.Search(context.Background(), types.VectorQuery{
		Query: "visit endpoints",
		Level: types.LevelClass,
		Limit: 5,
	})
	require.True(t, ok)
	require.NotEmpty(t, hits)
	assert.Equal(t, records[0].FQN, hits[0].FQN)
}
