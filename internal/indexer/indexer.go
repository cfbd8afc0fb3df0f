package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/ideactx-mcp/internal/embedder"
	"github.com/dshills/ideactx-mcp/internal/storage"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

// Indexer defaults
const (
	DefaultBatchSize = embedder.DefaultBatchSize
	maxListedItems   = 8
)

var (
	// ErrIndexInProgress is returned when another ingest holds the lock
	ErrIndexInProgress = errors.New("indexing already in progress")
	// ErrNoRecords is returned when the input holds no symbol records
	ErrNoRecords = errors.New("no symbol records")
)

// Indexer loads exported symbol records, embeds them and stores them
// with their level so vector stages can search module, class and method entries.
type Indexer struct {
	storage  storage.Storage
	embedder embedder.Embedder
	guard    ingestGuard
}

// Config contains configuration for the indexer
type Config struct {
	Workers           int  // Concurrent embedding batches (default: runtime.NumCPU())
	BatchSize         int  // Records per embedding call and transaction (default: 32, max 100)
	SkipModuleEntries bool // Do not synthesize module-level entries
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	RunID          int64
	RecordsRead    int
	ModuleEntries  int
	EntriesIndexed int
	EntriesSkipped int
	EntriesFailed  int
	Duration       time.Duration
	ErrorMessages  []string
}

// Entry is one row to embed and store
type Entry struct {
	Hit   types.SymbolHit
	Level types.Level
	Text  string
}

// New creates a new Indexer instance
func New(store storage.Storage, emb embedder.Embedder) *Indexer {
	return &Indexer{
		storage:  store,
		embedder: emb,
	}
}

// IndexFile ingests a symbol dump from path
func (idx *Indexer) IndexFile(ctx context.Context, path string, config *Config) (*Statistics, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbol dump: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, err := LoadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return idx.IndexRecords(ctx, path, records, config)
}

// LoadRecords decodes a JSON array of symbol records or an object with a
// "symbols" array
func LoadRecords(r io.Reader) ([]types.SymbolHit, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol dump: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrNoRecords
	}

	var records []types.SymbolHit
	if data[0] == '[' {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to decode symbol array: %w", err)
		}
	} else {
		var wrapped struct {
			Symbols []types.SymbolHit `json:"symbols"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode symbol dump: %w", err)
		}
		records = wrapped.Symbols
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

// IndexRecords embeds and stores records. Invalid records and failed
// embedding batches are counted and reported, not fatal.
func (idx *Indexer) IndexRecords(ctx context.Context, source string, records []types.SymbolHit, config *Config) (*Statistics, error) {
	if active, since, ok := idx.guard.acquire(source); !ok {
		return nil, fmt.Errorf("%w: %s (running %s)", ErrIndexInProgress, active, time.Since(since).Round(time.Second))
	}
	defer idx.guard.release()

	if idx.embedder == nil {
		return nil, embedder.ErrNoProviderEnabled
	}
	config = normalizeConfig(config)

	startTime := time.Now()
	stats := &Statistics{
		RecordsRead:   len(records),
		ErrorMessages: make([]string, 0),
	}

	valid := make([]types.SymbolHit, 0, len(records))
	for i := range records {
		if err := records[i].Validate(); err != nil {
			stats.EntriesFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("record %d (%s): %v", i, records[i].FQN, err))
			continue
		}
		valid = append(valid, records[i])
	}

	entries := BuildEntries(valid, !config.SkipModuleEntries)
	for _, e := range entries {
		if e.Hit.Metadata != nil && e.Hit.Metadata.Synthetic {
			stats.ModuleEntries++
		}
	}

	run := &storage.IndexRun{
		SourcePath:   source,
		RepoName:     repoName(valid),
		IndexVersion: storage.CurrentSchemaVersion,
		StartedAt:    startTime,
	}
	if err := idx.storage.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record index run: %w", err)
	}
	stats.RunID = run.ID

	if err := idx.indexEntries(ctx, entries, config, stats); err != nil {
		return nil, fmt.Errorf("failed to index entries: %w", err)
	}

	run.TotalSymbols = stats.EntriesIndexed + stats.EntriesSkipped
	run.Failed = stats.EntriesFailed
	if err := idx.storage.FinishRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to finish index run: %w", err)
	}

	stats.Duration = time.Since(startTime)
	slog.Info("index complete",
		slog.String("source", source),
		slog.Int("records", stats.RecordsRead),
		slog.Int("indexed", stats.EntriesIndexed),
		slog.Int("skipped", stats.EntriesSkipped),
		slog.Int("failed", stats.EntriesFailed),
		slog.Duration("duration", stats.Duration),
	)
	return stats, nil
}

func normalizeConfig(config *Config) *Config {
	c := Config{}
	if config != nil {
		c = *config
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	c.BatchSize = min(c.BatchSize, embedder.MaxBatchSize)
	return &c
}

// BuildEntries turns records into index entries. When withModules is set, one
// module-level entry is synthesized per module that has no explicit
// module-level record.
func BuildEntries(records []types.SymbolHit, withModules bool) []Entry {
	entries := make([]Entry, 0, len(records)+8)
	explicitModules := make(map[string]bool)
	for i := range records {
		level := entryLevel(&records[i])
		if level == types.LevelModule {
			explicitModules[records[i].Module] = true
		}
		entries = append(entries, Entry{
			Hit:   records[i],
			Level: level,
			Text:  EmbeddingText(&records[i]),
		})
	}
	if !withModules {
		return entries
	}

	type moduleGroup struct {
		name     string
		path     string
		repo     string
		classes  int
		packages map[string]bool
		beans    []string
	}
	groups := make(map[string]*moduleGroup)
	var order []string
	for i := range records {
		r := &records[i]
		if explicitModules[r.Module] || entryLevel(r) != types.LevelClass {
			continue
		}
		g, ok := groups[r.Module]
		if !ok {
			g = &moduleGroup{name: r.Module, path: r.ModulePath, repo: r.RepoName, packages: make(map[string]bool)}
			groups[r.Module] = g
			order = append(order, r.Module)
		}
		g.classes++
		if r.PackageName != "" {
			g.packages[r.PackageName] = true
		}
		if r.SpringInfo != nil && r.SpringInfo.IsSpringBean {
			g.beans = append(g.beans, r.FQN)
		}
	}

	for _, name := range order {
		g := groups[name]
		packages := make([]string, 0, len(g.packages))
		for p := range g.packages {
			packages = append(packages, p)
		}
		sort.Strings(packages)

		fqn := g.name
		if g.repo != "" {
			fqn = g.repo + ":" + g.name
		}
		hit := types.SymbolHit{
			FQN:        fqn,
			Kind:       types.KindModule,
			Module:     g.name,
			ModulePath: g.path,
			RepoName:   g.repo,
			IndexLevel: types.LevelModule,
			Summary:    fmt.Sprintf("Module %s (%d classes, %d packages)", g.name, g.classes, len(packages)),
			Metadata: &types.Metadata{
				Synthetic:   true,
				SpringBeans: types.StringList(truncate(g.beans)),
				Extra: map[string]any{
					"classCount":   g.classes,
					"packageCount": len(packages),
				},
			},
		}
		text := strings.Join([]string{
			fmt.Sprintf("Module %s in repo %s", g.name, g.repo),
			"Path: " + g.path,
			"Packages: " + strings.Join(truncate(packages), ", "),
			fmt.Sprintf("Classes: %d", g.classes),
			fmt.Sprintf("Spring beans: %d", len(g.beans)),
			"Beans: " + strings.Join(truncate(g.beans), ", "),
		}, "\n")
		entries = append(entries, Entry{Hit: hit, Level: types.LevelModule, Text: text})
	}
	return entries
}

// EmbeddingText is the text embedded for a record: its FQN and summary
func EmbeddingText(hit *types.SymbolHit) string {
	if hit.Summary == "" {
		return hit.FQN
	}
	return hit.FQN + "\n" + hit.Summary
}

func entryLevel(hit *types.SymbolHit) types.Level {
	if hit.IndexLevel.Valid() {
		return hit.IndexLevel
	}
	return types.LevelForKind(hit.Kind)
}

func truncate(values []string) []string {
	if len(values) > maxListedItems {
		return values[:maxListedItems]
	}
	return values
}

func repoName(records []types.SymbolHit) string {
	for i := range records {
		if records[i].RepoName != "" {
			return records[i].RepoName
		}
	}
	return ""
}

// indexEntries embeds and stores entries in concurrent batches
func (idx *Indexer) indexEntries(ctx context.Context, entries []Entry, config *Config, stats *Statistics) error {
	var (
		indexed int32
		skipped int32
		failed  int32
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	var mu sync.Mutex // Protect stats.ErrorMessages

	for i := 0; i < len(entries); i += config.BatchSize {
		end := min(i+config.BatchSize, len(entries))
		batch := entries[i:end]

		g.Go(func() error {
			n, s, f, err := idx.indexBatch(gctx, batch)
			atomic.AddInt32(&indexed, int32(n))
			atomic.AddInt32(&skipped, int32(s))
			atomic.AddInt32(&failed, int32(f))
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, err.Error())
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	stats.EntriesIndexed = int(indexed)
	stats.EntriesSkipped = int(skipped)
	stats.EntriesFailed += int(failed)
	return nil
}

// pendingEntry pairs an entry with its storage row and text hash
type pendingEntry struct {
	entry  *Entry
	symbol *storage.Symbol
	hash   string
}

// indexBatch embeds the changed entries of one batch, then writes the batch in
// a transaction. An embedding failure fails only the changed entries.
func (idx *Indexer) indexBatch(ctx context.Context, batch []Entry) (indexed, skipped, failed int, err error) {
	model := idx.embedder.Model()

	var unchanged, changed []pendingEntry
	for i := range batch {
		e := &batch[i]
		sym, convErr := storage.FromHit(&e.Hit, e.Level)
		if convErr != nil {
			failed++
			continue
		}
		p := pendingEntry{entry: e, symbol: sym, hash: embedder.ComputeHash(model, e.Text)}
		sym.TextHash = p.hash

		existing, getErr := idx.storage.GetSymbolByFQN(ctx, sym.FQN, sym.Level)
		if getErr == nil && existing.TextHash == p.hash {
			unchanged = append(unchanged, p)
			continue
		}
		if getErr != nil && !errors.Is(getErr, storage.ErrNotFound) {
			return 0, 0, len(batch), fmt.Errorf("failed to check %s: %w", sym.FQN, getErr)
		}
		changed = append(changed, p)
	}

	var vectors []*embedder.Embedding
	if len(changed) > 0 {
		texts := make([]string, len(changed))
		for i, p := range changed {
			texts[i] = p.entry.Text
		}
		resp, embErr := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts, Model: model})
		if embErr != nil {
			failed += len(changed)
			err = fmt.Errorf("embedding batch starting at %s: %w", changed[0].symbol.FQN, embErr)
			changed = nil
		} else {
			vectors = resp.Embeddings
		}
	}

	if len(changed) == 0 && len(unchanged) == 0 {
		return 0, 0, failed, err
	}

	tx, txErr := idx.storage.BeginTx(ctx)
	if txErr != nil {
		return 0, 0, failed + len(changed) + len(unchanged), fmt.Errorf("failed to begin transaction: %w", txErr)
	}
	defer func() { _ = tx.Rollback() }()

	// Unchanged rows refresh their payload and keep the stored vector
	for _, p := range unchanged {
		if upErr := tx.UpsertSymbol(ctx, p.symbol); upErr != nil {
			return 0, 0, failed + len(changed) + len(unchanged), upErr
		}
	}
	for i, p := range changed {
		if upErr := tx.UpsertSymbol(ctx, p.symbol); upErr != nil {
			return 0, 0, failed + len(changed) + len(unchanged), upErr
		}
		blob, encErr := storage.EncodeVector(vectors[i].Vector)
		if encErr != nil {
			return 0, 0, failed + len(changed) + len(unchanged), encErr
		}
		if upErr := tx.UpsertEmbedding(ctx, &storage.Embedding{
			SymbolID:  p.symbol.ID,
			Vector:    blob,
			Dimension: len(vectors[i].Vector),
			Provider:  vectors[i].Provider,
			Model:     vectors[i].Model,
		}); upErr != nil {
			return 0, 0, failed + len(changed) + len(unchanged), upErr
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return 0, 0, failed + len(changed) + len(unchanged), fmt.Errorf("failed to commit transaction: %w", commitErr)
	}
	return len(changed), len(unchanged), failed, err
}
