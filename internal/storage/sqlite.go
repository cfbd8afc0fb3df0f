package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidSymbol is returned when a symbol lacks fqn, level or module
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance. The parent
// directory of a file path is created when missing.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Index run operations

func (s *SQLiteStorage) createRunWithQuerier(ctx context.Context, q querier, run *IndexRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	result, err := q.ExecContext(ctx, `
		INSERT INTO index_runs (source_path, repo_name, total_symbols, failed, index_version, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.SourcePath, run.RepoName, run.TotalSymbols, run.Failed, run.IndexVersion, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create index run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = id
	return nil
}

func (s *SQLiteStorage) CreateRun(ctx context.Context, run *IndexRun) error {
	return s.createRunWithQuerier(ctx, s.querier(), run)
}

func (s *SQLiteStorage) finishRunWithQuerier(ctx context.Context, q querier, run *IndexRun) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	result, err := q.ExecContext(ctx, `
		UPDATE index_runs
		SET repo_name = ?, total_symbols = ?, failed = ?, finished_at = ?
		WHERE id = ?
	`, run.RepoName, run.TotalSymbols, run.Failed, run.FinishedAt, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish index run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) FinishRun(ctx context.Context, run *IndexRun) error {
	return s.finishRunWithQuerier(ctx, s.querier(), run)
}

func (s *SQLiteStorage) latestRunWithQuerier(ctx context.Context, q querier) (*IndexRun, error) {
	var run IndexRun
	var repoName sql.NullString
	var finishedAt sql.NullTime
	err := q.QueryRowContext(ctx, `
		SELECT id, source_path, repo_name, total_symbols, failed, index_version, started_at, finished_at
		FROM index_runs
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&run.ID, &run.SourcePath, &repoName, &run.TotalSymbols, &run.Failed,
		&run.IndexVersion, &run.StartedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	run.RepoName = repoName.String
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}
	return &run, nil
}

func (s *SQLiteStorage) LatestRun(ctx context.Context) (*IndexRun, error) {
	return s.latestRunWithQuerier(ctx, s.querier())
}

// Symbol operations

func (s *SQLiteStorage) upsertSymbolWithQuerier(ctx context.Context, q querier, symbol *Symbol) error {
	if symbol.FQN == "" || !symbol.Level.Valid() || symbol.Module == "" {
		return fmt.Errorf("%w: fqn=%q level=%q module=%q", ErrInvalidSymbol, symbol.FQN, symbol.Level, symbol.Module)
	}
	now := time.Now()
	err := q.QueryRowContext(ctx, `
		INSERT INTO symbols (fqn, level, kind, module, module_path, repo_name, package_name,
		                     summary, payload, text_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fqn, level) DO UPDATE SET
			kind = excluded.kind,
			module = excluded.module,
			module_path = excluded.module_path,
			repo_name = excluded.repo_name,
			package_name = excluded.package_name,
			summary = excluded.summary,
			payload = excluded.payload,
			text_hash = excluded.text_hash,
			updated_at = excluded.updated_at
		RETURNING id
	`, symbol.FQN, string(symbol.Level), string(symbol.Kind), symbol.Module, symbol.ModulePath,
		symbol.RepoName, symbol.PackageName, symbol.Summary, symbol.Payload, symbol.TextHash,
		now, now).Scan(&symbol.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert symbol %s: %w", symbol.FQN, err)
	}
	if symbol.CreatedAt.IsZero() {
		symbol.CreatedAt = now
	}
	symbol.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertSymbol(ctx context.Context, symbol *Symbol) error {
	return s.upsertSymbolWithQuerier(ctx, s.querier(), symbol)
}

const symbolColumns = `id, fqn, level, kind, module, module_path, repo_name, package_name,
	summary, payload, text_hash, created_at, updated_at`

// scanner is implemented by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSymbol(row scanner) (*Symbol, error) {
	var sym Symbol
	var level, kind string
	var modulePath, repoName, packageName, summary, textHash sql.NullString
	err := row.Scan(&sym.ID, &sym.FQN, &level, &kind, &sym.Module, &modulePath, &repoName,
		&packageName, &summary, &sym.Payload, &textHash, &sym.CreatedAt, &sym.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sym.Level = types.Level(level)
	sym.Kind = types.SymbolKind(kind)
	sym.ModulePath = modulePath.String
	sym.RepoName = repoName.String
	sym.PackageName = packageName.String
	sym.Summary = summary.String
	sym.TextHash = textHash.String
	return &sym, nil
}

func (s *SQLiteStorage) getSymbolWithQuerier(ctx context.Context, q querier, symbolID int64) (*Symbol, error) {
	row := q.QueryRowContext(ctx, "SELECT "+symbolColumns+" FROM symbols WHERE id = ?", symbolID)
	sym, err := scanSymbol(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sym, err
}

func (s *SQLiteStorage) GetSymbol(ctx context.Context, symbolID int64) (*Symbol, error) {
	return s.getSymbolWithQuerier(ctx, s.querier(), symbolID)
}

func (s *SQLiteStorage) getSymbolByFQNWithQuerier(ctx context.Context, q querier, fqn string, level types.Level) (*Symbol, error) {
	row := q.QueryRowContext(ctx, "SELECT "+symbolColumns+" FROM symbols WHERE fqn = ? AND level = ?", fqn, string(level))
	sym, err := scanSymbol(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sym, err
}

func (s *SQLiteStorage) GetSymbolByFQN(ctx context.Context, fqn string, level types.Level) (*Symbol, error) {
	return s.getSymbolByFQNWithQuerier(ctx, s.querier(), fqn, level)
}

func (s *SQLiteStorage) listSymbolsByModuleWithQuerier(ctx context.Context, q querier, module string) ([]*Symbol, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+symbolColumns+" FROM symbols WHERE module = ? ORDER BY id", module)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var symbols []*Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *SQLiteStorage) ListSymbolsByModule(ctx context.Context, module string) ([]*Symbol, error) {
	return s.listSymbolsByModuleWithQuerier(ctx, s.querier(), module)
}

func (s *SQLiteStorage) deleteSymbolWithQuerier(ctx context.Context, q querier, symbolID int64) error {
	_, err := q.ExecContext(ctx, "DELETE FROM symbols WHERE id = ?", symbolID)
	return err
}

func (s *SQLiteStorage) DeleteSymbol(ctx context.Context, symbolID int64) error {
	return s.deleteSymbolWithQuerier(ctx, s.querier(), symbolID)
}

// Embedding operations

func (s *SQLiteStorage) upsertEmbeddingWithQuerier(ctx context.Context, q querier, embedding *Embedding) error {
	now := time.Now()
	err := q.QueryRowContext(ctx, `
		INSERT INTO embeddings (symbol_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model
		RETURNING id
	`, embedding.SymbolID, embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model, now).Scan(&embedding.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return s.upsertEmbeddingWithQuerier(ctx, s.querier(), embedding)
}

func (s *SQLiteStorage) getEmbeddingWithQuerier(ctx context.Context, q querier, symbolID int64) (*Embedding, error) {
	var emb Embedding
	err := q.QueryRowContext(ctx, `
		SELECT id, symbol_id, vector, dimension, provider, model, created_at
		FROM embeddings
		WHERE symbol_id = ?
	`, symbolID).Scan(&emb.ID, &emb.SymbolID, &emb.Vector, &emb.Dimension,
		&emb.Provider, &emb.Model, &emb.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &emb, nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, symbolID int64) (*Embedding, error) {
	return s.getEmbeddingWithQuerier(ctx, s.querier(), symbolID)
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, s.querier(), queryVector, limit, filters)
}

// Status operations

func (s *SQLiteStorage) countSymbolsWithQuerier(ctx context.Context, q querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM symbols").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLiteStorage) CountSymbols(ctx context.Context) (int, error) {
	return s.countSymbolsWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*Status, error) {
	status := &Status{LevelCounts: make(map[types.Level]int)}

	run, err := s.latestRunWithQuerier(ctx, q)
	switch {
	case err == nil:
		status.LastRun = run
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	rows, err := q.QueryContext(ctx, "SELECT level, COUNT(*) FROM symbols GROUP BY level")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			_ = rows.Close()
			return nil, err
		}
		status.LevelCounts[types.Level(level)] = n
		status.SymbolsCount += n
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&status.EmbeddingsCount); err != nil {
		return nil, err
	}

	// Calculate database size
	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		VectorExtension:     VectorExtensionAvailable,
	}
	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}

// Transaction operations delegate to the storage helpers with the tx querier

func (t *sqliteTx) CreateRun(ctx context.Context, run *IndexRun) error {
	return t.storage.createRunWithQuerier(ctx, t.querier(), run)
}

func (t *sqliteTx) FinishRun(ctx context.Context, run *IndexRun) error {
	return t.storage.finishRunWithQuerier(ctx, t.querier(), run)
}

func (t *sqliteTx) LatestRun(ctx context.Context) (*IndexRun, error) {
	return t.storage.latestRunWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) UpsertSymbol(ctx context.Context, symbol *Symbol) error {
	return t.storage.upsertSymbolWithQuerier(ctx, t.querier(), symbol)
}

func (t *sqliteTx) GetSymbol(ctx context.Context, symbolID int64) (*Symbol, error) {
	return t.storage.getSymbolWithQuerier(ctx, t.querier(), symbolID)
}

func (t *sqliteTx) GetSymbolByFQN(ctx context.Context, fqn string, level types.Level) (*Symbol, error) {
	return t.storage.getSymbolByFQNWithQuerier(ctx, t.querier(), fqn, level)
}

func (t *sqliteTx) ListSymbolsByModule(ctx context.Context, module string) ([]*Symbol, error) {
	return t.storage.listSymbolsByModuleWithQuerier(ctx, t.querier(), module)
}

func (t *sqliteTx) DeleteSymbol(ctx context.Context, symbolID int64) error {
	return t.storage.deleteSymbolWithQuerier(ctx, t.querier(), symbolID)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return t.storage.upsertEmbeddingWithQuerier(ctx, t.querier(), embedding)
}

func (t *sqliteTx) GetEmbedding(ctx context.Context, symbolID int64) (*Embedding, error) {
	return t.storage.getEmbeddingWithQuerier(ctx, t.querier(), symbolID)
}

func (t *sqliteTx) SearchVector(ctx context.Context, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, t.querier(), queryVector, limit, filters)
}

func (t *sqliteTx) CountSymbols(ctx context.Context) (int, error) {
	return t.storage.countSymbolsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

// Close is a no-op for transactions; use Commit or Rollback
func (t *sqliteTx) Close() error {
	return nil
}

// BeginTx is not supported on a transaction
func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}
