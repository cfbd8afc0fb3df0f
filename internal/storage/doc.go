// Package storage provides SQLite-based persistence for the symbol vector index.
//
// The storage layer manages:
//   - Index runs (one row per ingested symbol dump)
//   - Symbols at module, class and method level, with the exported hit as a JSON payload
//   - Vector embeddings for symbols
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations, compared as semver
//   - index_runs: source path, repo name, counts and timings per ingest
//   - symbols: unique on (fqn, level); indexed by level and module
//   - embeddings: one float32 blob per symbol, cascade-deleted with it
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.ideactx/index.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	sym, _ := storage.FromHit(&hit, "")
//	if err := db.UpsertSymbol(ctx, sym); err != nil {
//	    return err
//	}
//
// # Transactions
//
// Ingest writes a batch of symbols and embeddings atomically:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_ = tx.UpsertSymbol(ctx, sym)
//	_ = tx.UpsertEmbedding(ctx, &storage.Embedding{SymbolID: sym.ID, Vector: blob, Dimension: 384})
//
//	return tx.Commit()
//
// # Vector Search
//
// SearchVector ranks embeddings of the query's dimension by cosine
// similarity, optionally restricted to one level and one module:
//
//	results, err := db.SearchVector(ctx, queryVec, 10, &storage.SearchFilters{
//	    Level:  types.LevelClass,
//	    Module: "spring-petclinic-visits-service",
//	})
//
// # Build Modes
//
// CGO Build (sqlite_vec tag):
//   - Driver: github.com/mattn/go-sqlite3
//   - sqlite-vec registered at init; distance computed with vec_distance_cosine
//   - Build: CGO_ENABLED=1 go build -tags "sqlite_vec"
//
// Pure Go Build (default):
//   - Driver: modernc.org/sqlite
//   - Cosine similarity computed in Go over the filtered rows
//   - Build: CGO_ENABLED=0 go build
//
// # Thread Safety
//
// SQLiteStorage is safe for concurrent use. The pool holds a single
// connection, so writers are serialized; WAL mode keeps readers of other
// processes unblocked.
package storage
