// Package indexer loads exported Java symbol records into the vector index.
//
// A symbol dump is a JSON array of symbol records, or an object with a
// "symbols" array, as produced by the IDE plugin export. Each record is
// stored at its index level (module, class or method) together with an
// embedding of its FQN and summary.
//
// # Basic Usage
//
//	idx := indexer.New(store, emb)
//
//	stats, err := idx.IndexFile(ctx, "symbols.json", &indexer.Config{
//	    Workers:   4,
//	    BatchSize: 32,
//	})
//
//	fmt.Printf("Indexed %d entries in %v\n", stats.EntriesIndexed, stats.Duration)
//
// # Module Entries
//
// Unless Config.SkipModuleEntries is set, one module-level entry is
// synthesized per module that has no explicit module record. Its summary
// reads "Module <name> (<n> classes, <p> packages)" and its embedding text
// lists packages and Spring beans, so module-level vector stages have
// something to match.
//
// # Incremental Indexing
//
// Each entry stores a hash of the embedding model and text. Entries whose
// hash is unchanged keep their stored vector and are counted as skipped.
//
// # Error Handling
//
// Invalid records and failed embedding batches are counted in
// Statistics.EntriesFailed and described in Statistics.ErrorMessages.
// Only storage failures and cancellation abort the run. Every run is
// recorded in the index_runs table.
package indexer
