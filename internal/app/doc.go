// Package app wires the application with fx.
//
// Modules:
//   - ConfigModule: Settings from the environment plus named overrides
//     (dbPath, projectRoot, rulesFile, httpAddr)
//   - StorageModule: SQLite vector index and embedder, both nil when
//     DISABLE_VECTOR=1
//   - BackendModule: IDE bridge client, reranker, fixture registry and the
//     profile registry
//   - SearchModule: vector searcher, indexer, pipeline and health checker
//   - ServerModule: MCP server, HTTP API and the startup lifecycle
//
// Commands build the graph with New and pull what they need through
// fx.Populate into a Components value.
package app
