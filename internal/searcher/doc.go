// Package searcher answers vector stage queries against the local symbol index.
//
// A stage query carries the stage text, the level to search (module, class
// or method), a limit and an optional exact module filter. The searcher
// embeds the text, ranks stored embeddings of the same dimension by cosine
// similarity and returns the stored hits with Score set to the similarity.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store, emb, searcher.Options{})
//
//	hits, ok := s.Search(ctx, types.VectorQuery{
//	    Query: "visit controller endpoint",
//	    Level: types.LevelClass,
//	    Limit: 5,
//	})
//	if !ok {
//	    // index unavailable; treated as zero hits
//	}
//
// # Failure Handling
//
// Search never returns an error. A failing remote embedder falls back to the
// deterministic local hash, and any storage failure reports ok=false.
//
// # Caching
//
// Stage results are cached in an LRU keyed by (query, level, limit, module)
// with a TTL. Call InvalidateCache after re-indexing.
package searcher
