// Package searcher answers documentation queries against an indexed module.
//
// Searches are keyword searches: the query is matched against declaration
// names and docstrings with FTS5 and ranked by BM25. Results carry the full
// statement record (parameters, docstring, comment range) and the declaring file.
//
//	s := searcher.NewSearcher(store)
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query:    "virtual host",
//	    ModuleID: module.ID,
//	    Limit:    10,
//	    Filters:  &storage.SearchFilters{Kinds: []string{"defined_type"}},
//	    UseCache: true,
//	})
//
// # Caching
//
// Responses are cached in an LRU keyed by query, module, limit and filters, with
// a per-request TTL (DefaultCacheTTL when unset). Callers receive copies. After
// re-indexing a module, call InvalidateCache with its ID.
package searcher
