package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/puppetdoc-mcp/internal/storage"
	"github.com/dshills/puppetdoc-mcp/pkg/types"
)

const (
	// DefaultLimit is used when a request has no limit
	DefaultLimit = 10
	// MaxLimit caps the number of results per request
	MaxLimit = 100
	// DefaultCacheTTL is used when a cached request has no TTL
	DefaultCacheTTL = time.Hour
	// DefaultCacheSize is the number of responses kept by NewSearcher
	DefaultCacheSize = 1000
)

// ErrEmptyQuery is returned for a request without query text
var ErrEmptyQuery = errors.New("query cannot be empty")

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query    string
	Limit    int
	ModuleID int64
	Filters  *storage.SearchFilters
	UseCache bool // Whether to use the response cache
	CacheTTL time.Duration
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results      []types.SearchResult `json:"results"`
	TotalResults int                  `json:"total_results"`
	Duration     time.Duration        `json:"duration"`
	CacheHit     bool                 `json:"cache_hit"`
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	moduleID  int64
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher runs keyword searches over indexed declaration docs
type Searcher struct {
	storage storage.Storage
	cache   *lru.Cache[[32]byte, *cacheEntry]
	now     func() time.Time
}

// NewSearcher creates a new Searcher with a DefaultCacheSize response cache
func NewSearcher(store storage.Storage) *Searcher {
	s, err := NewSearcherWithCacheSize(store, DefaultCacheSize)
	if err != nil {
		// Only reachable with a non-positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return s
}

// NewSearcherWithCacheSize creates a Searcher whose cache holds at most size responses
func NewSearcherWithCacheSize(store storage.Storage, size int) (*Searcher, error) {
	cache, err := lru.New[[32]byte, *cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &Searcher{
		storage: store,
		cache:   cache,
		now:     time.Now,
	}, nil
}

// Search performs a BM25 keyword search over declaration names and docstrings
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := s.now()

	if err := validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = s.now().Sub(startTime)
			return cached, nil
		}
	}

	textResults, err := s.storage.SearchDeclarations(ctx, req.ModuleID, req.Query, req.Limit, req.Filters)
	if err != nil {
		return nil, err
	}

	results, err := s.fetchResults(ctx, textResults)
	if err != nil {
		return nil, err
	}

	response := &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		Duration:     s.now().Sub(startTime),
	}

	if req.UseCache && len(response.Results) > 0 {
		s.storeInCache(req, response)
	}

	return response, nil
}

// fetchResults loads the declarations behind ranked text results
func (s *Searcher) fetchResults(ctx context.Context, ranked []storage.TextResult) ([]types.SearchResult, error) {
	results := make([]types.SearchResult, 0, len(ranked))
	files := make(map[int64]string)

	for _, tr := range ranked {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		decl, err := s.storage.GetDeclaration(ctx, tr.DeclarationID)
		if err != nil {
			continue // Removed by a concurrent re-index
		}

		path, ok := files[decl.FileID]
		if !ok {
			file, err := s.storage.GetFileByID(ctx, decl.FileID)
			if err != nil {
				continue
			}
			path = file.FilePath
			files[decl.FileID] = path
		}

		results = append(results, types.SearchResult{
			DeclarationID:  decl.ID,
			Rank:           len(results) + 1,
			RelevanceScore: tr.BM25Score,
			Statement:      decl.ToRecord(path),
			File:           path,
		})
	}

	return results, nil
}

// validateRequest ensures the request is valid and fills defaults
func validateRequest(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return ErrEmptyQuery
	}

	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}

	if req.CacheTTL <= 0 {
		req.CacheTTL = DefaultCacheTTL
	}

	return nil
}

// checkCache returns a copy of a live cached response, or nil
func (s *Searcher) checkCache(req SearchRequest) *SearchResponse {
	hash := computeQueryHash(req)

	entry, found := s.cache.Get(hash)
	if !found {
		return nil
	}
	if s.now().After(entry.expiresAt) {
		s.cache.Remove(hash)
		return nil
	}

	return copySearchResponse(entry.response)
}

// storeInCache saves a copy of response
func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	s.cache.Add(computeQueryHash(req), &cacheEntry{
		moduleID:  req.ModuleID,
		response:  copySearchResponse(response),
		expiresAt: s.now().Add(req.CacheTTL),
	})
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}

	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	for i, result := range src.Results {
		dst.Results[i] = result
		dst.Results[i].Statement.Parameters = slices.Clone(result.Statement.Parameters)
	}
	return &dst
}

// computeQueryHash computes a unique hash for a search request
func computeQueryHash(req SearchRequest) [32]byte {
	var data strings.Builder
	fmt.Fprintf(&data, "%s|%d|%d", req.Query, req.ModuleID, req.Limit)

	if req.Filters != nil {
		kinds := slices.Clone(req.Filters.Kinds)
		slices.Sort(kinds)
		fmt.Fprintf(&data, "|filters:%s|%s|%.2f",
			strings.Join(kinds, ","), req.Filters.FilePattern, req.Filters.MinRelevance)
	}

	return sha256.Sum256([]byte(data.String()))
}

// InvalidateCache removes cached responses for a module, typically after it is re-indexed
func (s *Searcher) InvalidateCache(moduleID int64) int {
	removed := 0
	for _, key := range s.cache.Keys() {
		if entry, ok := s.cache.Peek(key); ok && entry.moduleID == moduleID {
			s.cache.Remove(key)
			removed++
		}
	}
	return removed
}

// CacheLen returns the number of cached responses
func (s *Searcher) CacheLen() int {
	return s.cache.Len()
}
