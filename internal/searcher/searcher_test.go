package searcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/dshills/puppetdoc-mcp/internal/storage"
)

type SearcherTestSuite struct {
	suite.Suite

	ctx      context.Context
	store    *storage.SQLiteStorage
	searcher *Searcher
	moduleID int64
	otherID  int64
	clock    time.Time
}

func (s *SearcherTestSuite) SetupTest() {
	s.ctx = context.Background()

	store, err := storage.NewSQLiteStorage(":memory:")
	s.Require().NoError(err)
	s.store = store

	s.moduleID = s.seedModule("/modules/apache", map[string][]*storage.Declaration{
		"manifests/vhost.pp": {
			{Kind: "defined_type", Name: "apache::vhost", Line: 2,
				Docstring:  "Configures an Apache virtual host.",
				Parameters: []storage.Parameter{{Name: "docroot", Type: "String"}}},
			{Kind: "class", Name: "apache::ssl", Line: 30, Docstring: "Enables SSL on the web server."},
		},
		"functions/bool2httpd.pp": {
			{Kind: "function", Name: "apache::bool2httpd", Line: 1, ReturnType: "String",
				Docstring: "Converts a boolean into an Apache On/Off value."},
		},
	})
	s.otherID = s.seedModule("/modules/nginx", map[string][]*storage.Declaration{
		"manifests/init.pp": {
			{Kind: "class", Name: "nginx", Line: 1, Docstring: "Installs the nginx web server."},
		},
	})

	s.searcher = NewSearcher(store)
	s.clock = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.searcher.now = func() time.Time { return s.clock }
}

func (s *SearcherTestSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func (s *SearcherTestSuite) seedModule(root string, files map[string][]*storage.Declaration) int64 {
	module := &storage.Module{RootPath: root, IndexVersion: storage.CurrentSchemaVersion}
	s.Require().NoError(s.store.CreateModule(s.ctx, module))

	for path, decls := range files {
		file := &storage.File{ModuleID: module.ID, FilePath: path}
		s.Require().NoError(s.store.UpsertFile(s.ctx, file))
		for _, d := range decls {
			d.FileID = file.ID
			s.Require().NoError(s.store.UpsertDeclaration(s.ctx, d))
		}
	}
	return module.ID
}

func (s *SearcherTestSuite) TestKeywordSearch() {
	resp, err := s.searcher.Search(s.ctx, SearchRequest{Query: "virtual host", ModuleID: s.moduleID})
	s.Require().NoError(err)
	s.Require().Len(resp.Results, 1)
	s.Equal(1, resp.TotalResults)
	s.False(resp.CacheHit)

	hit := resp.Results[0]
	s.Equal(1, hit.Rank)
	s.Equal("manifests/vhost.pp", hit.File)
	s.Equal("apache::vhost", hit.Statement.Name)
	s.Equal("manifests/vhost.pp", hit.Statement.File)
	s.Require().Len(hit.Statement.Parameters, 1)
	s.Equal("docroot", hit.Statement.Parameters[0].Name)
	s.NoError(hit.Validate())
}

func (s *SearcherTestSuite) TestRanksAreSequential() {
	resp, err := s.searcher.Search(s.ctx, SearchRequest{Query: "apache", ModuleID: s.moduleID})
	s.Require().NoError(err)
	s.Require().Len(resp.Results, 3)
	for i, r := range resp.Results {
		s.Equal(i+1, r.Rank)
		if i > 0 {
			s.LessOrEqual(r.RelevanceScore, resp.Results[i-1].RelevanceScore)
		}
	}
}

func (s *SearcherTestSuite) TestScopedToModule() {
	resp, err := s.searcher.Search(s.ctx, SearchRequest{Query: "web server", ModuleID: s.otherID})
	s.Require().NoError(err)
	s.Require().Len(resp.Results, 1)
	s.Equal("nginx", resp.Results[0].Statement.Name)
}

func (s *SearcherTestSuite) TestFilters() {
	resp, err := s.searcher.Search(s.ctx, SearchRequest{
		Query:    "apache",
		ModuleID: s.moduleID,
		Filters:  &storage.SearchFilters{Kinds: []string{"function"}},
	})
	s.Require().NoError(err)
	s.Require().Len(resp.Results, 1)
	s.Equal("String", resp.Results[0].Statement.ReturnType)

	resp, err = s.searcher.Search(s.ctx, SearchRequest{
		Query:    "apache",
		ModuleID: s.moduleID,
		Filters:  &storage.SearchFilters{FilePattern: "manifests/*"},
	})
	s.Require().NoError(err)
	s.Len(resp.Results, 2)
}

func (s *SearcherTestSuite) TestEmptyQuery() {
	_, err := s.searcher.Search(s.ctx, SearchRequest{Query: "  ", ModuleID: s.moduleID})
	s.ErrorIs(err, ErrEmptyQuery)
}

func (s *SearcherTestSuite) TestCache() {
	req := SearchRequest{Query: "apache", ModuleID: s.moduleID, UseCache: true, CacheTTL: time.Minute}

	first, err := s.searcher.Search(s.ctx, req)
	s.Require().NoError(err)
	s.False(first.CacheHit)
	s.Equal(1, s.searcher.CacheLen())

	second, err := s.searcher.Search(s.ctx, req)
	s.Require().NoError(err)
	s.True(second.CacheHit)
	s.Equal(first.Results, second.Results)

	// Cached copies are independent of what callers do with results
	second.Results[0].Statement.Name = "mutated"
	third, err := s.searcher.Search(s.ctx, req)
	s.Require().NoError(err)
	s.NotEqual("mutated", third.Results[0].Statement.Name)

	s.clock = s.clock.Add(2 * time.Minute)
	expired, err := s.searcher.Search(s.ctx, req)
	s.Require().NoError(err)
	s.False(expired.CacheHit)
}

func (s *SearcherTestSuite) TestCacheDisabled() {
	req := SearchRequest{Query: "apache", ModuleID: s.moduleID}
	_, err := s.searcher.Search(s.ctx, req)
	s.Require().NoError(err)
	s.Equal(0, s.searcher.CacheLen())
}

func (s *SearcherTestSuite) TestInvalidateCache() {
	_, err := s.searcher.Search(s.ctx, SearchRequest{Query: "apache", ModuleID: s.moduleID, UseCache: true})
	s.Require().NoError(err)
	_, err = s.searcher.Search(s.ctx, SearchRequest{Query: "nginx", ModuleID: s.otherID, UseCache: true})
	s.Require().NoError(err)
	s.Equal(2, s.searcher.CacheLen())

	s.Equal(1, s.searcher.InvalidateCache(s.moduleID))
	s.Equal(1, s.searcher.CacheLen())

	resp, err := s.searcher.Search(s.ctx, SearchRequest{Query: "nginx", ModuleID: s.otherID, UseCache: true})
	s.Require().NoError(err)
	s.True(resp.CacheHit)
}

func TestSearcherSuite(t *testing.T) {
	suite.Run(t, new(SearcherTestSuite))
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     SearchRequest
		want    SearchRequest
		wantErr error
	}{
		{
			name: "defaults",
			req:  SearchRequest{Query: " apache "},
			want: SearchRequest{Query: "apache", Limit: DefaultLimit, CacheTTL: DefaultCacheTTL},
		},
		{
			name: "limit capped",
			req:  SearchRequest{Query: "x", Limit: 500, CacheTTL: time.Second},
			want: SearchRequest{Query: "x", Limit: MaxLimit, CacheTTL: time.Second},
		},
		{
			name:    "empty",
			req:     SearchRequest{Query: ""},
			wantErr: ErrEmptyQuery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := validateRequest(&req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, req)
		})
	}
}

func TestComputeQueryHash(t *testing.T) {
	base := SearchRequest{Query: "apache", ModuleID: 1, Limit: 10}
	same := base
	same.UseCache = true
	assert.Equal(t, computeQueryHash(base), computeQueryHash(same), "cache flags are not part of the key")

	other := base
	other.ModuleID = 2
	assert.NotEqual(t, computeQueryHash(base), computeQueryHash(other))

	a := base
	a.Filters = &storage.SearchFilters{Kinds: []string{"class", "function"}}
	b := base
	b.Filters = &storage.SearchFilters{Kinds: []string{"function", "class"}}
	assert.Equal(t, computeQueryHash(a), computeQueryHash(b), "kind order does not matter")
}

// failingStorage fails every search
type failingStorage struct {
	storage.Storage
	err error
}

func (f failingStorage) SearchDeclarations(context.Context, int64, string, int, *storage.SearchFilters) ([]storage.TextResult, error) {
	return nil, f.err
}

func TestSearch_StorageError(t *testing.T) {
	boom := errors.New("database is locked")
	s := NewSearcher(failingStorage{err: boom})

	_, err := s.Search(context.Background(), SearchRequest{Query: "apache", ModuleID: 1})
	assert.ErrorIs(t, err, boom)
}

func TestNewSearcherWithCacheSize(t *testing.T) {
	_, err := NewSearcherWithCacheSize(nil, 0)
	assert.Error(t, err)
}
