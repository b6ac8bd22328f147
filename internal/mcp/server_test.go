package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/puppetdoc-mcp/internal/logging"
	"github.com/dshills/puppetdoc-mcp/internal/parser"
	"github.com/dshills/puppetdoc-mcp/pkg/types"
)

const testInitManifest = `# Installs and configures the ntp service.
#
# @param servers Upstream time servers
class ntp (
  Array[String] $servers = [],
) { }
`

const testConfigManifest = `# Writes ntp.conf.
define ntp::config (
  String $path,
) { }
`

const testPlanManifest = `# Restarts ntp on every target.
plan ntp::restart (TargetSpec $targets) { }
`

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "data", "index.db")
	s, err := NewServer(dbPath, append([]Option{WithLogger(logging.Discard())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func newTestModule(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	files := map[string]string{
		"metadata.json":       `{"name": "puppetlabs-ntp", "version": "10.1.0"}`,
		"manifests/init.pp":   testInitManifest,
		"manifests/config.pp": testConfigManifest,
		"plans/restart.pp":    testPlanManifest,
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func callTool(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

// decodeResult unmarshals the JSON text content of a tool result
func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	var text string
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		text = c.Text
	case *mcp.TextContent:
		text = c.Text
	default:
		t.Fatalf("unexpected content type %T", result.Content[0])
	}

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out
}

func requireMCPError(t *testing.T, err error, code int) {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected *MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
}

func TestNewServer(t *testing.T) {
	t.Run("empty path is rejected", func(t *testing.T) {
		_, err := NewServer("")
		assert.Error(t, err)
	})

	t.Run("creates database directory", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "nested", "dir", "index.db")
		s, err := NewServer(dbPath, WithLogger(logging.Discard()))
		require.NoError(t, err)
		defer s.Close()

		assert.DirExists(t, filepath.Dir(dbPath))
		assert.NotNil(t, s.mcp)
		assert.NotNil(t, s.indexer)
		assert.NotNil(t, s.searcher)
	})

	t.Run("in-memory store", func(t *testing.T) {
		s, err := NewServer(":memory:", WithLogger(logging.Discard()))
		require.NoError(t, err)
		defer s.Close()
	})

	t.Run("options", func(t *testing.T) {
		s := newTestServer(t,
			WithRuntime(parser.NewRuntime("6.0.0")),
			WithDefaultLimit(25),
			WithDefaultLimit(0),
			WithVersion("2.0.0"))

		assert.Equal(t, "6.0.0", s.opts.runtime.Version())
		assert.Equal(t, "6.0.0", s.indexer.Runtime().Version())
		assert.Equal(t, 25, s.opts.defaultLimit)
		assert.Equal(t, "2.0.0", s.opts.version)
	})
}

func TestHandleIndexModule(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	root := newTestModule(t)

	result, err := s.handleIndexModule(ctx, callTool(map[string]any{"path": root}))
	require.NoError(t, err)

	out := decodeResult(t, result)
	assert.Equal(t, true, out["indexed"])
	assert.NotEmpty(t, out["run_id"])
	assert.EqualValues(t, 3, out["files_indexed"])
	assert.EqualValues(t, 3, out["declarations_extracted"])
	assert.NotContains(t, out, "errors")

	// Unchanged files are not re-parsed
	result, err = s.handleIndexModule(ctx, callTool(map[string]any{"path": root}))
	require.NoError(t, err)
	out = decodeResult(t, result)
	assert.EqualValues(t, 0, out["files_indexed"])
	assert.EqualValues(t, 3, out["files_unchanged"])

	result, err = s.handleIndexModule(ctx, callTool(map[string]any{"path": root, "force_reindex": true}))
	require.NoError(t, err)
	out = decodeResult(t, result)
	assert.EqualValues(t, 3, out["files_indexed"])
}

func TestHandleIndexModule_Errors(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	_, err := s.handleIndexModule(ctx, callTool(map[string]any{}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleIndexModule(ctx, callTool(map[string]any{"path": "relative/module"}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleIndexModule(ctx, callTool(map[string]any{"path": t.TempDir()}))
	requireMCPError(t, err, ErrorCodeModuleNotFound)

	var req mcp.CallToolRequest
	req.Params.Arguments = "not a map"
	_, err = s.handleIndexModule(ctx, req)
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestHandleIndexModule_InProgress(t *testing.T) {
	s := newTestServer(t)
	root := newTestModule(t)

	require.True(t, s.indexer.Locks().TryAcquire(filepath.Clean(root)))
	defer s.indexer.Locks().Release(filepath.Clean(root))

	_, err := s.handleIndexModule(context.Background(), callTool(map[string]any{"path": root}))
	requireMCPError(t, err, ErrorCodeIndexingInProgress)
}

func TestHandleSearchDocs(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	root := newTestModule(t)

	_, err := s.handleIndexModule(ctx, callTool(map[string]any{"path": root}))
	require.NoError(t, err)

	tests := []struct {
		name      string
		args      map[string]any
		wantNames []string
	}{
		{
			name:      "docstring keyword",
			args:      map[string]any{"query": "ntp.conf"},
			wantNames: []string{"ntp::config"},
		},
		{
			name:      "prefix query",
			args:      map[string]any{"query": "restart*"},
			wantNames: []string{"ntp::restart"},
		},
		{
			name: "kind filter",
			args: map[string]any{
				"query":   "ntp",
				"filters": map[string]any{"kinds": []any{"class"}},
			},
			wantNames: []string{"ntp"},
		},
		{
			name: "file pattern",
			args: map[string]any{
				"query":   "ntp",
				"filters": map[string]any{"file_pattern": "plans/*"},
			},
			wantNames: []string{"ntp::restart"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]any{"path": root}
			for k, v := range tt.args {
				args[k] = v
			}

			result, err := s.handleSearchDocs(ctx, callTool(args))
			require.NoError(t, err)

			out := decodeResult(t, result)
			results, ok := out["results"].([]any)
			require.True(t, ok)

			var names []string
			for _, r := range results {
				stmt := r.(map[string]any)["statement"].(map[string]any)
				names = append(names, stmt["name"].(string))
			}
			assert.ElementsMatch(t, tt.wantNames, names)
		})
	}
}

func TestHandleSearchDocs_Cache(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	root := newTestModule(t)

	_, err := s.handleIndexModule(ctx, callTool(map[string]any{"path": root}))
	require.NoError(t, err)

	args := map[string]any{"path": root, "query": "ntp"}

	result, err := s.handleSearchDocs(ctx, callTool(args))
	require.NoError(t, err)
	assert.Equal(t, false, decodeResult(t, result)["cache_hit"])

	result, err = s.handleSearchDocs(ctx, callTool(args))
	require.NoError(t, err)
	assert.Equal(t, true, decodeResult(t, result)["cache_hit"])

	// Re-indexing drops the module's cached responses
	_, err = s.handleIndexModule(ctx, callTool(map[string]any{"path": root}))
	require.NoError(t, err)
	assert.Equal(t, 0, s.searcher.CacheLen())
}

func TestHandleSearchDocs_Errors(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	root := newTestModule(t)

	tests := []struct {
		name string
		args map[string]any
		code int
	}{
		{"missing query", map[string]any{"path": root}, ErrorCodeEmptyQuery},
		{"blank query", map[string]any{"path": root, "query": "   "}, ErrorCodeEmptyQuery},
		{"limit too large", map[string]any{"path": root, "query": "ntp", "limit": float64(500)}, ErrorCodeInvalidParams},
		{"limit zero", map[string]any{"path": root, "query": "ntp", "limit": float64(0)}, ErrorCodeInvalidParams},
		{"bad kind", map[string]any{"path": root, "query": "ntp", "filters": map[string]any{"kinds": []any{"node"}}}, ErrorCodeInvalidParams},
		{"not indexed", map[string]any{"path": root, "query": "ntp"}, ErrorCodeNotIndexed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleSearchDocs(ctx, callTool(tt.args))
			requireMCPError(t, err, tt.code)
		})
	}
}

func TestHandleGetStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	root := newTestModule(t)

	result, err := s.handleGetStatus(ctx, callTool(map[string]any{"path": root}))
	require.NoError(t, err)
	out := decodeResult(t, result)
	assert.Equal(t, false, out["indexed"])

	_, err = s.handleIndexModule(ctx, callTool(map[string]any{"path": root}))
	require.NoError(t, err)

	result, err = s.handleGetStatus(ctx, callTool(map[string]any{"path": root}))
	require.NoError(t, err)
	out = decodeResult(t, result)
	assert.Equal(t, true, out["indexed"])

	module := out["module"].(map[string]any)
	assert.Equal(t, "puppetlabs-ntp", module["name"])
	assert.Equal(t, "10.1.0", module["version"])
	assert.Equal(t, parser.DefaultRuntimeVersion, module["runtime_version"])
	assert.Equal(t, parser.TasksSetting, module["runtime_settings"])

	stats := out["statistics"].(map[string]any)
	assert.EqualValues(t, 3, stats["files_count"])
	assert.EqualValues(t, 3, stats["declarations_count"])
	byKind := stats["declarations_by_kind"].(map[string]any)
	assert.EqualValues(t, 1, byKind["class"])
	assert.EqualValues(t, 1, byKind["defined_type"])
	assert.EqualValues(t, 1, byKind["plan"])

	health := out["health"].(map[string]any)
	assert.Equal(t, true, health["database_accessible"])
	assert.Equal(t, true, health["fts_indexes_built"])
}

func TestHandleGetStatus_Errors(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	_, err := s.handleGetStatus(ctx, callTool(map[string]any{}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleGetStatus(ctx, callTool(map[string]any{"path": filepath.Join(t.TempDir(), "missing")}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestHandleParseSource(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	t.Run("manifest", func(t *testing.T) {
		result, err := s.handleParseSource(ctx, callTool(map[string]any{"source": testInitManifest}))
		require.NoError(t, err)

		out := decodeResult(t, result)
		assert.Equal(t, defaultSourceFile, out["file"])
		assert.Equal(t, "parsed", out["state"])
		assert.Equal(t, false, out["skipped"])

		stmts := out["statements"].([]any)
		require.Len(t, stmts, 1)
		stmt := stmts[0].(map[string]any)
		assert.Equal(t, "ntp", stmt["name"])
		assert.Equal(t, string(types.KindClass), stmt["kind"])
		assert.Equal(t, "Installs and configures the ntp service.\n\n@param servers Upstream time servers", stmt["docstring"])
	})

	t.Run("plan skipped on old runtime", func(t *testing.T) {
		result, err := s.handleParseSource(ctx, callTool(map[string]any{
			"source":          testPlanManifest,
			"file":            "plans/restart.pp",
			"runtime_version": "4.10.12",
		}))
		require.NoError(t, err)

		out := decodeResult(t, result)
		assert.Equal(t, true, out["skipped"])
		assert.Equal(t, "4.10.12", out["runtime_version"])
		assert.Empty(t, out["statements"])
	})

	t.Run("plan on current runtime", func(t *testing.T) {
		result, err := s.handleParseSource(ctx, callTool(map[string]any{
			"source": testPlanManifest,
			"file":   "plans/restart.pp",
		}))
		require.NoError(t, err)

		stmts := decodeResult(t, result)["statements"].([]any)
		require.Len(t, stmts, 1)
		assert.Equal(t, string(types.KindPlan), stmts[0].(map[string]any)["kind"])
	})

	t.Run("syntax error", func(t *testing.T) {
		result, err := s.handleParseSource(ctx, callTool(map[string]any{"source": "class broken {"}))
		require.NoError(t, err)

		out := decodeResult(t, result)
		assert.Equal(t, "failed", out["state"])
		require.Contains(t, out, "error")
		assert.NotEmpty(t, out["error"].(map[string]any)["message"])
	})

	t.Run("invalid arguments", func(t *testing.T) {
		_, err := s.handleParseSource(ctx, callTool(map[string]any{}))
		requireMCPError(t, err, ErrorCodeInvalidParams)

		_, err = s.handleParseSource(ctx, callTool(map[string]any{"source": "", "runtime_version": "five"}))
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})
}

func TestValidatePath(t *testing.T) {
	root := newTestModule(t)
	assert.NoError(t, validatePath(root))

	empty := t.TempDir()
	assert.ErrorIs(t, validatePath(empty), ErrNoManifests)
	assert.ErrorIs(t, validatePath(""), ErrPathRequired)
	assert.ErrorIs(t, validatePath("modules/ntp"), ErrPathNotAbsolute)
	assert.ErrorIs(t, validatePath(filepath.Join(empty, "missing")), ErrPathNotFound)
	assert.ErrorIs(t, validatePath(filepath.Join(root, "metadata.json")), ErrNotDirectory)
}

func TestParseFilters(t *testing.T) {
	filters, err := parseFilters(map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, filters)

	filters, err = parseFilters(map[string]any{"filters": map[string]any{
		"kinds":         []any{"class", "function"},
		"file_pattern":  "manifests/*",
		"min_relevance": 0.5,
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"class", "function"}, filters.Kinds)
	assert.Equal(t, "manifests/*", filters.FilePattern)
	assert.InDelta(t, 0.5, filters.MinRelevance, 1e-9)

	_, err = parseFilters(map[string]any{"filters": map[string]any{"min_relevance": 1.5}})
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestMCPError(t *testing.T) {
	err := newMCPError(ErrorCodeNotIndexed, "module not indexed", nil)
	assert.Equal(t, "MCP error -32003: module not indexed", err.Error())
}
