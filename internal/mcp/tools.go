package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/puppetdoc-mcp/internal/indexer"
	"github.com/dshills/puppetdoc-mcp/internal/parser"
	"github.com/dshills/puppetdoc-mcp/internal/searcher"
	"github.com/dshills/puppetdoc-mcp/internal/storage"
	"github.com/dshills/puppetdoc-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeModuleNotFound     = -32001 // Specified path does not contain a Puppet module
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Module not indexed
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// defaultSourceFile identifies parse_source input when the caller names no file
const defaultSourceFile = "manifests/init.pp"

// maxReportedErrors caps the per-file errors returned by index_module
const maxReportedErrors = 5

// handleIndexModule handles the index_module tool invocation
func (s *Server) handleIndexModule(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requireModulePath(args)
	if err != nil {
		return nil, err
	}

	config := s.opts.indexConfig
	config.Force = getBoolDefault(args, "force_reindex", false)

	stats, err := s.indexer.IndexModule(ctx, path, &config)
	if errors.Is(err, indexer.ErrIndexInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]any{
			"path": path,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]any{
			"error": err.Error(),
		})
	}

	s.searcher.InvalidateCache(stats.ModuleID)

	response := map[string]any{
		"indexed":                true,
		"run_id":                 stats.RunID.String(),
		"files_indexed":          stats.FilesIndexed,
		"files_skipped":          stats.FilesSkipped,
		"files_failed":           stats.FilesFailed,
		"files_unchanged":        stats.FilesUnchanged,
		"files_removed":          stats.FilesRemoved,
		"declarations_extracted": stats.DeclarationsExtracted,
		"duration_ms":            stats.Duration.Milliseconds(),
	}

	if n := len(stats.ErrorMessages); n > 0 {
		if n > maxReportedErrors {
			response["errors"] = stats.ErrorMessages[:maxReportedErrors]
			response["error_count"] = n
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchDocs handles the search_docs tool invocation
func (s *Server) handleSearchDocs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requireModulePath(args)
	if err != nil {
		return nil, err
	}

	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]any{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", s.opts.defaultLimit)
	if limit < 1 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]any{
			"param": "limit",
			"value": limit,
		})
	}

	filters, err := parseFilters(args)
	if err != nil {
		return nil, err
	}

	module, err := s.storage.GetModule(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeNotIndexed, "module not indexed", map[string]any{
			"path": path,
			"hint": "Use the index_module tool to index this module.",
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load module", map[string]any{
			"error": err.Error(),
		})
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:    query,
		Limit:    limit,
		ModuleID: module.ID,
		Filters:  filters,
		UseCache: true,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]any{
			"error": err.Error(),
		})
	}

	response := map[string]any{
		"query":         query,
		"results":       resp.Results,
		"total_results": resp.TotalResults,
		"cache_hit":     resp.CacheHit,
		"duration_ms":   resp.Duration.Milliseconds(),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]any{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validateDir(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]any{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	path = filepath.Clean(path)

	module, err := s.storage.GetModule(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		response := map[string]any{
			"indexed": false,
			"path":    path,
			"message": "Module not indexed. Use index_module tool to index this module.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get module status", map[string]any{
			"error": err.Error(),
		})
	}

	status, err := s.storage.GetStatus(ctx, module.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]any{
			"error": err.Error(),
		})
	}

	response := map[string]any{
		"indexed": true,
		"module": map[string]any{
			"path":             module.RootPath,
			"name":             module.Name,
			"version":          module.Version,
			"runtime_version":  module.RuntimeVersion,
			"runtime_settings": module.RuntimeSettings,
			"last_indexed_at":  module.LastIndexedAt.Format(time.RFC3339),
		},
		"statistics": map[string]any{
			"files_count":          status.FilesCount,
			"failed_files_count":   status.FailedFilesCount,
			"skipped_files_count":  status.SkippedFilesCount,
			"declarations_count":   status.DeclarationsCount,
			"declarations_by_kind": status.CountsByKind,
			"index_size_mb":        fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]any{
			"database_accessible": status.Health.DatabaseAccessible,
			"fts_indexes_built":   status.Health.FTSIndexesBuilt,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleParseSource handles the parse_source tool invocation
func (s *Server) handleParseSource(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	source, ok := args["source"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "source parameter is required", map[string]any{
			"param":  "source",
			"reason": "missing",
		})
	}

	file := filepath.ToSlash(getStringDefault(args, "file", defaultSourceFile))
	if file == "" {
		file = defaultSourceFile
	}

	settings := s.opts.runtime
	if version := getStringDefault(args, "runtime_version", ""); version != "" {
		if _, err := semver.NewVersion(version); err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "runtime_version must be a semantic version", map[string]any{
				"param": "runtime_version",
				"value": version,
			})
		}
		var keys []string
		if settings.Includes(parser.TasksSetting) {
			keys = append(keys, parser.TasksSetting)
		}
		settings = parser.NewRuntime(version, keys...)
	}

	p := parser.New(source, file,
		parser.WithRuntime(settings),
		parser.WithLogger(s.opts.logger))
	result := p.Parse()

	response := map[string]any{
		"file":            file,
		"runtime_version": settings.Version(),
		"state":           p.State().String(),
		"skipped":         result.Skipped(),
		"statements":      types.ToRecords(result.Statements()),
	}
	if perr := result.ParseError(); perr != nil {
		response["error"] = map[string]any{
			"message": perr.Message,
			"line":    perr.Line,
			"column":  perr.Column,
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data any) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    any
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requireModulePath extracts and validates the path argument of module tools
func requireModulePath(args map[string]any) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]any{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path); err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, ErrNoManifests) {
			code = ErrorCodeModuleNotFound
		}
		return "", newMCPError(code, "invalid path", map[string]any{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	return filepath.Clean(path), nil
}

// parseFilters reads the optional filters object of search_docs
func parseFilters(args map[string]any) (*storage.SearchFilters, error) {
	raw, ok := args["filters"].(map[string]any)
	if !ok {
		return nil, nil
	}

	filters := &storage.SearchFilters{}

	if kinds, ok := raw["kinds"].([]any); ok {
		for _, k := range kinds {
			kind, _ := k.(string)
			if !types.ValidKind(types.StatementKind(kind)) {
				return nil, newMCPError(ErrorCodeInvalidParams, "invalid kind filter", map[string]any{
					"param": "filters.kinds",
					"value": k,
				})
			}
			filters.Kinds = append(filters.Kinds, kind)
		}
	}

	filters.FilePattern = getStringDefault(raw, "file_pattern", "")

	if v, ok := raw["min_relevance"].(float64); ok {
		if v < 0 || v > 1 {
			return nil, newMCPError(ErrorCodeInvalidParams, "min_relevance must be between 0 and 1", map[string]any{
				"param": "filters.min_relevance",
				"value": v,
			})
		}
		filters.MinRelevance = v
	}

	return filters, nil
}

// validateDir checks that path is an absolute, readable directory
func validateDir(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// validatePath checks that path is a module root holding at least one manifest
func validatePath(path string) error {
	if err := validateDir(path); err != nil {
		return err
	}

	for _, dir := range indexer.SourceDirs {
		found := false
		_ = filepath.WalkDir(filepath.Join(path, dir), func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && strings.HasSuffix(p, ".pp") {
				found = true
				return filepath.SkipAll
			}
			return nil
		})
		if found {
			return nil
		}
	}

	return ErrNoManifests
}

// formatJSON formats a response as indented JSON
func formatJSON(data any) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]any, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]any, key string, defaultValue int) int {
	switch val := args[key].(type) {
	case float64:
		return int(val)
	case int:
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]any, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
	ErrNoManifests     = errors.New("directory does not contain Puppet manifests")
)
