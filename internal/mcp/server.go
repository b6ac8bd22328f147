package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/puppetdoc-mcp/internal/indexer"
	"github.com/dshills/puppetdoc-mcp/internal/parser"
	"github.com/dshills/puppetdoc-mcp/internal/searcher"
	"github.com/dshills/puppetdoc-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "puppetdoc-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	opts     serverOptions
}

type serverOptions struct {
	runtime      parser.Settings
	logger       *slog.Logger
	indexConfig  indexer.Config
	defaultLimit int
	version      string
}

// Option configures a Server
type Option func(*serverOptions)

// WithRuntime sets the runtime modules and sources are parsed against
func WithRuntime(s parser.Settings) Option {
	return func(o *serverOptions) {
		if s != nil {
			o.runtime = s
		}
	}
}

// WithLogger sets the server logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *serverOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithIndexerConfig sets the worker and batch settings used by index_module
func WithIndexerConfig(cfg indexer.Config) Option {
	return func(o *serverOptions) {
		o.indexConfig = cfg
	}
}

// WithDefaultLimit sets the search_docs limit used when the caller gives none
func WithDefaultLimit(limit int) Option {
	return func(o *serverOptions) {
		if limit > 0 {
			o.defaultLimit = limit
		}
	}
}

// WithVersion overrides the version reported to clients
func WithVersion(version string) Option {
	return func(o *serverOptions) {
		if version != "" {
			o.version = version
		}
	}
}

// NewServer creates a new MCP server backed by the declaration store at dbPath.
// The parent directory is created when missing; ":memory:" gives a throwaway store.
func NewServer(dbPath string, opts ...Option) (*Server, error) {
	o := serverOptions{
		runtime:      parser.DefaultRuntime(),
		logger:       slog.Default(),
		defaultLimit: searcher.DefaultLimit,
		version:      ServerVersion,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	idx := indexer.New(store,
		indexer.WithRuntime(o.runtime),
		indexer.WithLogger(o.logger))

	mcpServer := server.NewMCPServer(
		ServerName,
		o.version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		mcp:      mcpServer,
		storage:  store,
		indexer:  idx,
		searcher: searcher.NewSearcher(store),
		opts:     o,
	}

	s.registerTools()

	return s, nil
}

// Serve runs the MCP server on stdio until ctx is done or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()

	s.opts.logger.Info("Serving MCP on stdio",
		slog.String("server", ServerName),
		slog.String("version", s.opts.version),
		slog.String("runtime_version", s.opts.runtime.Version()))

	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// Close releases the declaration store
func (s *Server) Close() error {
	return s.storage.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexModuleTool(), s.handleIndexModule)
	s.mcp.AddTool(searchDocsTool(), s.handleSearchDocs)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(parseSourceTool(), s.handleParseSource)
}
