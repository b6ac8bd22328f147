package storage

import (
	"context"
	"time"

	"github.com/dshills/puppetdoc-mcp/pkg/types"
)

// Storage defines the interface for persisting and querying indexed Puppet documentation
type Storage interface {
	// Module operations
	CreateModule(ctx context.Context, module *Module) error
	GetModule(ctx context.Context, rootPath string) (*Module, error)
	UpdateModule(ctx context.Context, module *Module) error

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, moduleID int64, filePath string) (*File, error)
	GetFileByID(ctx context.Context, fileID int64) (*File, error)
	DeleteFile(ctx context.Context, fileID int64) error
	ListFiles(ctx context.Context, moduleID int64) ([]*File, error)

	// Declaration operations
	UpsertDeclaration(ctx context.Context, decl *Declaration) error
	GetDeclaration(ctx context.Context, declarationID int64) (*Declaration, error)
	ListDeclarationsByFile(ctx context.Context, fileID int64) ([]*Declaration, error)
	DeleteDeclarationsByFile(ctx context.Context, fileID int64) error

	// Search operations
	SearchDeclarations(ctx context.Context, moduleID int64, query string, limit int, filters *SearchFilters) ([]TextResult, error)

	// Status operations
	GetStatus(ctx context.Context, moduleID int64) (*ModuleStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Module represents an indexed Puppet module
type Module struct {
	ID                int64
	RootPath          string
	Name              string // From metadata.json, e.g. "puppetlabs-apache"
	Version           string // From metadata.json
	RuntimeVersion    string // Runtime the module was parsed against
	RuntimeSettings   string // Parse-affecting runtime setting keys, comma separated
	TotalFiles        int
	TotalDeclarations int
	IndexVersion      string
	LastIndexedAt     time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// File represents a tracked manifest file
type File struct {
	ID            int64
	ModuleID      int64
	FilePath      string // Relative to module root, slash separated
	ContentHash   [32]byte
	ModTime       time.Time
	SizeBytes     int64
	ParseError    *string // Nullable
	Skipped       bool    // Skipped by the runtime version gate
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Declaration represents a stored statement
type Declaration struct {
	ID            int64
	FileID        int64
	Kind          string
	Name          string
	Line          int
	Docstring     string
	Source        string
	CommentsStart int
	CommentsEnd   int
	ParentClass   string
	ReturnType    string
	AliasOf       string
	Parameters    []Parameter
	CreatedAt     time.Time
}

// Parameter represents a stored declaration parameter
type Parameter struct {
	ID            int64
	DeclarationID int64
	Position      int
	Name          string
	Type          string
	DefaultValue  string
	CapturesRest  bool
}

// SearchFilters contains filters for narrowing search results
type SearchFilters struct {
	Kinds        []string // Filter by statement kind
	FilePattern  string   // Glob pattern for file paths
	MinRelevance float64  // Minimum relevance score
}

// TextResult represents a result from full-text search
type TextResult struct {
	DeclarationID int64
	BM25Score     float64 // Normalized to [0, 1), higher is better
}

// ModuleStatus contains statistics about an indexed module
type ModuleStatus struct {
	Module            *Module
	FilesCount        int
	FailedFilesCount  int
	SkippedFilesCount int
	DeclarationsCount int
	CountsByKind      map[string]int
	IndexSizeMB       float64
	LastIndexedAt     time.Time
	Health            HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible bool
	FTSIndexesBuilt    bool
}

// FromStatement converts a parsed statement to a storage Declaration
func FromStatement(s types.Statement, fileID int64) *Declaration {
	rec := types.ToRecord(s)
	decl := &Declaration{
		FileID:        fileID,
		Kind:          string(rec.Kind),
		Name:          rec.Name,
		Line:          rec.Line,
		Docstring:     rec.Docstring,
		Source:        rec.Source,
		CommentsStart: rec.CommentsStart,
		CommentsEnd:   rec.CommentsEnd,
		ParentClass:   rec.ParentClass,
		ReturnType:    rec.ReturnType,
		AliasOf:       rec.AliasOf,
	}
	for i, p := range rec.Parameters {
		decl.Parameters = append(decl.Parameters, Parameter{
			Position:     i,
			Name:         p.Name,
			Type:         p.Type,
			DefaultValue: p.Value,
			CapturesRest: p.CapturesRest,
		})
	}
	return decl
}

// ToRecord converts a storage Declaration to its flat record form.
// filePath is the declaring file's path, which is not stored on the declaration.
func (d *Declaration) ToRecord(filePath string) types.StatementRecord {
	rec := types.StatementRecord{
		Kind:          types.StatementKind(d.Kind),
		Name:          d.Name,
		File:          filePath,
		Line:          d.Line,
		Docstring:     d.Docstring,
		ParentClass:   d.ParentClass,
		ReturnType:    d.ReturnType,
		AliasOf:       d.AliasOf,
		CommentsStart: d.CommentsStart,
		CommentsEnd:   d.CommentsEnd,
		Source:        d.Source,
	}
	for _, p := range d.Parameters {
		rec.Parameters = append(rec.Parameters, types.ParameterRecord{
			Name:         p.Name,
			Type:         p.Type,
			Value:        p.DefaultValue,
			CapturesRest: p.CapturesRest,
		})
	}
	return rec
}

// ToStatement converts a storage Declaration back to a statement
func (d *Declaration) ToStatement(filePath string) (types.Statement, error) {
	return d.ToRecord(filePath).ToStatement()
}
