package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/puppetdoc-mcp/internal/parser"
	"github.com/dshills/puppetdoc-mcp/internal/storage"
	"github.com/dshills/puppetdoc-mcp/pkg/types"
)

// ErrIndexInProgress is returned when the same module root is already being indexed
var ErrIndexInProgress = errors.New("indexing already in progress")

// SourceDirs are the module directories that hold Puppet manifests
var SourceDirs = []string{"manifests", "functions", "types", "plans"}

// excludedDirs are never descended into
var excludedDirs = map[string]bool{
	"spec":   true,
	"vendor": true,
	"pkg":    true,
}

const defaultBatchSize = 20

// Indexer coordinates the indexing pipeline: discover -> parse -> store
type Indexer struct {
	storage  storage.Storage
	settings parser.Settings
	logger   *slog.Logger
	locks    RootLocks
}

// Option configures an Indexer
type Option func(*Indexer)

// WithRuntime sets the runtime every file is parsed against
func WithRuntime(s parser.Settings) Option {
	return func(idx *Indexer) {
		if s != nil {
			idx.settings = s
		}
	}
}

// WithLogger sets the logger for the indexer and the parsers it creates
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Indexer) {
		if logger != nil {
			idx.logger = logger
		}
	}
}

// Config contains configuration for one indexing run
type Config struct {
	Workers   int  // Number of concurrent parsers (default: runtime.NumCPU())
	BatchSize int  // Number of files to commit per transaction (default: 20)
	Force     bool // Re-parse files even when their content is unchanged
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	RunID                 uuid.UUID
	ModuleID              int64
	FilesIndexed          int
	FilesSkipped          int // Skipped by the runtime version gate
	FilesFailed           int
	FilesUnchanged        int
	FilesRemoved          int
	DeclarationsExtracted int
	Duration              time.Duration
	ErrorMessages         []string
}

// New creates a new Indexer instance
func New(store storage.Storage, opts ...Option) *Indexer {
	idx := &Indexer{
		storage:  store,
		settings: parser.DefaultRuntime(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Runtime returns the runtime settings files are parsed against
func (idx *Indexer) Runtime() parser.Settings {
	return idx.settings
}

// Locks returns the per-root locks held while a module is being indexed
func (idx *Indexer) Locks() *RootLocks {
	return &idx.locks
}

// fileOutcome is the parse phase result for one discovered file
type fileOutcome struct {
	relPath   string
	hash      [32]byte
	modTime   time.Time
	size      int64
	unchanged bool
	readErr   error
	result    *types.ParseResult
}

// IndexModule indexes every manifest of the Puppet module at rootPath
func (idx *Indexer) IndexModule(ctx context.Context, rootPath string, config *Config) (*Statistics, error) {
	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("invalid module path: %w", err)
	}

	if !idx.locks.TryAcquire(absRoot) {
		return nil, fmt.Errorf("%s: %w", absRoot, ErrIndexInProgress)
	}
	defer idx.locks.Release(absRoot)

	cfg := normalizeConfig(config)
	startTime := time.Now()
	stats := &Statistics{
		RunID:         uuid.New(),
		ErrorMessages: make([]string, 0),
	}
	logger := idx.logger.With(slog.String("run_id", stats.RunID.String()), slog.String("module", absRoot))

	module, err := idx.getOrCreateModule(ctx, absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create module: %w", err)
	}
	stats.ModuleID = module.ID

	files, err := discoverFiles(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	known, err := idx.knownFiles(ctx, module.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexed files: %w", err)
	}

	// A different runtime version or setting can change gate and grammar outcomes
	// for unchanged files
	force := cfg.Force ||
		module.RuntimeVersion != idx.settings.Version() ||
		module.RuntimeSettings != parser.SettingsFingerprint(idx.settings)

	outcomes, err := idx.parseFiles(ctx, absRoot, files, known, force, cfg.Workers, logger)
	if err != nil {
		return nil, err
	}

	if err := idx.storeOutcomes(ctx, module, outcomes, cfg.BatchSize, stats); err != nil {
		return nil, err
	}

	removed, err := idx.pruneFiles(ctx, files, known)
	if err != nil {
		return nil, fmt.Errorf("failed to prune removed files: %w", err)
	}
	stats.FilesRemoved = removed

	if err := idx.updateModuleStats(ctx, module); err != nil {
		return nil, fmt.Errorf("failed to update module stats: %w", err)
	}

	stats.Duration = time.Since(startTime)
	logger.Info("Indexed module",
		slog.Int("indexed", stats.FilesIndexed),
		slog.Int("skipped", stats.FilesSkipped),
		slog.Int("failed", stats.FilesFailed),
		slog.Int("unchanged", stats.FilesUnchanged),
		slog.Int("removed", stats.FilesRemoved),
		slog.Int("declarations", stats.DeclarationsExtracted),
		slog.Duration("duration", stats.Duration))

	return stats, nil
}

func normalizeConfig(config *Config) Config {
	cfg := Config{}
	if config != nil {
		cfg = *config
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return cfg
}

// moduleMetadata is the subset of metadata.json the index records
type moduleMetadata struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func readMetadata(rootPath string) (*moduleMetadata, error) {
	content, err := os.ReadFile(filepath.Join(rootPath, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta moduleMetadata
	if err := json.Unmarshal(content, &meta); err != nil {
		return nil, fmt.Errorf("invalid metadata.json: %w", err)
	}
	return &meta, nil
}

// getOrCreateModule retrieves an existing module or creates a new one, refreshing
// its metadata.json name and version either way
func (idx *Indexer) getOrCreateModule(ctx context.Context, rootPath string) (*storage.Module, error) {
	meta, metaErr := readMetadata(rootPath)
	if metaErr != nil && !errors.Is(metaErr, fs.ErrNotExist) {
		idx.logger.Warn("Ignoring module metadata", slog.String("module", rootPath), slog.Any("error", metaErr))
	}

	module, err := idx.storage.GetModule(ctx, rootPath)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if module == nil {
		module = &storage.Module{
			RootPath:     rootPath,
			IndexVersion: storage.CurrentSchemaVersion,
		}
		if meta != nil {
			module.Name = meta.Name
			module.Version = meta.Version
		}
		if err := idx.storage.CreateModule(ctx, module); err != nil {
			return nil, err
		}
		return module, nil
	}

	if meta != nil {
		module.Name = meta.Name
		module.Version = meta.Version
	}
	return module, nil
}

// discoverFiles returns the slash-separated paths of all .pp files under the
// module's source directories, relative to rootPath and sorted
func discoverFiles(rootPath string) ([]string, error) {
	var files []string

	for _, dir := range SourceDirs {
		base := filepath.Join(rootPath, dir)
		info, err := os.Stat(base)
		if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
			continue
		}
		if err != nil {
			return nil, err
		}

		err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				if path != base && (strings.HasPrefix(d.Name(), ".") || excludedDirs[d.Name()]) {
					return filepath.SkipDir
				}
				return nil
			}

			if !strings.HasSuffix(d.Name(), ".pp") || strings.HasPrefix(d.Name(), ".") {
				return nil
			}

			rel, err := filepath.Rel(rootPath, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	slices.Sort(files)
	return files, nil
}

func (idx *Indexer) knownFiles(ctx context.Context, moduleID int64) (map[string]*storage.File, error) {
	files, err := idx.storage.ListFiles(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]*storage.File, len(files))
	for _, f := range files {
		known[f.FilePath] = f
	}
	return known, nil
}

// parseFiles reads, hashes and parses files concurrently. Each goroutine owns its
// Parser; outcomes keep the discovery order.
func (idx *Indexer) parseFiles(ctx context.Context, rootPath string, files []string,
	known map[string]*storage.File, force bool, workers int, logger *slog.Logger) ([]fileOutcome, error) {

	outcomes := make([]fileOutcome, len(files))
	semaphore := make(chan struct{}, workers)
	g, gctx := errgroup.WithContext(ctx)

	for i, relPath := range files {
		select {
		case <-gctx.Done():
			_ = g.Wait()
			return nil, ctx.Err()
		case semaphore <- struct{}{}:
		}

		g.Go(func() error {
			defer func() { <-semaphore }()
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = idx.parseFile(rootPath, relPath, known[relPath], force, logger)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (idx *Indexer) parseFile(rootPath, relPath string, existing *storage.File, force bool, logger *slog.Logger) fileOutcome {
	out := fileOutcome{relPath: relPath}

	path := filepath.Join(rootPath, filepath.FromSlash(relPath))
	content, err := os.ReadFile(path)
	if err != nil {
		out.readErr = err
		return out
	}
	if info, err := os.Stat(path); err == nil {
		out.modTime = info.ModTime()
	}
	out.size = int64(len(content))
	out.hash = sha256.Sum256(content)

	if !force && existing != nil && existing.ContentHash == out.hash {
		out.unchanged = true
		return out
	}

	p := parser.New(string(content), relPath,
		parser.WithRuntime(idx.settings),
		parser.WithLogger(logger))
	out.result = p.Parse()
	return out
}

// storeOutcomes persists parse outcomes, one transaction per batch
func (idx *Indexer) storeOutcomes(ctx context.Context, module *storage.Module, outcomes []fileOutcome,
	batchSize int, stats *Statistics) error {

	for start := 0; start < len(outcomes); start += batchSize {
		end := min(start+batchSize, len(outcomes))
		if err := idx.storeBatch(ctx, module, outcomes[start:end], stats); err != nil {
			return err
		}
	}
	return nil
}

func (idx *Indexer) storeBatch(ctx context.Context, module *storage.Module, batch []fileOutcome, stats *Statistics) error {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var counts Statistics
	for _, out := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch {
		case out.readErr != nil:
			counts.FilesFailed++
			counts.ErrorMessages = append(counts.ErrorMessages, fmt.Sprintf("%s: %v", out.relPath, out.readErr))
			continue
		case out.unchanged:
			counts.FilesUnchanged++
			continue
		}

		n, err := storeFile(ctx, tx, module.ID, out)
		if err != nil {
			return fmt.Errorf("failed to store %s: %w", out.relPath, err)
		}

		result := out.result
		switch {
		case result.Failed():
			counts.FilesFailed++
			counts.ErrorMessages = append(counts.ErrorMessages, result.Err().Error())
		case result.Skipped():
			counts.FilesSkipped++
		default:
			counts.FilesIndexed++
			counts.DeclarationsExtracted += n
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	stats.FilesIndexed += counts.FilesIndexed
	stats.FilesSkipped += counts.FilesSkipped
	stats.FilesFailed += counts.FilesFailed
	stats.FilesUnchanged += counts.FilesUnchanged
	stats.DeclarationsExtracted += counts.DeclarationsExtracted
	stats.ErrorMessages = append(stats.ErrorMessages, counts.ErrorMessages...)
	return nil
}

// storeFile records a parsed file and replaces its declarations
func storeFile(ctx context.Context, store storage.Storage, moduleID int64, out fileOutcome) (int, error) {
	file := &storage.File{
		ModuleID:    moduleID,
		FilePath:    out.relPath,
		ContentHash: out.hash,
		ModTime:     out.modTime,
		SizeBytes:   out.size,
		Skipped:     out.result.Skipped(),
	}
	if perr := out.result.ParseError(); perr != nil {
		msg := perr.Message
		file.ParseError = &msg
	}

	if err := store.UpsertFile(ctx, file); err != nil {
		return 0, err
	}
	if err := store.DeleteDeclarationsByFile(ctx, file.ID); err != nil {
		return 0, fmt.Errorf("failed to delete old declarations: %w", err)
	}

	statements := out.result.Statements()
	for _, stmt := range statements {
		if err := store.UpsertDeclaration(ctx, storage.FromStatement(stmt, file.ID)); err != nil {
			return 0, err
		}
	}
	return len(statements), nil
}

// pruneFiles deletes indexed files that no longer exist in the module
func (idx *Indexer) pruneFiles(ctx context.Context, discovered []string, known map[string]*storage.File) (int, error) {
	present := make(map[string]bool, len(discovered))
	for _, f := range discovered {
		present[f] = true
	}

	var stale []*storage.File
	for path, f := range known {
		if !present[path] {
			stale = append(stale, f)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, f := range stale {
		if err := tx.DeleteFile(ctx, f.ID); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// updateModuleStats records file and declaration totals on the module
func (idx *Indexer) updateModuleStats(ctx context.Context, module *storage.Module) error {
	status, err := idx.storage.GetStatus(ctx, module.ID)
	if err != nil {
		return err
	}

	module.TotalFiles = status.FilesCount
	module.TotalDeclarations = status.DeclarationsCount
	module.RuntimeVersion = idx.settings.Version()
	module.RuntimeSettings = parser.SettingsFingerprint(idx.settings)
	module.LastIndexedAt = time.Now()

	return idx.storage.UpdateModule(ctx, module)
}
