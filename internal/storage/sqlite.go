package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
	// ErrNestedTx is returned by BeginTx on a transaction
	ErrNestedTx = errors.New("nested transactions not supported")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// A single connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (or creates) the declaration store at dbPath and
// brings its schema up to date. ":memory:" gives a private in-memory store.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is implemented by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Module operations

const moduleColumns = `id, root_path, name, version, runtime_version, runtime_settings,
	total_files, total_declarations, index_version, last_indexed_at, created_at, updated_at`

func scanModule(row rowScanner) (*Module, error) {
	var m Module
	var name, version, runtimeVersion sql.NullString
	var lastIndexedAt sql.NullTime
	err := row.Scan(
		&m.ID, &m.RootPath, &name, &version, &runtimeVersion, &m.RuntimeSettings,
		&m.TotalFiles, &m.TotalDeclarations, &m.IndexVersion, &lastIndexedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Name = name.String
	m.Version = version.String
	m.RuntimeVersion = runtimeVersion.String
	if lastIndexedAt.Valid {
		m.LastIndexedAt = lastIndexedAt.Time
	}
	return &m, nil
}

func (s *SQLiteStorage) createModuleWithQuerier(ctx context.Context, q querier, module *Module) error {
	query := `
		INSERT INTO modules (root_path, name, version, runtime_version, runtime_settings,
		                     index_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(root_path) DO NOTHING
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		module.RootPath, module.Name, module.Version, module.RuntimeVersion,
		module.RuntimeSettings, module.IndexVersion, now, now)
	if err != nil {
		return fmt.Errorf("failed to create module: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("module %s: %w", module.RootPath, ErrAlreadyExists)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	module.ID = id
	module.CreatedAt = now
	module.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateModule(ctx context.Context, module *Module) error {
	return s.createModuleWithQuerier(ctx, s.querier(), module)
}

func (s *SQLiteStorage) getModuleWithQuerier(ctx context.Context, q querier, rootPath string) (*Module, error) {
	query := `SELECT ` + moduleColumns + ` FROM modules WHERE root_path = ?`
	return scanModule(q.QueryRowContext(ctx, query, rootPath))
}

func (s *SQLiteStorage) GetModule(ctx context.Context, rootPath string) (*Module, error) {
	return s.getModuleWithQuerier(ctx, s.querier(), rootPath)
}

func (s *SQLiteStorage) getModuleByIDWithQuerier(ctx context.Context, q querier, moduleID int64) (*Module, error) {
	query := `SELECT ` + moduleColumns + ` FROM modules WHERE id = ?`
	return scanModule(q.QueryRowContext(ctx, query, moduleID))
}

func (s *SQLiteStorage) updateModuleWithQuerier(ctx context.Context, q querier, module *Module) error {
	query := `
		UPDATE modules
		SET name = ?, version = ?, runtime_version = ?, runtime_settings = ?,
		    total_files = ?, total_declarations = ?, index_version = ?, last_indexed_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	var lastIndexedAt any
	if !module.LastIndexedAt.IsZero() {
		lastIndexedAt = module.LastIndexedAt
	}
	result, err := q.ExecContext(ctx, query,
		module.Name, module.Version, module.RuntimeVersion, module.RuntimeSettings,
		module.TotalFiles, module.TotalDeclarations, module.IndexVersion, lastIndexedAt, now, module.ID)
	if err != nil {
		return fmt.Errorf("failed to update module: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	module.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpdateModule(ctx context.Context, module *Module) error {
	return s.updateModuleWithQuerier(ctx, s.querier(), module)
}

// File operations

const fileColumns = `id, module_id, file_path, content_hash, mod_time, size_bytes,
	parse_error, skipped, last_indexed_at, created_at, updated_at`

func scanFile(row rowScanner) (*File, error) {
	var file File
	var hash []byte
	var parseError sql.NullString
	var modTime, lastIndexedAt sql.NullTime
	var size sql.NullInt64
	err := row.Scan(
		&file.ID, &file.ModuleID, &file.FilePath, &hash, &modTime, &size,
		&parseError, &file.Skipped, &lastIndexedAt, &file.CreatedAt, &file.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	copy(file.ContentHash[:], hash)
	if parseError.Valid {
		file.ParseError = &parseError.String
	}
	if modTime.Valid {
		file.ModTime = modTime.Time
	}
	if lastIndexedAt.Valid {
		file.LastIndexedAt = lastIndexedAt.Time
	}
	file.SizeBytes = size.Int64
	return &file, nil
}

func (s *SQLiteStorage) upsertFileWithQuerier(ctx context.Context, q querier, file *File) error {
	query := `
		INSERT INTO files (module_id, file_path, content_hash, mod_time, size_bytes, parse_error, skipped, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(module_id, file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			mod_time = excluded.mod_time,
			size_bytes = excluded.size_bytes,
			parse_error = excluded.parse_error,
			skipped = excluded.skipped,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		file.ModuleID, file.FilePath, file.ContentHash[:], file.ModTime, file.SizeBytes,
		file.ParseError, file.Skipped, now, now, now).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}

	file.LastIndexedAt = now
	file.UpdatedAt = now
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	return nil
}

func (s *SQLiteStorage) UpsertFile(ctx context.Context, file *File) error {
	return s.upsertFileWithQuerier(ctx, s.querier(), file)
}

func (s *SQLiteStorage) getFileWithQuerier(ctx context.Context, q querier, moduleID int64, filePath string) (*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE module_id = ? AND file_path = ?`
	return scanFile(q.QueryRowContext(ctx, query, moduleID, filePath))
}

func (s *SQLiteStorage) GetFile(ctx context.Context, moduleID int64, filePath string) (*File, error) {
	return s.getFileWithQuerier(ctx, s.querier(), moduleID, filePath)
}

func (s *SQLiteStorage) getFileByIDWithQuerier(ctx context.Context, q querier, fileID int64) (*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = ?`
	return scanFile(q.QueryRowContext(ctx, query, fileID))
}

func (s *SQLiteStorage) GetFileByID(ctx context.Context, fileID int64) (*File, error) {
	return s.getFileByIDWithQuerier(ctx, s.querier(), fileID)
}

// deleteFileWithQuerier removes a file; its declarations and parameters cascade
func (s *SQLiteStorage) deleteFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, fileID)
	return err
}

func (s *SQLiteStorage) DeleteFile(ctx context.Context, fileID int64) error {
	return s.deleteFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) listFilesWithQuerier(ctx context.Context, q querier, moduleID int64) ([]*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE module_id = ? ORDER BY file_path`
	rows, err := q.QueryContext(ctx, query, moduleID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]*File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *SQLiteStorage) ListFiles(ctx context.Context, moduleID int64) ([]*File, error) {
	return s.listFilesWithQuerier(ctx, s.querier(), moduleID)
}

// Declaration operations

const declarationColumns = `id, file_id, kind, name, line, docstring, source,
	comments_start, comments_end, parent_class, return_type, alias_of, created_at`

func scanDeclaration(row rowScanner) (*Declaration, error) {
	var d Declaration
	var docstring, source, parentClass, returnType, aliasOf sql.NullString
	err := row.Scan(
		&d.ID, &d.FileID, &d.Kind, &d.Name, &d.Line, &docstring, &source,
		&d.CommentsStart, &d.CommentsEnd, &parentClass, &returnType, &aliasOf, &d.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Docstring = docstring.String
	d.Source = source.String
	d.ParentClass = parentClass.String
	d.ReturnType = returnType.String
	d.AliasOf = aliasOf.String
	return &d, nil
}

// upsertDeclarationWithQuerier inserts or updates a declaration keyed by
// (file, kind, name, line) and replaces its parameter list.
func (s *SQLiteStorage) upsertDeclarationWithQuerier(ctx context.Context, q querier, decl *Declaration) error {
	query := `
		INSERT INTO declarations (file_id, kind, name, line, docstring, source,
			comments_start, comments_end, parent_class, return_type, alias_of, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id, kind, name, line) DO UPDATE SET
			docstring = excluded.docstring,
			source = excluded.source,
			comments_start = excluded.comments_start,
			comments_end = excluded.comments_end,
			parent_class = excluded.parent_class,
			return_type = excluded.return_type,
			alias_of = excluded.alias_of
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		decl.FileID, decl.Kind, decl.Name, decl.Line, decl.Docstring, decl.Source,
		decl.CommentsStart, decl.CommentsEnd, decl.ParentClass, decl.ReturnType,
		decl.AliasOf, now).Scan(&decl.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert declaration %s: %w", decl.Name, err)
	}
	if decl.CreatedAt.IsZero() {
		decl.CreatedAt = now
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM parameters WHERE declaration_id = ?`, decl.ID); err != nil {
		return fmt.Errorf("failed to clear parameters of %s: %w", decl.Name, err)
	}

	for i := range decl.Parameters {
		p := &decl.Parameters[i]
		p.DeclarationID = decl.ID
		p.Position = i
		err := q.QueryRowContext(ctx, `
			INSERT INTO parameters (declaration_id, position, name, type, default_value, captures_rest)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id
		`, p.DeclarationID, p.Position, p.Name, p.Type, p.DefaultValue, p.CapturesRest).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("failed to insert parameter %s of %s: %w", p.Name, decl.Name, err)
		}
	}

	return nil
}

func (s *SQLiteStorage) UpsertDeclaration(ctx context.Context, decl *Declaration) error {
	return s.upsertDeclarationWithQuerier(ctx, s.querier(), decl)
}

func (s *SQLiteStorage) loadParametersWithQuerier(ctx context.Context, q querier, decl *Declaration) error {
	rows, err := q.QueryContext(ctx, `
		SELECT id, declaration_id, position, name, type, default_value, captures_rest
		FROM parameters
		WHERE declaration_id = ?
		ORDER BY position
	`, decl.ID)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	decl.Parameters = nil
	for rows.Next() {
		var p Parameter
		var typ, value sql.NullString
		if err := rows.Scan(&p.ID, &p.DeclarationID, &p.Position, &p.Name, &typ, &value, &p.CapturesRest); err != nil {
			return err
		}
		p.Type = typ.String
		p.DefaultValue = value.String
		decl.Parameters = append(decl.Parameters, p)
	}
	return rows.Err()
}

func (s *SQLiteStorage) getDeclarationWithQuerier(ctx context.Context, q querier, declarationID int64) (*Declaration, error) {
	query := `SELECT ` + declarationColumns + ` FROM declarations WHERE id = ?`
	decl, err := scanDeclaration(q.QueryRowContext(ctx, query, declarationID))
	if err != nil {
		return nil, err
	}
	if err := s.loadParametersWithQuerier(ctx, q, decl); err != nil {
		return nil, err
	}
	return decl, nil
}

func (s *SQLiteStorage) GetDeclaration(ctx context.Context, declarationID int64) (*Declaration, error) {
	return s.getDeclarationWithQuerier(ctx, s.querier(), declarationID)
}

// listDeclarationsByFileWithQuerier returns a file's declarations in source order
func (s *SQLiteStorage) listDeclarationsByFileWithQuerier(ctx context.Context, q querier, fileID int64) ([]*Declaration, error) {
	query := `SELECT ` + declarationColumns + ` FROM declarations WHERE file_id = ? ORDER BY line, id`
	rows, err := q.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, err
	}

	decls := make([]*Declaration, 0)
	for rows.Next() {
		decl, err := scanDeclaration(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		decls = append(decls, decl)
	}
	// Close before loading parameters; the pool holds a single connection
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, decl := range decls {
		if err := s.loadParametersWithQuerier(ctx, q, decl); err != nil {
			return nil, err
		}
	}
	return decls, nil
}

func (s *SQLiteStorage) ListDeclarationsByFile(ctx context.Context, fileID int64) ([]*Declaration, error) {
	return s.listDeclarationsByFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) deleteDeclarationsByFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM declarations WHERE file_id = ?`, fileID)
	return err
}

func (s *SQLiteStorage) DeleteDeclarationsByFile(ctx context.Context, fileID int64) error {
	return s.deleteDeclarationsByFileWithQuerier(ctx, s.querier(), fileID)
}

// Search operations

func (s *SQLiteStorage) SearchDeclarations(ctx context.Context, moduleID int64, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return searchDeclarations(ctx, s.querier(), moduleID, query, limit, filters)
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier, moduleID int64) (*ModuleStatus, error) {
	module, err := s.getModuleByIDWithQuerier(ctx, q, moduleID)
	if err != nil {
		return nil, err
	}

	status := &ModuleStatus{
		Module:        module,
		LastIndexedAt: module.LastIndexedAt,
		CountsByKind:  make(map[string]int),
	}

	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN parse_error IS NOT NULL THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN skipped THEN 1 ELSE 0 END), 0)
		FROM files WHERE module_id = ?
	`, moduleID).Scan(&status.FilesCount, &status.FailedFilesCount, &status.SkippedFilesCount)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT d.kind, COUNT(*) FROM declarations d
		JOIN files f ON d.file_id = f.id
		WHERE f.module_id = ?
		GROUP BY d.kind
	`, moduleID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		status.CountsByKind[kind] = count
		status.DeclarationsCount += count
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	var ftsTable string
	ftsErr := q.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='declarations_fts'").Scan(&ftsTable)

	status.Health = HealthStatus{
		DatabaseAccessible: true,
		FTSIndexesBuilt:    ftsErr == nil,
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context, moduleID int64) (*ModuleStatus, error) {
	return s.getStatusWithQuerier(ctx, s.querier(), moduleID)
}

// sqliteTx wraps a SQL transaction. Every operation runs on the transaction
// itself; the pool has a single connection, so reads through the DB would block.
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error   { return t.tx.Commit() }
func (t *sqliteTx) Rollback() error { return t.tx.Rollback() }

// Close rolls back the transaction if it is still open
func (t *sqliteTx) Close() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func (t *sqliteTx) BeginTx(context.Context) (Tx, error) {
	return nil, ErrNestedTx
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (t *sqliteTx) CreateModule(ctx context.Context, module *Module) error {
	return t.storage.createModuleWithQuerier(ctx, t.querier(), module)
}

func (t *sqliteTx) GetModule(ctx context.Context, rootPath string) (*Module, error) {
	return t.storage.getModuleWithQuerier(ctx, t.querier(), rootPath)
}

func (t *sqliteTx) UpdateModule(ctx context.Context, module *Module) error {
	return t.storage.updateModuleWithQuerier(ctx, t.querier(), module)
}

func (t *sqliteTx) UpsertFile(ctx context.Context, file *File) error {
	return t.storage.upsertFileWithQuerier(ctx, t.querier(), file)
}

func (t *sqliteTx) GetFile(ctx context.Context, moduleID int64, filePath string) (*File, error) {
	return t.storage.getFileWithQuerier(ctx, t.querier(), moduleID, filePath)
}

func (t *sqliteTx) GetFileByID(ctx context.Context, fileID int64) (*File, error) {
	return t.storage.getFileByIDWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) DeleteFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) ListFiles(ctx context.Context, moduleID int64) ([]*File, error) {
	return t.storage.listFilesWithQuerier(ctx, t.querier(), moduleID)
}

func (t *sqliteTx) UpsertDeclaration(ctx context.Context, decl *Declaration) error {
	return t.storage.upsertDeclarationWithQuerier(ctx, t.querier(), decl)
}

func (t *sqliteTx) GetDeclaration(ctx context.Context, declarationID int64) (*Declaration, error) {
	return t.storage.getDeclarationWithQuerier(ctx, t.querier(), declarationID)
}

func (t *sqliteTx) ListDeclarationsByFile(ctx context.Context, fileID int64) ([]*Declaration, error) {
	return t.storage.listDeclarationsByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) DeleteDeclarationsByFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteDeclarationsByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) SearchDeclarations(ctx context.Context, moduleID int64, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return searchDeclarations(ctx, t.querier(), moduleID, query, limit, filters)
}

func (t *sqliteTx) GetStatus(ctx context.Context, moduleID int64) (*ModuleStatus, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier(), moduleID)
}
