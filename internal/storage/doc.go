// Package storage provides SQLite-based persistence for indexed Puppet declarations.
//
// The storage layer manages:
//   - Module metadata (root path, metadata.json name and version, runtime version)
//   - Manifest files, their SHA-256 content hashes and parse outcomes
//   - Declarations with their docstrings and ordered parameters
//   - A full-text index over declaration names and docstrings
//
// # Database Schema
//
// Tables:
//   - modules: one row per indexed module root
//   - files: manifest paths relative to the module root, parse error or skip flag
//   - declarations: classes, defined types, functions, plans and type aliases
//   - parameters: declaration parameters in source order
//   - declarations_fts: FTS5 external-content index kept in sync by triggers
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("~/.puppetdoc/index.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.UpsertFile(ctx, file); err != nil {
//	    return err
//	}
//	for _, stmt := range result.Statements() {
//	    if err := tx.UpsertDeclaration(ctx, storage.FromStatement(stmt, file.ID)); err != nil {
//	        return err
//	    }
//	}
//	return tx.Commit()
//
// Every operation on a Tx runs inside the transaction, reads included.
//
// # Full-Text Search
//
// SearchDeclarations ranks with BM25 and normalizes scores into [0, 1), higher
// meaning a stronger match.
// Query terms are matched literally; a trailing '*' makes a prefix match.
//
//	results, err := store.SearchDeclarations(ctx, moduleID, "virtual host", 10,
//	    &storage.SearchFilters{Kinds: []string{"defined_type"}})
//
// # Build Tags
//
// The default build uses modernc.org/sqlite and needs no C compiler:
//
//	CGO_ENABLED=0 go build ./...
//
// The sqlite_cgo tag switches to github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags "sqlite_cgo,sqlite_fts5" ./...
package storage
