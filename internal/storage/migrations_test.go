package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRawDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := openDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestApplyMigrations(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, db))

	v, err := currentSchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())

	// Re-applying is a no-op
	require.NoError(t, ApplyMigrations(ctx, db))

	for _, table := range []string{"modules", "files", "declarations", "parameters", "declarations_fts"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE name = ?", table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestApplyMigrations_UpgradesExistingModules(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	// A database created before runtime settings were tracked
	require.NoError(t, runInTx(ctx, db, migrationV1Up,
		"INSERT INTO schema_version (version) VALUES (?)", "1.0.0"))
	_, err := db.ExecContext(ctx,
		"INSERT INTO modules (root_path, runtime_version, index_version) VALUES ('/m', '8.10.0', '1.0.0')")
	require.NoError(t, err)

	require.NoError(t, ApplyMigrations(ctx, db))

	var settings string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT runtime_settings FROM modules WHERE root_path = '/m'").Scan(&settings))
	assert.Empty(t, settings)
}

func TestRollbackMigration(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	assert.Error(t, RollbackMigration(ctx, db), "nothing applied yet")

	require.NoError(t, ApplyMigrations(ctx, db))

	// Migrations roll back one at a time, newest first
	require.NoError(t, RollbackMigration(ctx, db))
	v, err := currentSchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())
	_, err = db.ExecContext(ctx, "SELECT runtime_settings FROM modules")
	assert.Error(t, err, "column dropped")

	require.NoError(t, RollbackMigration(ctx, db))
	v, err = currentSchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", v.String())

	var name string
	err = db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE name = 'declarations'").Scan(&name)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
