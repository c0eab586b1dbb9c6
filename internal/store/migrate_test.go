package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMigration(t *testing.T, dir, name, sql string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644))
}

func TestLoadMigrationsParsesAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "002_add_indexes.sql", "CREATE INDEX idx ON t(c);")
	writeMigration(t, dir, "001_initial_schema.sql", "CREATE TABLE t (c INT);")
	writeMigration(t, dir, "001_initial_schema_down.sql", "DROP TABLE t;")
	writeMigration(t, dir, "notes.txt", "not a migration")

	migrations, err := NewMigrator(nil, dir).loadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "initial schema", migrations[0].Description)
	assert.Equal(t, "001_initial_schema.sql", migrations[0].Filename)
	assert.Equal(t, "CREATE TABLE t (c INT);", migrations[0].SQL)

	assert.Equal(t, 2, migrations[1].Version)
	assert.Equal(t, "add indexes", migrations[1].Description)
}

func TestLoadMigrationsRejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "schema.sql", "CREATE TABLE t (c INT);")

	_, err := NewMigrator(nil, dir).loadMigrations()
	assert.ErrorContains(t, err, "invalid migration filename")
}

func TestLoadMigrationsMissingDir(t *testing.T) {
	_, err := NewMigrator(nil, filepath.Join(t.TempDir(), "missing")).loadMigrations()
	assert.Error(t, err)
}

func TestShippedMigrationsParse(t *testing.T) {
	migrations, err := NewMigrator(nil, "../../migrations").loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "initial schema", migrations[0].Description)
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS ledger_state")
}
