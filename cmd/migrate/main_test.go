package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_init_schema_migrations.sql", true, "0001", "init_schema_migrations"},
		{"0042_add_index.sql", true, "0042", "add_index"},
		{"001_invalid.sql", false, "", ""},       // wrong number format
		{"0001_test", false, "", ""},             // missing .sql
		{"0001.sql", false, "", ""},              // missing name
		{"invalid_0001_test.sql", false, "", ""}, // wrong order
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			matches := migrationPattern.FindStringSubmatch(tt.filename)
			if !tt.valid {
				assert.Nil(t, matches)
				return
			}
			require.Len(t, matches, 3)
			assert.Equal(t, tt.version, matches[1])
			assert.Equal(t, tt.name, matches[2])
		})
	}
}

func TestMigrationChecksumConsistency(t *testing.T) {
	a := checksum([]byte("CREATE TABLE test (id INT64);"))
	b := checksum([]byte("CREATE TABLE test (id INT64);"))
	c := checksum([]byte("CREATE TABLE different (id INT64);"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func writeMigration(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestReadMigrations(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "0002_second.sql", "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.b` (id INT64);")
	writeMigration(t, dir, "0001_first.sql", "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (id INT64);")
	writeMigration(t, dir, "README.md", "not a migration")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "0003_dir.sql"), 0o700))

	migrations, err := readMigrations(zerolog.Nop(), dir, "proj", "ds")
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, "CREATE TABLE `proj.ds.a` (id INT64);", migrations[0].SQL)
	assert.Equal(t, checksum([]byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (id INT64);")), migrations[0].Checksum,
		"checksum is taken before placeholders are replaced")
	assert.Equal(t, 2, migrations[1].Version)
}

func TestReadMigrations_DuplicateVersion(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "0001_a.sql", "SELECT 1;")
	writeMigration(t, dir, "0001_b.sql", "SELECT 2;")

	_, err := readMigrations(zerolog.Nop(), dir, "proj", "ds")
	assert.ErrorContains(t, err, "duplicate migration version 0001")
}

func TestRepositoryMigrations(t *testing.T) {
	dir, err := resolveDir("migrations/bigquery")
	require.NoError(t, err)

	migrations, err := readMigrations(zerolog.Nop(), dir, "proj", "ds")
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "versions are contiguous")
		assert.NotContains(t, m.SQL, "{{")
	}
}

func TestPendingAndDrift(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "a", Checksum: "aaa"},
		{Version: 2, Name: "b", Checksum: "bbb"},
		{Version: 3, Name: "c", Checksum: "ccc"},
	}
	applied := []AppliedMigration{
		{Version: 1, Checksum: "aaa"},
		{Version: 2, Checksum: "changed"},
	}

	pending := pendingMigrations(migrations, applied)
	require.Len(t, pending, 1)
	assert.Equal(t, 3, pending[0].Version)

	drift := checksumDrift(migrations, applied)
	require.Len(t, drift, 1)
	assert.Equal(t, "b", drift[0].Name)
}
