package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"Add Payload Index":   "add_payload_index",
		"collection--records": "collection_records",
		"  trailing  ":        "trailing",
		"v2 (draft)!":         "v2_draft",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeName(in), in)
	}
}

func TestCreateMigration(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")

	first, err := CreateMigration(dir, "collection records", "record table")
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.FileExists(t, first.UpPath)
	assert.FileExists(t, first.DownPath)
	assert.Equal(t, "000001_collection_records.up.sql", filepath.Base(first.UpPath))

	second, err := CreateMigration(dir, "payload check", "")
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)

	content, err := os.ReadFile(second.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Migration: payload check")
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_b.up.sql":   {},
		"000002_b.down.sql": {},
		"000001_a.up.sql":   {},
		"README.md":         {},
		"draft.up.sql":      {},
		"nested/x.up.sql":   {},
	}
	got, err := ListMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []Listed{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}}, got)

	got, err = ListMigrations(os.DirFS(filepath.Join(t.TempDir(), "missing")))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEmbedded(t *testing.T) {
	got, err := Embedded()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "collection_records", got[0].Name)
}

func TestSourceFS(t *testing.T) {
	embeddedFS, err := sourceFS("")
	require.NoError(t, err)
	listed, err := ListMigrations(embeddedFS)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	dir := t.TempDir()
	_, err = CreateMigration(dir, "payload index", "")
	require.NoError(t, err)
	dirFS, err := sourceFS(dir)
	require.NoError(t, err)
	listed, err = ListMigrations(dirFS)
	require.NoError(t, err)
	assert.Equal(t, []Listed{{Version: 1, Name: "payload_index"}}, listed)

	_, err = sourceFS(filepath.Join(dir, "missing"))
	assert.Error(t, err)
	_, err = sourceFS(listedPath(t, dir))
	assert.ErrorContains(t, err, "is a file")
}

func listedPath(t *testing.T, dir string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	return filepath.Join(dir, entries[0].Name())
}
