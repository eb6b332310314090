package migrations

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/torvald-bar/bargo/internal/dbengine"
)

func TestFindRegistersV1AndV6(t *testing.T) {
	_, ok := Find(1)
	require.True(t, ok)
	_, ok = Find(6)
	require.True(t, ok)
	_, ok = Find(2)
	require.False(t, ok)
}

func buildV1Database(t *testing.T, path string) {
	t.Helper()
	h, err := dbengine.Open(path, dbengine.ModeCreate, dbengine.OpenFlags{}, dbengine.Forever)
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Execute(`CREATE TABLE meta (name TEXT PRIMARY KEY, value TEXT)`, nil, nil, dbengine.Forever))
	require.NoError(t, h.Execute(`INSERT INTO meta (name, value) VALUES ('version', '1')`, nil, nil, dbengine.Forever))

	require.NoError(t, h.Execute(`CREATE TABLE storage (id INTEGER PRIMARY KEY, name TEXT)`, nil, nil, dbengine.Forever))
	require.NoError(t, h.Execute(`CREATE TABLE directories (id INTEGER PRIMARY KEY, storageId INTEGER, name TEXT)`, nil, nil, dbengine.Forever))
	require.NoError(t, h.Execute(`CREATE TABLE files (id INTEGER PRIMARY KEY, storageId INTEGER, name TEXT, size INTEGER)`, nil, nil, dbengine.Forever))
	require.NoError(t, h.Execute(`CREATE TABLE images (id INTEGER PRIMARY KEY, storageId INTEGER, name TEXT)`, nil, nil, dbengine.Forever))
	require.NoError(t, h.Execute(`CREATE TABLE links (id INTEGER PRIMARY KEY, storageId INTEGER, name TEXT)`, nil, nil, dbengine.Forever))
	require.NoError(t, h.Execute(`CREATE TABLE special (id INTEGER PRIMARY KEY, storageId INTEGER, name TEXT)`, nil, nil, dbengine.Forever))

	require.NoError(t, h.Execute(`INSERT INTO storage (id, name) VALUES (1, 'archive1.bar')`, nil, nil, dbengine.Forever))
	require.NoError(t, h.Execute(`INSERT INTO files (id, storageId, name, size) VALUES (1, 1, '/etc/hosts', 128)`, nil, nil, dbengine.Forever))
	require.NoError(t, h.Execute(`INSERT INTO directories (id, storageId, name) VALUES (1, 1, '/etc')`, nil, nil, dbengine.Forever))
}

func TestRunMigratesV1ToCurrent(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.db")
	newPath := filepath.Join(dir, "new.db")
	buildV1Database(t, oldPath)

	var stages []string
	err := Run(oldPath, newPath, func(stage string, frac float64) { stages = append(stages, stage) }, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, stages)

	newHandle, err := dbengine.Open(newPath, dbengine.ModeRead, dbengine.OpenFlags{}, dbengine.Forever)
	require.NoError(t, err)
	defer newHandle.Close()

	count, err := newHandle.GetID("SELECT COUNT(*) FROM entities")
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	count, err = newHandle.GetID("SELECT COUNT(*) FROM entries")
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestRunStopsOnInterrupt(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.db")
	newPath := filepath.Join(dir, "new.db")
	buildV1Database(t, oldPath)

	err := Run(oldPath, newPath, nil, nil, func() bool { return true })
	require.ErrorIs(t, err, dbengine.ErrInterrupted)
}
