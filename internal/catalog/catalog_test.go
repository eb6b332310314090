package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/torvald-bar/bargo/internal/dbengine"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	h, err := dbengine.Open(":memory:", dbengine.ModeCreate, dbengine.OpenFlags{Memory: true}, dbengine.Forever)
	require.NoError(t, err)
	require.NoError(t, CreateSchema(h))
	t.Cleanup(func() { h.Close() })
	return &Index{Handle: h}
}

func TestCreateSchemaIsIdempotent(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, CreateSchema(idx.Handle))

	version, err := SchemaVersion(idx.Handle)
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, version)
}

func TestNewEntityFindEntityUnlockEntity(t *testing.T) {
	idx := newTestIndex(t)

	id, err := idx.NewEntity("job-uuid-1", "", "host", "user", ArchiveTypeFull, 1000, true)
	require.NoError(t, err)
	require.NotZero(t, id)

	e, err := idx.FindEntity("job-uuid-1")
	require.NoError(t, err)
	require.NotNil(t, e)
	require.Equal(t, id, e.ID)
	require.True(t, e.Locked)
	require.Equal(t, ArchiveTypeFull, e.ArchiveType)

	require.NoError(t, idx.UnlockEntity(id))
	e2, err := idx.FindEntity("job-uuid-1")
	require.NoError(t, err)
	require.False(t, e2.Locked)
}

func TestFindStorageByID(t *testing.T) {
	idx := newTestIndex(t)
	entityID, err := idx.NewEntity("", "", "", "", ArchiveTypeNormal, 0, false)
	require.NoError(t, err)

	require.NoError(t, idx.Handle.Execute(
		"INSERT INTO storages (entityId, name, createdDateTime, size) VALUES (?, ?, ?, ?)",
		[]any{entityID, "test.bar", 123, 456}, nil, dbengine.Forever))
	storageID, err := idx.Handle.GetID("SELECT last_insert_rowid()")
	require.NoError(t, err)

	s, err := idx.FindStorageByID(storageID)
	require.NoError(t, err)
	require.Equal(t, "test.bar", s.Name)
	require.Equal(t, entityID, s.EntityID)
}

func TestFixBrokenIDs(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Handle.Execute(
		`CREATE TABLE legacy (id INTEGER, val TEXT)`, nil, nil, dbengine.Forever))
	require.NoError(t, idx.Handle.Execute(
		`INSERT INTO legacy (id, val) VALUES (5, 'a'), (NULL, 'b'), (0, 'c')`, nil, nil, dbengine.Forever))

	require.NoError(t, idx.FixBrokenIDs("legacy"))

	q, err := idx.Handle.Prepare("SELECT id FROM legacy ORDER BY rowid", nil)
	require.NoError(t, err)
	defer q.Finalize()

	var ids []int64
	for q.Next() {
		var id int64
		require.NoError(t, q.Scan(&id))
		ids = append(ids, id)
	}
	require.Equal(t, []int64{5, 6, 7}, ids)
}
