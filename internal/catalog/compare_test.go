package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/torvald-bar/bargo/internal/dbengine"
)

func TestCompareIdenticalSchemasPass(t *testing.T) {
	ref := newTestIndex(t)
	cur := newTestIndex(t)

	require.NoError(t, Compare(ref.Handle, cur.Handle))
}

func TestCompareDetectsMissingTable(t *testing.T) {
	ref := newTestIndex(t)
	cur := newTestIndex(t)

	require.NoError(t, cur.Handle.Execute("DROP TABLE fileEntries", nil, nil, dbengine.Forever))

	err := Compare(ref.Handle, cur.Handle)
	require.Error(t, err)
	require.True(t, errors.Is(err, dbengine.ErrMissingTable))
}

func TestCompareDetectsMissingColumn(t *testing.T) {
	ref := newTestIndex(t)
	cur, err := dbengine.Open(":memory:", dbengine.ModeCreate, dbengine.OpenFlags{Memory: true}, dbengine.Forever)
	require.NoError(t, err)
	defer cur.Close()
	require.NoError(t, CreateSchema(cur))

	require.NoError(t, cur.Execute("ALTER TABLE entities DROP COLUMN lastErrorMessage", nil, nil, dbengine.Forever))

	err = Compare(ref.Handle, cur)
	require.Error(t, err)
	require.True(t, errors.Is(err, dbengine.ErrMissingColumn))
}
