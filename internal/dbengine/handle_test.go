package dbengine

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenExecuteRoundTrip(t *testing.T) {
	h, err := Open(":memory:", ModeCreate, OpenFlags{Memory: true}, Forever)
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Execute(
		"CREATE TABLE greeting (id INTEGER PRIMARY KEY, text TEXT)",
		nil, nil, Forever))

	require.NoError(t, h.Execute(
		Format("INSERT INTO greeting (text) VALUES (%'s)", "hello"),
		nil, nil, Forever))

	var got string
	var count int
	require.NoError(t, h.Execute("SELECT text FROM greeting", nil, func(rows *sql.Rows) error {
		count++
		return rows.Scan(&got)
	}, Forever))

	require.Equal(t, 1, count)
	require.Equal(t, "hello", got)
}

func TestBeginEndTxReleasesLock(t *testing.T) {
	h, err := Open(":memory:", ModeCreate, OpenFlags{Memory: true}, Forever)
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.BeginTx(TxImmediate, Forever))
	require.NoError(t, h.EndTx())

	// the node must be fully released: a subsequent rw-acquire must not block.
	ok := h.node.acquireReadWrite(h, 200*time.Millisecond)
	require.True(t, ok)
	h.node.releaseReadWrite()
}

func TestFormatQuoting(t *testing.T) {
	require.Equal(t, "name = 'it''s'", Format("name = %'s", "it's"))
	require.Equal(t, "id = 42", Format("id = %d", 42))
}

func TestRegisterProgressHandlerInterruptsStreamedQuery(t *testing.T) {
	h, err := Open(":memory:", ModeCreate, OpenFlags{Memory: true}, Forever)
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Execute("CREATE TABLE nums (n INTEGER)", nil, nil, Forever))
	for i := 0; i < 3; i++ {
		require.NoError(t, h.Execute("INSERT INTO nums (n) VALUES (?)", []any{i}, nil, Forever))
	}

	h.RegisterProgressHandler(func() bool { return true })

	var seen int
	err = h.Execute("SELECT n FROM nums", nil, func(rows *sql.Rows) error {
		seen++
		return nil
	}, Forever)
	require.ErrorIs(t, err, ErrInterrupted)
	require.Zero(t, seen)
}

func TestRegisterBusyHandlerIsReachable(t *testing.T) {
	h, err := Open(":memory:", ModeCreate, OpenFlags{Memory: true}, Forever)
	require.NoError(t, err)
	defer h.Close()

	var calls int
	h.RegisterBusyHandler(func() { calls++ })
	h.node.handlers.runBusy()
	require.Equal(t, 1, calls)
}

func TestWrapDBErrPopulatesCode(t *testing.T) {
	h, err := Open(":memory:", ModeCreate, OpenFlags{Memory: true}, Forever)
	require.NoError(t, err)
	defer h.Close()

	err = h.Execute("SELECT * FROM does_not_exist", nil, nil, Forever)
	require.Error(t, err)
	var dbErr *DatabaseError
	require.ErrorAs(t, err, &dbErr)
	require.NotZero(t, dbErr.Code)
}
