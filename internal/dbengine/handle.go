// Package dbengine implements the shared-file, multi-threaded SQL store
// used by the catalog index and job engine: a three-state (none/read/
// read-write) lock discipline arbitrated per database file, BUSY/LOCKED
// retry handling, a streaming query cursor, and a table copier used by
// schema migrations.
package dbengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// OpenMode selects how Open treats a missing file.
type OpenMode int

const (
	ModeRead OpenMode = iota
	ModeReadWrite
	ModeCreate
)

// OpenFlags are additional behaviors orthogonal to mode.
type OpenFlags struct {
	Memory bool // ":memory:", ignores path
	Shared bool // cache=shared across connections in this process
	Aux bool // auxiliary database; Open does not act on it (checkpoints run as for any other)
}

// busyRetryInterval is how long execute sleeps between BUSY retries.
const busyRetryInterval = 500 * time.Millisecond

func wrapDBErr(err error, sqlText string) *DatabaseError {
	code := 0
	var sqliteErr *sqlite3.Error
	if errors.As(err, &sqliteErr) {
		code = int(sqliteErr.Code())
	}
	return &DatabaseError{Code: code, Message: err.Error(), SQL: sqlText, Cause: err}
}

// Handle is one open reference to a database file. Multiple Handles may
// share the same underlying node (and therefore the same lock state) when
// opened with the same path string (the path is not canonicalized).
type Handle struct {
	path string
	registry *Registry
	node *node

	db *sql.DB

	lockType LockType
	txType TxType
	inTx bool
}

// Open registers (or attaches to) the shared node for path and opens the
// underlying connection, installing the helper SQL functions.
func Open(path string, mode OpenMode, flags OpenFlags, timeout time.Duration) (*Handle, error) {
	return openWithRegistry(defaultRegistry, path, mode, flags, timeout)
}

func openWithRegistry(reg *Registry, path string, mode OpenMode, flags OpenFlags, timeout time.Duration) (*Handle, error) {
	dsn := path
	if flags.Memory {
		dsn = ":memory:"
	}
	query := "?_pragma=busy_timeout(0)&_pragma=foreign_keys(on)"
	if flags.Shared {
		query += "&cache=shared"
	}
	if mode == ModeRead {
		query += "&mode=ro"
	} else if mode == ModeCreate {
		query += "&mode=rwc"
	} else {
		query += "&mode=rw"
	}

	db, err := sql.Open("sqlite3", "file:"+dsn+query)
	if err != nil {
		return nil, wrapDBErr(err, "open")
	}
	db.SetMaxOpenConns(1) // this engine arbitrates concurrency itself, not the driver pool

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, wrapDBErr(err, "PRAGMA journal_mode=WAL")
	}

	h := &Handle{
		path: path,
		registry: reg,
		node: reg.acquire(path),
		db: db,
	}
	return h, nil
}

// Close releases the Handle's reference, closing the underlying connection
// and, if this was the last reference, freeing the shared node.
func (h *Handle) Close() error {
	err := h.db.Close()
	h.registry.release(h.path)
	return err
}

// Lock acquires the named lock type on this handle's node. ctx, if non-nil
// and already canceled, short-circuits without attempting to acquire.
func (h *Handle) Lock(ctx context.Context, t LockType, timeout time.Duration) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	switch t {
	case LockRead:
		if !h.node.acquireRead(h, timeout) {
			return ErrTimeout
		}
	case LockReadWrite:
		if !h.node.acquireReadWrite(h, timeout) {
			return ErrTimeout
		}
	}
	h.lockType = t
	return nil
}

// Unlock releases the named lock type acquired by a prior Lock call.
func (h *Handle) Unlock(t LockType) {
	switch t {
	case LockRead:
		h.node.releaseRead()
	case LockReadWrite:
		h.node.releaseReadWrite()
	}
	h.lockType = LockNone
}

// BeginTx acquires the rw-lock (with drain phase) and issues BEGIN.
func (h *Handle) BeginTx(t TxType, timeout time.Duration) error {
	if !h.node.beginTransaction(h, timeout) {
		return ErrTimeout
	}
	if _, err := h.db.Exec(t.sql()); err != nil {
		h.node.endTransaction()
		return wrapDBErr(err, t.sql())
	}
	h.txType = t
	h.inTx = true
	return nil
}

// EndTx commits the open transaction and releases the rw-lock, running a
// WAL checkpoint if one is due.
func (h *Handle) EndTx() error {
	return h.finishTx("COMMIT")
}

// RollbackTx rolls back the open transaction and releases the rw-lock even
// though the SQL failed.
func (h *Handle) RollbackTx() error {
	return h.finishTx("ROLLBACK")
}

func (h *Handle) finishTx(stmt string) error {
	if !h.inTx {
		return nil
	}
	_, execErr := h.db.Exec(stmt)
	h.inTx = false
	h.node.endTransaction()
	if execErr != nil {
		return wrapDBErr(execErr, stmt)
	}
	if h.node.shouldCheckpoint(time.Now()) {
		h.checkpoint()
	}
	return nil
}

func (h *Handle) checkpoint() {
	now := time.Now()
	if !h.node.acquireReadWrite(h, Forever) {
		return
	}
	defer h.node.releaseReadWrite()
	if _, err := h.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err == nil {
		h.node.markCheckpointed(now)
	}
}

// RowCallback is invoked once per row streamed by Execute; returning an
// error aborts the statement and is surfaced to the caller.
type RowCallback func(row *sql.Rows) error

// Execute runs sql (already Format-expanded) with params, retrying on BUSY
// up to timeout and invoking rowCB once per result row if non-nil.
func (h *Handle) Execute(sqlText string, params []any, rowCB RowCallback, timeout time.Duration) error {
	deadline := deadlineFor(timeout)
	for {
		err := h.executeOnce(sqlText, params, rowCB)
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		if h.node.handlers != nil {
			h.node.handlers.runBusy()
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return ErrTimeout
		}
		time.Sleep(busyRetryInterval)
	}
}

func (h *Handle) executeOnce(sqlText string, params []any, rowCB RowCallback) error {
	if rowCB == nil {
		_, err := h.db.Exec(sqlText, params...)
		if err != nil {
			return wrapDBErr(err, sqlText)
		}
		return nil
	}
	rows, err := h.db.Query(sqlText, params...)
	if err != nil {
		return wrapDBErr(err, sqlText)
	}
	defer rows.Close()
	for rows.Next() {
		if h.node.handlers != nil && h.node.handlers.checkProgress() {
			return ErrInterrupted
		}
		if err := rowCB(rows); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return wrapDBErr(err, sqlText)
	}
	return nil
}

// RegisterBusyHandler installs fn to be called once per BUSY retry on every
// Handle sharing this one's node (i.e. every Handle open on the same
// database file).
func (h *Handle) RegisterBusyHandler(fn BusyHandler) {
	h.node.handlers.addBusy(fn)
}

// RegisterProgressHandler installs fn to be polled between rows of every
// streamed query and of every Execute call with a row callback on this
// Handle's node; Execute without a row callback does not poll it.
// Returning true from fn aborts the in-flight statement with
// ErrInterrupted, giving callers a cooperative way to cancel work such as a
// catalog migration in progress.
func (h *Handle) RegisterProgressHandler(fn ProgressHandler) {
	h.node.handlers.addProgress(fn)
}

// Prepare opens a streaming Query cursor bound to a read-lock, released on
// Finalize.
func (h *Handle) Prepare(sqlText string, params []any) (*Query, error) {
	if !h.node.acquireRead(h, Forever) {
		return nil, ErrTimeout
	}
	rows, err := h.db.Query(sqlText, params...)
	if err != nil {
		h.node.releaseRead()
		return nil, wrapDBErr(err, sqlText)
	}
	return &Query{handle: h, rows: rows}, nil
}

func isBusy(err error) bool {
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr.Code == int(sqlite3.BUSY) || dbErr.Code == int(sqlite3.LOCKED)
	}
	var sqliteErr *sqlite3.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.BUSY || code == sqlite3.LOCKED
	}
	return false
}

// Convenience wrappers built on Execute/Prepare.

func (h *Handle) GetID(sqlText string, params...any) (int64, error) {
	var id int64
	row := h.db.QueryRow(sqlText, params...)
	if err := row.Scan(&id); err != nil {
		return 0, wrapDBErr(err, sqlText)
	}
	return id, nil
}

func (h *Handle) SetInt64(table, column string, id int64, value int64) error {
	sqlText := fmt.Sprintf("UPDATE %s SET %s=? WHERE id=?", table, column)
	return h.Execute(sqlText, []any{value, id}, nil, Forever)
}

func (h *Handle) SetDouble(table, column string, id int64, value float64) error {
	sqlText := fmt.Sprintf("UPDATE %s SET %s=? WHERE id=?", table, column)
	return h.Execute(sqlText, []any{value, id}, nil, Forever)
}

func (h *Handle) SetString(table, column string, id int64, value string) error {
	sqlText := fmt.Sprintf("UPDATE %s SET %s=? WHERE id=?", table, column)
	return h.Execute(sqlText, []any{value, id}, nil, Forever)
}

func (h *Handle) Exists(sqlText string, params...any) (bool, error) {
	row := h.db.QueryRow(sqlText, params...)
	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapDBErr(err, sqlText)
	}
	return true, nil
}
