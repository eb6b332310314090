package dbengine

import "database/sql"

// Query is a streaming cursor bound to a read-lock acquired by Prepare; the
// lock is held until Finalize releases it.
type Query struct {
	handle *Handle
	rows *sql.Rows
	done bool
	interrupted bool
}

// Next advances the cursor. It returns false once the result set is
// exhausted or the underlying node's progress handlers request interrupt.
func (q *Query) Next() bool {
	if q.done {
		return false
	}
	if q.handle.node.handlers != nil && q.handle.node.handlers.checkProgress() {
		q.done = true
		q.interrupted = true
		return false
	}
	if !q.rows.Next() {
		q.done = true
		return false
	}
	return true
}

// Scan extracts the current row's columns into dest, following database/sql
// conventions: native *T destination pointers rather than a printf-style
// format string.
func (q *Query) Scan(dest...any) error {
	if err := q.rows.Scan(dest...); err != nil {
		return wrapDBErr(err, "")
	}
	return nil
}

// Err reports any error encountered during iteration, including
// cancellation observed via a registered progress handler.
func (q *Query) Err() error {
	if q.interrupted {
		return ErrInterrupted
	}
	if err := q.rows.Err(); err != nil {
		return wrapDBErr(err, "")
	}
	return nil
}

// Finalize closes the cursor and releases the read-lock acquired by
// Prepare.
func (q *Query) Finalize() error {
	err := q.rows.Close()
	q.handle.node.releaseRead()
	return err
}
