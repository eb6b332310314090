package dbengine

import (
	"fmt"
	"strings"
	"time"
)

// Column describes one destination column during a table copy: its name,
// its copied (or defaulted) value, and whether something has claimed it —
// copied from source, or set by a callback — so unclaimed columns are left
// at their schema default.
type Column struct {
	Name string
	Value any
	used bool
}

// Use records a value for this column and marks it claimed for the
// upcoming INSERT.
func (c *Column) Use(v any) {
	c.Value = v
	c.used = true
}

// CopyRowFunc is invoked once per source row, after source columns have
// populated the matching destination columns, so it can mutate further
// columns before the INSERT is built.
type CopyRowFunc func(src, dst []Column) error

// PostRowFunc is invoked after a destination row is inserted, with the
// assigned row id available via lastInsertID.
type PostRowFunc func(src, dst []Column, lastInsertID int64) error

// PauseFunc is polled between rows; while it returns true, the copy is
// paused (transaction closed, 10s sleeps) until it returns false again.
type PauseFunc func() bool

// CopyTableOptions configures CopyTable.
type CopyTableOptions struct {
	SrcTable, DstTable string
	InTx bool
	Where string
	Params []any
	Pre CopyRowFunc
	Post PostRowFunc
	Pause PauseFunc
}

// CopyTable copies every row of opts.SrcTable into opts.DstTable, matching
// columns by name (the primary key, conventionally "id", is never copied),
// optionally wrapping the destination writes in a transaction. The source
// rows are read into memory and the cursor is closed before any row is
// inserted, so Pre/Post callbacks may query src again (nested copies).
func CopyTable(src, dst *Handle, opts CopyTableOptions) error {
	srcCols, err := tableColumns(src, opts.SrcTable)
	if err != nil {
		return err
	}
	dstCols, err := tableColumns(dst, opts.DstTable)
	if err != nil {
		return err
	}

	selectSQL := fmt.Sprintf("SELECT %s FROM %s", strings.Join(srcCols, ","), opts.SrcTable)
	if opts.Where != "" {
		selectSQL += " WHERE " + opts.Where
	}

	q, err := src.Prepare(selectSQL, opts.Params)
	if err != nil {
		return err
	}
	var srcRows [][]Column
	for q.Next() {
		srcRow := make([]Column, len(srcCols))
		scanDest := make([]any, len(srcCols))
		for i, name := range srcCols {
			srcRow[i].Name = name
			scanDest[i] = &srcRow[i].Value
		}
		if err := q.Scan(scanDest...); err != nil {
			q.Finalize()
			return err
		}
		srcRows = append(srcRows, srcRow)
	}
	if err := q.Err(); err != nil {
		q.Finalize()
		return err
	}
	q.Finalize()

	if opts.InTx {
		if err := dst.BeginTx(TxImmediate, Forever); err != nil {
			return err
		}
	}

	for _, srcRow := range srcRows {
		if opts.Pause != nil {
			for opts.Pause() {
				if opts.InTx {
					if err := dst.EndTx(); err != nil {
						return err
					}
				}
				time.Sleep(10 * time.Second)
				if opts.InTx {
					if err := dst.BeginTx(TxImmediate, Forever); err != nil {
						return err
					}
				}
			}
		}

		dstRow := make([]Column, len(dstCols))
		for i, name := range dstCols {
			dstRow[i].Name = name
			if name == "id" {
				continue
			}
			for _, s := range srcRow {
				if s.Name == name {
					dstRow[i].Use(s.Value)
					break
				}
			}
		}

		if opts.Pre != nil {
			if err := opts.Pre(srcRow, dstRow); err != nil {
				if opts.InTx {
					dst.RollbackTx()
				}
				return err
			}
		}

		lastID, err := insertUsedColumns(dst, opts.DstTable, dstRow)
		if err != nil {
			if opts.InTx {
				dst.RollbackTx()
			}
			return err
		}

		if opts.Post != nil {
			if err := opts.Post(srcRow, dstRow, lastID); err != nil {
				if opts.InTx {
					dst.RollbackTx()
				}
				return err
			}
		}
	}

	if opts.InTx {
		return dst.EndTx()
	}
	return nil
}

func insertUsedColumns(dst *Handle, table string, cols []Column) (int64, error) {
	var names []string
	var placeholders []string
	var values []any
	for _, c := range cols {
		if c.Name == "id" || !c.used {
			continue
		}
		names = append(names, c.Name)
		placeholders = append(placeholders, "?")
		values = append(values, c.Value)
	}
	sqlText := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ","), strings.Join(placeholders, ","))

	if err := dst.Execute(sqlText, values, nil, Forever); err != nil {
		return 0, err
	}
	return dst.GetID("SELECT last_insert_rowid()")
}

// TableColumns returns table's column names in declaration order, via
// PRAGMA table_info. Exported for callers (e.g. migrations) that need to
// build an INSERT statement matching an arbitrary destination table.
func TableColumns(h *Handle, table string) ([]string, error) {
	return tableColumns(h, table)
}

func tableColumns(h *Handle, table string) ([]string, error) {
	var names []string
	q, err := h.Prepare(fmt.Sprintf("PRAGMA table_info(%s)", table), nil)
	if err != nil {
		return nil, err
	}
	defer q.Finalize()
	for q.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt any
		if err := q.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, q.Err()
}
