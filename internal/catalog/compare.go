package catalog

import (
	"fmt"

	"github.com/torvald-bar/bargo/internal/dbengine"
)

type columnInfo struct {
	name string
	typ string
}

func tableNames(h *dbengine.Handle) (map[string]bool, error) {
	q, err := h.Prepare("SELECT name FROM sqlite_master WHERE type='table'", nil)
	if err != nil {
		return nil, err
	}
	defer q.Finalize()

	names := make(map[string]bool)
	for q.Next() {
		var name string
		if err := q.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = true
	}
	return names, q.Err()
}

func tableColumnInfo(h *dbengine.Handle, table string) ([]columnInfo, error) {
	q, err := h.Prepare(fmt.Sprintf("PRAGMA table_info(%s)", table), nil)
	if err != nil {
		return nil, err
	}
	defer q.Finalize()

	var cols []columnInfo
	for q.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt any
		if err := q.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, columnInfo{name: name, typ: ctype})
	}
	return cols, q.Err()
}

// Compare walks table and column metadata of reference against current and
// reports the first structural difference found.
// A nil return means current is schema-compatible with reference.
func Compare(reference, current *dbengine.Handle) error {
	refTables, err := tableNames(reference)
	if err != nil {
		return err
	}
	curTables, err := tableNames(current)
	if err != nil {
		return err
	}

	for name := range refTables {
		if name == "sqlite_sequence" {
			continue
		}
		if !curTables[name] {
			return fmt.Errorf("%w: %s", dbengine.ErrMissingTable, name)
		}
	}
	for name := range curTables {
		if name == "sqlite_sequence" {
			continue
		}
		if !refTables[name] {
			return fmt.Errorf("%w: %s", dbengine.ErrObsoleteTable, name)
		}
	}

	for name := range refTables {
		if name == "sqlite_sequence" {
			continue
		}
		if err := compareColumns(reference, current, name); err != nil {
			return err
		}
	}
	return nil
}

func compareColumns(reference, current *dbengine.Handle, table string) error {
	refCols, err := tableColumnInfo(reference, table)
	if err != nil {
		return err
	}
	curCols, err := tableColumnInfo(current, table)
	if err != nil {
		return err
	}

	curByName := make(map[string]columnInfo, len(curCols))
	for _, c := range curCols {
		curByName[c.name] = c
	}

	for _, ref := range refCols {
		cur, ok := curByName[ref.name]
		if !ok {
			return fmt.Errorf("%w: %s.%s", dbengine.ErrMissingColumn, table, ref.name)
		}
		if ref.typ != "" && cur.typ != "" && ref.typ != cur.typ {
			return fmt.Errorf("%w: %s.%s (%s vs %s)", dbengine.ErrTypeMismatch, table, ref.name, ref.typ, cur.typ)
		}
	}

	refByName := make(map[string]bool, len(refCols))
	for _, c := range refCols {
		refByName[c.name] = true
	}
	for _, cur := range curCols {
		if !refByName[cur.name] {
			return fmt.Errorf("%w: %s.%s", dbengine.ErrObsoleteColumn, table, cur.name)
		}
	}
	return nil
}
