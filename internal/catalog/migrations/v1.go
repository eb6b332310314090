package migrations

import (
	"github.com/google/uuid"
	"github.com/torvald-bar/bargo/internal/catalog"
	"github.com/torvald-bar/bargo/internal/dbengine"
)

// oldToNewEntryTables lists each v1 per-type storage table and the unified
// entry type it becomes, grounded on upgradeFromVersion1's sequence of
// Database_copyTable calls (directories, files, images, links, special).
var oldToNewEntryTables = []struct {
	oldTable string
	entryType catalog.EntryType
}{
	{"directories", catalog.EntryTypeDirectory},
	{"files", catalog.EntryTypeFile},
	{"images", catalog.EntryTypeImage},
	{"links", catalog.EntryTypeLink},
	{"special", catalog.EntryTypeSpecial},
}

// migrateFromV1 ports a pre-unified-schema catalog (separate storage and
// per-type tables with no entities layer) into the current schema: every
// storage row becomes a synthetic, locked FULL entity, and its child rows
// become entries + per-type specialization rows.
func migrateFromV1(old, newIdx *catalog.Index, progress ProgressFunc, pause dbengine.PauseFunc) error {
	progress("fixing broken ids", 0)
	for _, table := range append([]string{"storage"}, tableNamesOf(oldToNewEntryTables)...) {
		if err := old.FixBrokenIDs(table); err != nil {
			return err
		}
	}

	progress("transferring storages", 0.1)
	return dbengine.CopyTable(old.Handle, newIdx.Handle, dbengine.CopyTableOptions{
		SrcTable: "storage",
		DstTable: "storages",
		InTx: false,
		Pause: pause,
		Pre: func(src, dst []dbengine.Column) error {
			entityID, err := newIdx.NewEntity(uuid.NewString(), "", "", "",
				catalog.ArchiveTypeFull, 0, true)
			if err != nil {
				return err
			}
			setColumn(dst, "entityId", entityID)
			return nil
		},
		Post: func(src, dst []dbengine.Column, newStorageID int64) error {
			oldStorageID := getColumn(src, "id")
			return copyStorageChildren(old, newIdx, oldStorageID, newStorageID, pause)
		},
	})
}

func tableNamesOf(specs []struct {
	oldTable string
	entryType catalog.EntryType
}) []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.oldTable
	}
	return names
}

// copyStorageChildren copies every v1 per-type child row belonging to
// oldStorageID into entries (identity columns) and the matching per-type
// table, under the new storage id.
func copyStorageChildren(old, newIdx *catalog.Index, oldStorageID, newStorageID int64, pause dbengine.PauseFunc) error {
	for _, spec := range oldToNewEntryTables {
		specTable := perTypeTableName(spec.entryType)
		entryType := spec.entryType

		err := dbengine.CopyTable(old.Handle, newIdx.Handle, dbengine.CopyTableOptions{
			SrcTable: spec.oldTable,
			DstTable: "entries",
			Where: "storageId = ?",
			Params: []any{oldStorageID},
			Pause: pause,
			Pre: func(src, dst []dbengine.Column) error {
				setColumn(dst, "storageId", newStorageID)
				setColumn(dst, "type", int(entryType))
				return nil
			},
			Post: func(src, dst []dbengine.Column, newEntryID int64) error {
				return copyPerTypeRow(newIdx, specTable, newEntryID, newStorageID, src)
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// copyPerTypeRow inserts the per-type specialization row for newEntryID,
// carrying over whichever source columns the destination table defines.
func copyPerTypeRow(newIdx *catalog.Index, specTable string, newEntryID, newStorageID int64, src []dbengine.Column) error {
	cols, err := dbengine.TableColumns(newIdx.Handle, specTable)
	if err != nil {
		return err
	}

	var names []string
	var placeholders []string
	var values []any
	for _, name := range cols {
		switch name {
		case "entryId":
			names = append(names, name)
			placeholders = append(placeholders, "?")
			values = append(values, newEntryID)
		case "storageId":
			names = append(names, name)
			placeholders = append(placeholders, "?")
			values = append(values, newStorageID)
		default:
			for _, s := range src {
				if s.Name == name {
					names = append(names, name)
					placeholders = append(placeholders, "?")
					values = append(values, s.Value)
					break
				}
			}
		}
	}

	return newIdx.Handle.Execute(
		"INSERT INTO "+specTable+" ("+joinComma(names)+") VALUES ("+joinComma(placeholders)+")",
		values, nil, dbengine.Forever)
}

func perTypeTableName(t catalog.EntryType) string {
	switch t {
	case catalog.EntryTypeFile:
		return "fileEntries"
	case catalog.EntryTypeImage:
		return "imageEntries"
	case catalog.EntryTypeDirectory:
		return "directoryEntries"
	case catalog.EntryTypeLink:
		return "linkEntries"
	case catalog.EntryTypeHardlink:
		return "hardlinkEntries"
	case catalog.EntryTypeSpecial:
		return "specialEntries"
	default:
		return ""
	}
}

func setColumn(cols []dbengine.Column, name string, value any) {
	for i := range cols {
		if cols[i].Name == name {
			cols[i].Use(value)
			return
		}
	}
}

func getColumn(cols []dbengine.Column, name string) int64 {
	for _, c := range cols {
		if c.Name == name {
			if v, ok := c.Value.(int64); ok {
				return v
			}
		}
	}
	return 0
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
