package migrations

import (
	"github.com/torvald-bar/bargo/internal/catalog"
	"github.com/torvald-bar/bargo/internal/dbengine"
)

// migrateFromV6 ports a v6 catalog, which already has an entities layer,
// into the current schema: uuids copy as-is; entities/storages/entries/
// per-type rows copy with id remaps threaded through the copy_table
// callback chain; orphan storages (entityId NULL) are reattached to a
// matching entity by jobUUID or given a new synthetic one.
func migrateFromV6(old, newIdx *catalog.Index, progress ProgressFunc, pause dbengine.PauseFunc) error {
	progress("fixing broken ids", 0)
	for _, table := range []string{"storage", "files", "images", "directories", "links", "special"} {
		if err := old.FixBrokenIDs(table); err != nil {
			return err
		}
	}

	progress("transferring uuids", 0.02)
	_ = dbengine.CopyTable(old.Handle, newIdx.Handle, dbengine.CopyTableOptions{
		SrcTable: "uuids",
		DstTable: "uuids",
		Pause: pause,
	}) // ignore error: uuids table may not exist in every v6 database

	entityCount, err := old.Handle.GetID("SELECT COUNT(*) FROM entities")
	if err != nil {
		return err
	}
	orphanCount, err := old.Handle.GetID("SELECT COUNT(*) FROM storage WHERE entityId IS NULL")
	if err != nil {
		return err
	}
	totalSteps := entityCount + orphanCount
	var step int64

	progress("transferring entities", 0.05)
	err = dbengine.CopyTable(old.Handle, newIdx.Handle, dbengine.CopyTableOptions{
		SrcTable: "entities",
		DstTable: "entities",
		Pause: pause,
		Post: func(src, dst []dbengine.Column, newEntityID int64) error {
			oldEntityID := getColumn(src, "id")
			if err := copyEntityStorages(old, newIdx, oldEntityID, newEntityID, pause); err != nil {
				return err
			}
			step++
			progress("transferring entities", 0.05+0.8*float64(step)/float64(max64(totalSteps, 1)))
			return nil
		},
	})
	if err != nil {
		return err
	}

	progress("transferring orphan storages", 0.85)
	q, err := old.Handle.Prepare("SELECT id, jobUUID FROM storage WHERE entityId IS NULL", nil)
	if err != nil {
		return err
	}
	var orphans []struct {
		id int64
		jobUUID string
	}
	for q.Next() {
		var id int64
		var jobUUID string
		if err := q.Scan(&id, &jobUUID); err != nil {
			q.Finalize()
			return err
		}
		orphans = append(orphans, struct {
			id int64
			jobUUID string
		}{id, jobUUID})
	}
	if err := q.Err(); err != nil {
		q.Finalize()
		return err
	}
	q.Finalize()

	for _, orphan := range orphans {
		entity, err := newIdx.FindEntity(orphan.jobUUID)
		if err != nil {
			return err
		}
		var entityID int64
		if entity != nil {
			entityID = entity.ID
		} else {
			entityID, err = newIdx.NewEntity(orphan.jobUUID, "", "", "", catalog.ArchiveTypeFull, 0, true)
			if err != nil {
				return err
			}
		}

		err = dbengine.CopyTable(old.Handle, newIdx.Handle, dbengine.CopyTableOptions{
			SrcTable: "storage",
			DstTable: "storages",
			Where: "id = ?",
			Params: []any{orphan.id},
			Pause: pause,
			Pre: func(src, dst []dbengine.Column) error {
				setColumn(dst, "entityId", entityID)
				return nil
			},
			Post: func(src, dst []dbengine.Column, newStorageID int64) error {
				return copyStorageChildren(old, newIdx, orphan.id, newStorageID, pause)
			},
		})
		if err != nil {
			return err
		}
		if entity == nil {
			if err := newIdx.UnlockEntity(entityID); err != nil {
				return err
			}
		}
		step++
		progress("transferring orphan storages", 0.85+0.15*float64(step)/float64(max64(totalSteps, 1)))
	}

	return nil
}

// copyEntityStorages copies every v6 storage row belonging to oldEntityID,
// recursing into its entries and per-type rows via copyStorageChildren.
func copyEntityStorages(old, newIdx *catalog.Index, oldEntityID, newEntityID int64, pause dbengine.PauseFunc) error {
	return dbengine.CopyTable(old.Handle, newIdx.Handle, dbengine.CopyTableOptions{
		SrcTable: "storage",
		DstTable: "storages",
		Where: "entityId = ?",
		Params: []any{oldEntityID},
		Pause: pause,
		Pre: func(src, dst []dbengine.Column) error {
			setColumn(dst, "entityId", newEntityID)
			return nil
		},
		Post: func(src, dst []dbengine.Column, newStorageID int64) error {
			oldStorageID := getColumn(src, "id")
			return copyStorageChildren(old, newIdx, oldStorageID, newStorageID, pause)
		},
	})
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
