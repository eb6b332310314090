package catalog

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/torvald-bar/bargo/internal/dbengine"
)

// Index wraps a dbengine.Handle open on a catalog database, exposing the
// bread-and-butter CRUD contracts used by the job engine and the migration
// pipeline.
type Index struct {
	Handle *dbengine.Handle
}

// Open opens path as a catalog index, creating the schema if the database
// is new.
func Open(path string) (*Index, error) {
	h, err := dbengine.Open(path, dbengine.ModeCreate, dbengine.OpenFlags{}, dbengine.Forever)
	if err != nil {
		return nil, err
	}
	version, err := SchemaVersion(h)
	if err != nil {
		h.Close()
		return nil, err
	}
	if version == 0 {
		exists, err := h.Exists("SELECT 1 FROM sqlite_master WHERE type='table' AND name='entities'")
		if err != nil {
			h.Close()
			return nil, err
		}
		if !exists {
			if err := CreateSchema(h); err != nil {
				h.Close()
				return nil, err
			}
		}
	}
	return &Index{Handle: h}, nil
}

func (idx *Index) Close() error { return idx.Handle.Close() }

// FindStorageByID loads the storage row identified by id.
func (idx *Index) FindStorageByID(id int64) (*Storage, error) {
	q, err := idx.Handle.Prepare(
		`SELECT id, entityId, name, createdDateTime, size, state, mode,
		 lastCheckedDateTime, errorMessage, totalEntryCount, totalEntrySize
		 FROM storages WHERE id = ?`, []any{id})
	if err != nil {
		return nil, err
	}
	defer q.Finalize()

	if !q.Next() {
		return nil, fmt.Errorf("catalog: storage %d not found", id)
	}
	var s Storage
	var state, mode int
	if err := q.Scan(&s.ID, &s.EntityID, &s.Name, &s.CreatedDateTime, &s.Size,
		&state, &mode, &s.LastCheckedDateTime, &s.ErrorMessage,
		&s.TotalEntryCount, &s.TotalEntrySize); err != nil {
		return nil, err
	}
	s.State = StorageState(state)
	s.Mode = StorageMode(mode)
	return &s, nil
}

// FindEntity loads the entity matching jobUUID, or nil if none exists.
func (idx *Index) FindEntity(jobUUID string) (*Entity, error) {
	q, err := idx.Handle.Prepare(
		`SELECT id, jobUUID, scheduleUUID, hostName, userName, archiveType,
		 createdDateTime, locked, totalEntryCount, totalEntrySize, lastErrorMessage
		 FROM entities WHERE jobUUID = ? ORDER BY id DESC LIMIT 1`, []any{jobUUID})
	if err != nil {
		return nil, err
	}
	defer q.Finalize()

	if !q.Next() {
		return nil, nil
	}
	var e Entity
	var archiveType int
	var locked int
	if err := q.Scan(&e.ID, &e.JobUUID, &e.ScheduleUUID, &e.HostName, &e.UserName,
		&archiveType, &e.CreatedDateTime, &locked, &e.TotalEntryCount,
		&e.TotalEntrySize, &e.LastErrorMsg); err != nil {
		return nil, err
	}
	e.ArchiveType = ArchiveType(archiveType)
	e.Locked = locked != 0
	return &e, nil
}

// NewEntity inserts a new entities row, assigning a fresh jobUUID if one is
// not supplied, and returns its id.
func (idx *Index) NewEntity(jobUUID, scheduleUUID, hostName, userName string,
	archiveType ArchiveType, createdAt int64, locked bool) (int64, error) {
	if jobUUID == "" {
		jobUUID = uuid.NewString()
	}
	if err := idx.Handle.Execute(
		`INSERT INTO entities (jobUUID, scheduleUUID, hostName, userName, archiveType, createdDateTime, locked)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		[]any{jobUUID, scheduleUUID, hostName, userName, int(archiveType), createdAt, boolToInt(locked)},
		nil, dbengine.Forever); err != nil {
		return 0, err
	}
	return idx.Handle.GetID("SELECT last_insert_rowid()")
}

// UnlockEntity clears the locked flag on the entity identified by id.
func (idx *Index) UnlockEntity(id int64) error {
	return idx.Handle.Execute("UPDATE entities SET locked = 0 WHERE id = ?", []any{id}, nil, dbengine.Forever)
}

// FixBrokenIDs applies v1-database schema hygiene to table: any row whose
// id is NULL or <= 0 is renumbered past the current maximum id, so it can
// participate as a foreign key target during migration.
func (idx *Index) FixBrokenIDs(table string) error {
	maxID, err := idx.Handle.GetID(fmt.Sprintf("SELECT COALESCE(MAX(id), 0) FROM %s", table))
	if err != nil {
		return err
	}
	q, err := idx.Handle.Prepare(fmt.Sprintf("SELECT rowid FROM %s WHERE id IS NULL OR id <= 0", table), nil)
	if err != nil {
		return err
	}
	var rowids []int64
	for q.Next() {
		var rowid int64
		if err := q.Scan(&rowid); err != nil {
			q.Finalize()
			return err
		}
		rowids = append(rowids, rowid)
	}
	if err := q.Err(); err != nil {
		q.Finalize()
		return err
	}
	q.Finalize()

	for _, rowid := range rowids {
		maxID++
		if err := idx.Handle.Execute(
			fmt.Sprintf("UPDATE %s SET id = ? WHERE rowid = ?", table),
			[]any{maxID, rowid}, nil, dbengine.Forever); err != nil {
			return err
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
