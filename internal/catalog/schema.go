package catalog

import "github.com/torvald-bar/bargo/internal/dbengine"

// CurrentSchemaVersion is the schema version new databases are created at
// and every migration chain converges on.
const CurrentSchemaVersion = 7

// schemaStatements are executed in order to create a fresh catalog at
// CurrentSchemaVersion.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS uuids (
		uuid TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS entities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		jobUUID TEXT NOT NULL DEFAULT '',
		scheduleUUID TEXT NOT NULL DEFAULT '',
		hostName TEXT NOT NULL DEFAULT '',
		userName TEXT NOT NULL DEFAULT '',
		archiveType INTEGER NOT NULL DEFAULT 0,
		createdDateTime INTEGER NOT NULL DEFAULT 0,
		locked INTEGER NOT NULL DEFAULT 0,
		totalEntryCount INTEGER NOT NULL DEFAULT 0,
		totalEntrySize INTEGER NOT NULL DEFAULT 0,
		lastErrorMessage TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS entitiesJobUUIDIndex ON entities (jobUUID)`,
	`CREATE TABLE IF NOT EXISTS storages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entityId INTEGER NOT NULL REFERENCES entities(id),
		name TEXT NOT NULL DEFAULT '',
		createdDateTime INTEGER NOT NULL DEFAULT 0,
		size INTEGER NOT NULL DEFAULT 0,
		state INTEGER NOT NULL DEFAULT 0,
		mode INTEGER NOT NULL DEFAULT 0,
		lastCheckedDateTime INTEGER NOT NULL DEFAULT 0,
		errorMessage TEXT NOT NULL DEFAULT '',
		totalEntryCount INTEGER NOT NULL DEFAULT 0,
		totalEntrySize INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS storagesEntityIdIndex ON storages (entityId)`,
	`CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		storageId INTEGER NOT NULL REFERENCES storages(id),
		type INTEGER NOT NULL DEFAULT 0,
		name TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		timeLastAccess INTEGER NOT NULL DEFAULT 0,
		timeModified INTEGER NOT NULL DEFAULT 0,
		timeLastChanged INTEGER NOT NULL DEFAULT 0,
		userId INTEGER NOT NULL DEFAULT 0,
		groupId INTEGER NOT NULL DEFAULT 0,
		permission INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS entriesStorageIdIndex ON entries (storageId)`,
	`CREATE INDEX IF NOT EXISTS entriesNameIndex ON entries (name)`,
	`CREATE TABLE IF NOT EXISTS fileEntries (
		entryId INTEGER NOT NULL REFERENCES entries(id),
		storageId INTEGER NOT NULL REFERENCES storages(id),
		size INTEGER NOT NULL DEFAULT 0,
		fragmentOffset INTEGER NOT NULL DEFAULT 0,
		fragmentSize INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS imageEntries (
		entryId INTEGER NOT NULL REFERENCES entries(id),
		storageId INTEGER NOT NULL REFERENCES storages(id),
		size INTEGER NOT NULL DEFAULT 0,
		fileSystemType INTEGER NOT NULL DEFAULT 0,
		blockSize INTEGER NOT NULL DEFAULT 0,
		blockOffset INTEGER NOT NULL DEFAULT 0,
		blockCount INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS directoryEntries (
		entryId INTEGER NOT NULL REFERENCES entries(id),
		storageId INTEGER NOT NULL REFERENCES storages(id),
		name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS linkEntries (
		entryId INTEGER NOT NULL REFERENCES entries(id),
		storageId INTEGER NOT NULL REFERENCES storages(id),
		destinationName TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS hardlinkEntries (
		entryId INTEGER NOT NULL REFERENCES entries(id),
		storageId INTEGER NOT NULL REFERENCES storages(id),
		size INTEGER NOT NULL DEFAULT 0,
		fragmentOffset INTEGER NOT NULL DEFAULT 0,
		fragmentSize INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS specialEntries (
		entryId INTEGER NOT NULL REFERENCES entries(id),
		storageId INTEGER NOT NULL REFERENCES storages(id),
		specialType INTEGER NOT NULL DEFAULT 0,
		major INTEGER NOT NULL DEFAULT 0,
		minor INTEGER NOT NULL DEFAULT 0
	)`,
}

// perTypeTables maps each EntryType to the specialization table that holds
// its extra columns. Nothing in this module reads it: the migrations use
// their own perTypeTableName, and Compare walks sqlite_master.
var perTypeTables = map[EntryType]string{
	EntryTypeFile:      "fileEntries",
	EntryTypeImage:     "imageEntries",
	EntryTypeDirectory: "directoryEntries",
	EntryTypeLink:      "linkEntries",
	EntryTypeHardlink:  "hardlinkEntries",
	EntryTypeSpecial:   "specialEntries",
}

// CreateSchema creates every catalog table (idempotent: IF NOT EXISTS) and
// records the schema version in the meta table.
func CreateSchema(h *dbengine.Handle) error {
	for _, stmt := range schemaStatements {
		if err := h.Execute(stmt, nil, nil, dbengine.Forever); err != nil {
			return err
		}
	}
	return setSchemaVersion(h, CurrentSchemaVersion)
}

func setSchemaVersion(h *dbengine.Handle, version int) error {
	return h.Execute(
		"INSERT INTO meta (name, value) VALUES ('version', ?) ON CONFLICT(name) DO UPDATE SET value=excluded.value",
		[]any{version}, nil, dbengine.Forever)
}

// SchemaVersion reads the schema version recorded in the meta table, or 0
// if the database has no meta table or no version row.
func SchemaVersion(h *dbengine.Handle) (int, error) {
	exists, err := h.Exists("SELECT 1 FROM sqlite_master WHERE type='table' AND name='meta'")
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}
	id, err := h.GetID("SELECT value FROM meta WHERE name='version'")
	if err != nil {
		return 0, nil //nolint:nilerr // no version row: treat as a pre-meta database
	}
	return int(id), nil
}
