// Package migrations implements the catalog's forward-only schema upgrade
// chain: one Migration per historical index version, each a sequence of
// dbengine.CopyTable invocations copying an old-format database into a
// fresh one at catalog.CurrentSchemaVersion.
package migrations

import (
	"fmt"

	"github.com/torvald-bar/bargo/internal/catalog"
	"github.com/torvald-bar/bargo/internal/dbengine"
)

// Migration upgrades a database at FromVersion into newIndex, which has
// already been created at catalog.CurrentSchemaVersion.
type Migration struct {
	FromVersion int
	Name string
	Func func(old, new *catalog.Index, progress ProgressFunc, pause dbengine.PauseFunc) error
}

// ProgressFunc is invoked periodically during a migration with a
// human-readable stage description and a 0..1 fraction estimate.
type ProgressFunc func(stage string, fraction float64)

var registry = []Migration{
	{FromVersion: 1, Name: "v1", Func: migrateFromV1},
	{FromVersion: 6, Name: "v6", Func: migrateFromV6},
}

// Find returns the migration registered for fromVersion, or false if the
// chain has no entry for it.
func Find(fromVersion int) (Migration, bool) {
	for _, m := range registry {
		if m.FromVersion == fromVersion {
			return m, true
		}
	}
	return Migration{}, false
}

// Run migrates oldPath (opened read-only) into a freshly created database
// at newPath, dispatching to the registered migration for oldPath's schema
// version. If interrupt is non-nil, it is registered as a progress handler
// on the source database: once it returns true, the in-flight table copy
// aborts with dbengine.ErrInterrupted instead of running to completion.
func Run(oldPath, newPath string, progress ProgressFunc, pause dbengine.PauseFunc, interrupt dbengine.ProgressHandler) error {
	oldHandle, err := dbengine.Open(oldPath, dbengine.ModeRead, dbengine.OpenFlags{}, dbengine.Forever)
	if err != nil {
		return err
	}
	defer oldHandle.Close()
	if interrupt != nil {
		oldHandle.RegisterProgressHandler(interrupt)
	}
	oldIndex := &catalog.Index{Handle: oldHandle}

	version, err := catalog.SchemaVersion(oldHandle)
	if err != nil {
		return err
	}
	if version == catalog.CurrentSchemaVersion {
		return fmt.Errorf("migrations: %s is already at the current schema version", oldPath)
	}

	migration, ok := Find(version)
	if !ok {
		return fmt.Errorf("migrations: no migration registered for schema version %d", version)
	}

	newIndex, err := catalog.Open(newPath)
	if err != nil {
		return err
	}
	defer newIndex.Close()

	if progress == nil {
		progress = func(string, float64) {}
	}
	return migration.Func(oldIndex, newIndex, progress, pause)
}
