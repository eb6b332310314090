package jobconfig

// deprecatedKey describes one retired job-file key: its replacement key
// name, and optionally a fixed replacement value (when the deprecated key
// collapses into one specific setting of the new key, e.g. a boolean flag
// becoming one enum value). Grounded on jobs.c's CONFIG_STRUCT_VALUE_DEPRECATED
// table.
type deprecatedKey struct {
	newKey   string
	newValue string // empty: carry the old value through unchanged
}

// deprecatedJobKeys maps every retired default-section key to its
// replacement, per jobs.c lines ~231-240.
var deprecatedJobKeys = map[string]deprecatedKey{
	"remote-host-name":           {newKey: "slave-host-name"},
	"remote-host-port":           {newKey: "slave-host-port"},
	"remote-host-force-ssl":      {newKey: "slave-host-force-tls"},
	"slave-host-force-ssl":       {newKey: "slave-host-force-tls"},
	"overwrite-archive-files":    {newKey: "archive-file-mode", newValue: "overwrite"},
	"overwrite-files":            {newKey: "restore-entry-mode", newValue: "overwrite"},
	"mount-device":               {newKey: "mount"},
	"stop-on-error":              {newKey: "no-stop-on-error"},
}

// deprecatedScheduleKeys lists [schedule]-section keys retired in favor of
// a job-level [persistence <archiveType>] section (jobs.c lines ~217-219).
// They carry no direct replacement key: resolveDeprecatedSchedule folds
// them into a PersistenceEntry instead.
var deprecatedScheduleKeys = map[string]bool{
	"min-keep": true,
	"max-keep": true,
	"max-age":  true,
}

// resolveDeprecatedKey returns the key/value a deprecated default-section
// key should be rewritten to, and whether a warning should be emitted.
func resolveDeprecatedKey(key, value string) (newKey, newValue string, deprecated bool) {
	d, ok := deprecatedJobKeys[key]
	if !ok {
		return key, value, false
	}
	if d.newValue != "" {
		return d.newKey, d.newValue, true
	}
	return d.newKey, value, true
}
