package jobconfig

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/torvald-bar/bargo/internal/catalog"
)

// ParseError is a single-line parse failure, carrying the offending line
// number and text.
type ParseError struct {
	Line int
	Text string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Warning is a non-fatal parse diagnostic: an unknown key or a deprecated
// key that was mapped and accepted.
type Warning struct {
	Line int
	Message string
}

type section int

const (
	sectionDefault section = iota
	sectionSchedule
	sectionPersistence
)

// ParseFile reads and parses a job file from disk. The returned Job's Name
// is the file's basename (the filename, not a config key, names the job).
func ParseFile(path string) (*Job, []Warning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("file-not-found: %w", err)
	}
	defer f.Close()

	job, warnings, err := Parse(f)
	if job != nil {
		job.Name = filepath.Base(path)
	}
	return job, warnings, err
}

// Parse reads a job file's INI-like contents from r. Invalid individual
// lines are skipped with a ParseError recorded as a warning, per spec's
// "load-time parse errors skip the offending line and continue"; a nil
// error is returned unless the scanner itself fails.
func Parse(r io.Reader) (*Job, []Warning, error) {
	job := NewJob("")
	var warnings []Warning

	cur := sectionDefault
	var curSchedule *ScheduleEntry
	var curPersistence *PersistenceEntry

	closeSchedule := func() {
		if curSchedule == nil {
			return
		}
		if !scheduleDuplicate(job.Schedules, *curSchedule) {
			job.Schedules = append(job.Schedules, *curSchedule)
		}
		curSchedule = nil
	}
	closePersistence := func() {
		if curPersistence == nil {
			return
		}
		if !persistenceDuplicate(job.Persistence, *curPersistence) {
			job.Persistence = append(job.Persistence, *curPersistence)
		}
		curPersistence = nil
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			header := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			header = strings.TrimSpace(header)
			switch {
			case header == "end":
				closeSchedule()
				closePersistence()
				cur = sectionDefault
			case header == "schedule":
				closeSchedule()
				closePersistence()
				cur = sectionSchedule
				s := defaultScheduleEntry()
				curSchedule = &s
			case strings.HasPrefix(header, "persistence"):
				closeSchedule()
				closePersistence()
				cur = sectionPersistence
				p := PersistenceEntry{ArchiveType: catalog.ArchiveTypeNormal, MinKeep: KeepAll, MaxKeep: KeepUnlimited, MaxAgeDays: AgeForever}
				fields := strings.Fields(header)
				if len(fields) > 1 {
					if at, ok := catalog.ParseArchiveType(fields[1]); ok {
						p.ArchiveType = at
					}
				}
				curPersistence = &p
			default:
				warnings = append(warnings, Warning{Line: lineNo, Message: "unknown section: " + header})
			}
			continue
		}

		key, value, ok := splitKeyValue(line)
		if !ok {
			warnings = append(warnings, Warning{Line: lineNo, Message: "malformed line: " + raw})
			continue
		}

		var applyErr error
		switch cur {
		case sectionDefault:
			applyErr = applyDefaultKey(job, key, value, lineNo, &warnings)
		case sectionSchedule:
			if curSchedule == nil {
				s := defaultScheduleEntry()
				curSchedule = &s
			}
			applyErr = applyScheduleKey(job, curSchedule, key, value, lineNo, &warnings)
		case sectionPersistence:
			if curPersistence == nil {
				p := PersistenceEntry{MinKeep: KeepAll, MaxKeep: KeepUnlimited, MaxAgeDays: AgeForever}
				curPersistence = &p
			}
			applyErr = applyPersistenceKey(curPersistence, key, value)
		}
		if applyErr != nil {
			warnings = append(warnings, Warning{Line: lineNo, Message: (&ParseError{Line: lineNo, Text: raw, Err: applyErr}).Error()})
		}
	}
	closeSchedule()
	closePersistence()

	if err := scanner.Err(); err != nil {
		return nil, warnings, fmt.Errorf("io: %w", err)
	}
	return job, warnings, nil
}

func parseArchiveType(s string) (catalog.ArchiveType, error) {
	at, ok := catalog.ParseArchiveType(s)
	if !ok {
		return 0, fmt.Errorf("unknown archive type %q", s)
	}
	return at, nil
}

func defaultScheduleEntry() ScheduleEntry {
	return ScheduleEntry{
		Year: AnyValue, Month: AnyValue, Day: AnyValue,
		Hour: AnyValue, Minute: AnyValue,
		WeekDays: WeekDayAll,
		ArchiveType: catalog.ArchiveTypeNormal,
		Enabled: true,
	}
}

func splitKeyValue(line string) (key, value string, ok bool) {
	idx := strings.Index(line, "=")
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	value = strings.Trim(value, `"`)
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

func scheduleDuplicate(existing []ScheduleEntry, s ScheduleEntry) bool {
	for _, e := range existing {
		ec, sc := e, s
		ec.UUID, sc.UUID = "", ""
		if ec == sc {
			return true
		}
	}
	return false
}

func persistenceDuplicate(existing []PersistenceEntry, p PersistenceEntry) bool {
	for _, e := range existing {
		if e == p {
			return true
		}
	}
	return false
}

func applyDefaultKey(job *Job, key, value string, line int, warnings *[]Warning) error {
	if newKey, newValue, deprecated := resolveDeprecatedKey(key, value); deprecated {
		*warnings = append(*warnings, Warning{Line: line, Message: fmt.Sprintf("deprecated key %q, using %q", key, newKey)})
		key, value = newKey, newValue
	}

	switch key {
	case "UUID":
		job.UUID = value
	case "slave-host-name":
		job.SlaveHostName = value
	case "slave-host-port":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		job.SlaveHostPort = n
	case "slave-host-force-tls":
		job.SlaveHostForceTLS = parseBool(value)
	case "archive-name":
		job.ArchiveName = value
	case "archive-type":
		at, err := parseArchiveType(value)
		if err != nil {
			return err
		}
		job.ArchiveType = at
	case "incremental-list-file":
		job.IncrementalListFile = value
	case "archive-part-size":
		n, err := ParseByteSize(value)
		if err != nil {
			return err
		}
		job.ArchivePartSize = n
	case "directory-strip":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		job.DirectoryStripCount = n
	case "destination":
		job.Destination = value
	case "owner":
		job.Owner = value
	case "pattern-type":
		pt, err := ParsePatternType(value)
		if err != nil {
			return err
		}
		job.PatternType = pt
	case "include-file":
		job.IncludeFile = append(job.IncludeFile, Pattern{Type: job.PatternType, Text: value})
	case "include-image":
		job.IncludeImage = append(job.IncludeImage, Pattern{Type: job.PatternType, Text: value})
	case "exclude":
		job.Exclude = append(job.Exclude, Pattern{Type: job.PatternType, Text: value})
	case "compress-algorithm":
		job.CompressAlgorithm = value
	case "crypt-algorithm":
		job.CryptAlgorithm = value
	case "crypt-type":
		job.CryptType = value
	case "crypt-password-mode":
		job.CryptPasswordMode = value
	case "crypt-password":
		job.CryptPassword = value
	case "crypt-public-key":
		job.CryptPublicKey = value
	case "ftp-login-name":
		job.FTPLoginName = value
	case "ftp-password":
		job.FTPPassword = value
	case "ssh-port":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		job.SSHPort = n
	case "ssh-login-name":
		job.SSHLoginName = value
	case "ssh-password":
		job.SSHPassword = value
	case "ssh-public-key":
		job.SSHPublicKey = value
	case "ssh-private-key":
		job.SSHPrivateKey = value
	case "mount":
		job.Mounts = append(job.Mounts, parseMountEntry(value))
	case "max-storage-size":
		n, err := ParseByteSize(value)
		if err != nil {
			return err
		}
		job.MaxStorageSize = n
	case "volume-size":
		n, err := ParseByteSize(value)
		if err != nil {
			return err
		}
		job.VolumeSize = n
	case "ecc":
		job.ECC = parseBool(value)
	case "archive-file-mode":
		job.ArchiveFileMode = value
	case "restore-entry-mode":
		job.RestoreEntryMode = value
	case "pre-command":
		job.PreCommand = value
	case "post-command":
		job.PostCommand = value
	case "slave-pre-command":
		job.SlavePreCommand = value
	case "slave-post-command":
		job.SlavePostCommand = value
	case "no-stop-on-error":
		job.NoStopOnError = parseBool(value)
	case "no-stop-on-attribute-error":
		job.NoStopOnAttributeError = parseBool(value)
	case "comment":
		job.Comment = value
	default:
		*warnings = append(*warnings, Warning{Line: line, Message: "unknown key: " + key})
	}
	return nil
}

func applyScheduleKey(job *Job, s *ScheduleEntry, key, value string, line int, warnings *[]Warning) error {
	if deprecatedScheduleKeys[key] {
		*warnings = append(*warnings, Warning{Line: line, Message: fmt.Sprintf("deprecated schedule key %q migrated to [persistence]", key)})
		return resolveDeprecatedSchedule(job, s, key, value)
	}

	switch key {
	case "UUID":
		s.UUID = value
	case "parentUUID":
		s.ParentUUID = value
	case "date":
		return parseScheduleDate(s, value)
	case "weekdays":
		wd, err := parseWeekDays(value)
		if err != nil {
			return err
		}
		s.WeekDays = wd
	case "time":
		return parseScheduleTime(s, value)
	case "archive-type":
		at, err := parseArchiveType(value)
		if err != nil {
			return err
		}
		s.ArchiveType = at
	case "interval":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		s.IntervalSecs = n
	case "text":
		s.CustomText = value
	case "no-storage":
		s.NoStorage = parseBool(value)
	case "enabled":
		s.Enabled = parseBool(value)
	default:
		*warnings = append(*warnings, Warning{Line: line, Message: "unknown schedule key: " + key})
	}
	return nil
}

// resolveDeprecatedSchedule folds a deprecated per-schedule min-keep/
// max-keep/max-age value into an equivalent persistence rule for the
// schedule's current archive type, deduping on insert.
func resolveDeprecatedSchedule(job *Job, s *ScheduleEntry, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return err
	}

	var idx = -1
	for i := range job.Persistence {
		if job.Persistence[i].ArchiveType == s.ArchiveType {
			idx = i
			break
		}
	}
	if idx < 0 {
		job.Persistence = append(job.Persistence, PersistenceEntry{
			ArchiveType: s.ArchiveType, MinKeep: KeepAll, MaxKeep: KeepUnlimited, MaxAgeDays: AgeForever,
		})
		idx = len(job.Persistence) - 1
	}

	switch key {
	case "min-keep":
		job.Persistence[idx].MinKeep = n
	case "max-keep":
		job.Persistence[idx].MaxKeep = n
	case "max-age":
		job.Persistence[idx].MaxAgeDays = n
	}
	return nil
}

func applyPersistenceKey(p *PersistenceEntry, key, value string) error {
	n, sentinel := parsePersistenceValue(value)
	var err error
	switch key {
	case "min-keep":
		if !sentinel {
			n, err = atoi(value)
		}
		p.MinKeep = n
	case "max-keep":
		if !sentinel {
			n, err = atoi(value)
		}
		p.MaxKeep = n
	case "max-age":
		if !sentinel {
			n, err = atoi(value)
		}
		p.MaxAgeDays = n
	}
	return err
}

func parsePersistenceValue(value string) (n int, sentinel bool) {
	if value == "*" || strings.EqualFold(value, "all") || strings.EqualFold(value, "unlimited") || strings.EqualFold(value, "forever") {
		return -1, true
	}
	return 0, false
}

func atoi(s string) (int, error) { return strconv.Atoi(s) }

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "yes", "true", "1", "on":
		return true
	default:
		return false
	}
}

func parseMountEntry(value string) MountEntry {
	parts := strings.Fields(value)
	m := MountEntry{Name: value}
	if len(parts) > 0 {
		m.Name = parts[0]
	}
	for _, p := range parts[1:] {
		if strings.EqualFold(p, "always-unmount") {
			m.AlwaysUnmount = true
		}
	}
	return m
}

func parseScheduleDate(s *ScheduleEntry, value string) error {
	parts := strings.Split(value, "-")
	if len(parts) != 3 {
		return fmt.Errorf("expected year-month-day, got %q", value)
	}
	s.Year, s.Month, s.Day = parts[0], parts[1], parts[2]
	return nil
}

func parseScheduleTime(s *ScheduleEntry, value string) error {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return fmt.Errorf("expected hour:minute, got %q", value)
	}
	s.Hour, s.Minute = parts[0], parts[1]
	return nil
}

// parseWeekDays accepts "*" (any) or a comma-separated list of weekday
// abbreviations (Mon,Tue,Wed,Thu,Fri,Sat,Sun), bit0=Mon.. bit6=Sun.
func parseWeekDays(value string) (uint8, error) {
	if value == AnyValue {
		return WeekDayAll, nil
	}
	names := map[string]uint8{"Mon": 1 << 0, "Tue": 1 << 1, "Wed": 1 << 2, "Thu": 1 << 3, "Fri": 1 << 4, "Sat": 1 << 5, "Sun": 1 << 6}
	var mask uint8
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		bit, ok := names[part]
		if !ok {
			return 0, fmt.Errorf("unknown weekday %q", part)
		}
		mask |= bit
	}
	return mask, nil
}
