package jobconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/torvald-bar/bargo/internal/catalog"
)

func TestParseByteSize(t *testing.T) {
	cases := map[string]int64{
		"100":   100,
		"10K":   10 * 1024,
		"10KB":  10 * 1024,
		"2M":    2 * 1024 * 1024,
		"1G":    1024 * 1024 * 1024,
		"1.5G":  int64(1.5 * 1024 * 1024 * 1024),
	}
	for input, want := range cases {
		got, err := ParseByteSize(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseByteSize("bogus")
	assert.Error(t, err)
}

func TestFormatByteSize(t *testing.T) {
	assert.Equal(t, "10K", FormatByteSize(10*1024))
	assert.Equal(t, "2M", FormatByteSize(2*1024*1024))
	assert.Equal(t, "100", FormatByteSize(100))
}

func TestParseDefaultSection(t *testing.T) {
	doc := `
UUID = abc-123
archive-type = full
archive-part-size = 10M
destination = /backups
pattern-type = regex
include-file = /home/.*
exclude = /home/.*\.tmp
mount = /mnt/usb
remote-host-name = oldmaster
`
	job, warnings, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "abc-123", job.UUID)
	assert.Equal(t, catalog.ArchiveTypeFull, job.ArchiveType)
	assert.Equal(t, int64(10*1024*1024), job.ArchivePartSize)
	assert.Equal(t, "/backups", job.Destination)
	assert.Equal(t, PatternRegex, job.PatternType)
	require.Len(t, job.IncludeFile, 1)
	assert.Equal(t, "/home/.*", job.IncludeFile[0].Text)
	require.Len(t, job.Mounts, 1)
	assert.Equal(t, "/mnt/usb", job.Mounts[0].Name)
	assert.Equal(t, "oldmaster", job.SlaveHostName)

	foundDeprecatedWarning := false
	for _, w := range warnings {
		if strings.Contains(w.Message, "deprecated key") {
			foundDeprecatedWarning = true
		}
	}
	assert.True(t, foundDeprecatedWarning)
}

func TestParseScheduleDedup(t *testing.T) {
	doc := `
[schedule]
date = *-01-*
time = 02:00
archive-type = full
[end]

[schedule]
date = *-01-*
time = 02:00
archive-type = full
[end]
`
	job, _, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Len(t, job.Schedules, 1)
}

func TestParsePersistenceSentinels(t *testing.T) {
	doc := `
[persistence full]
min-keep = *
max-keep = 5
max-age = *
[end]
`
	job, _, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, job.Persistence, 1)
	p := job.Persistence[0]
	assert.Equal(t, catalog.ArchiveTypeFull, p.ArchiveType)
	assert.Equal(t, KeepAll, p.MinKeep)
	assert.Equal(t, 5, p.MaxKeep)
	assert.Equal(t, AgeForever, p.MaxAgeDays)
}

func TestDeprecatedScheduleKeyMigratesToPersistence(t *testing.T) {
	doc := `
[schedule]
archive-type = full
min-keep = 3
[end]
`
	job, warnings, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, job.Persistence, 1)
	assert.Equal(t, 3, job.Persistence[0].MinKeep)
	assert.Equal(t, catalog.ArchiveTypeFull, job.Persistence[0].ArchiveType)

	found := false
	for _, w := range warnings {
		if strings.Contains(w.Message, "migrated to [persistence]") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestFormatRoundTrip(t *testing.T) {
	job := NewJob("nightly")
	job.UUID = "uuid-1"
	job.ArchiveType = catalog.ArchiveTypeIncremental
	job.Destination = "/backups/nightly"
	job.Schedules = append(job.Schedules, ScheduleEntry{
		Year: "*", Month: "*", Day: "*", Hour: "2", Minute: "0",
		WeekDays: WeekDayAll, ArchiveType: catalog.ArchiveTypeIncremental, Enabled: true,
	})
	job.Persistence = append(job.Persistence, PersistenceEntry{
		ArchiveType: catalog.ArchiveTypeIncremental, MinKeep: KeepAll, MaxKeep: 10, MaxAgeDays: 30,
	})

	text := Format(job)
	reparsed, _, err := Parse(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, job.UUID, reparsed.UUID)
	assert.Equal(t, job.ArchiveType, reparsed.ArchiveType)
	require.Len(t, reparsed.Schedules, 1)
	require.Len(t, reparsed.Persistence, 1)
	assert.Equal(t, 10, reparsed.Persistence[0].MaxKeep)
}

func TestSidecarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/.nightly"

	info := &ScheduleInfo{ByType: map[catalog.ArchiveType]int64{}}
	info.RecordExecution(catalog.ArchiveTypeFull, 1000)
	info.RecordExecution(catalog.ArchiveTypeIncremental, 2000)
	require.NoError(t, WriteSidecar(path, info))

	reread, err := ReadSidecar(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), reread.LastExecuted)
	assert.Equal(t, int64(1000), reread.ByType[catalog.ArchiveTypeFull])
}

func TestSidecarMissingFileIsNotError(t *testing.T) {
	info, err := ReadSidecar("/nonexistent/path/.job")
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.LastExecuted)
}
