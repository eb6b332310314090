package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/torvald-bar/bargo/internal/catalog"
	"github.com/torvald-bar/bargo/internal/jobconfig"
)

func TestMatchesWildcard(t *testing.T) {
	entry := jobconfig.ScheduleEntry{
		Year: "*", Month: "*", Day: "*", Hour: "2", Minute: "30",
		WeekDays: jobconfig.WeekDayAll, Enabled: true,
	}
	moment := time.Date(2026, 7, 29, 2, 30, 0, 0, time.UTC) // Wednesday
	assert.True(t, Matches(entry, moment))

	moment2 := time.Date(2026, 7, 29, 2, 31, 0, 0, time.UTC)
	assert.False(t, Matches(entry, moment2))
}

func TestMatchesWeekdayMask(t *testing.T) {
	entry := jobconfig.ScheduleEntry{
		Year: "*", Month: "*", Day: "*", Hour: "*", Minute: "*",
		WeekDays: 1 << 5, // Saturday only
		Enabled:  true,
	}
	saturday := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)
	assert.True(t, Matches(entry, saturday))
	assert.False(t, Matches(entry, sunday))
}

func TestIntervalGate(t *testing.T) {
	entry := jobconfig.ScheduleEntry{IntervalSecs: 3600}
	last := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)

	assert.False(t, IntervalOpen(entry, last, last.Add(30*time.Minute)))
	assert.True(t, IntervalOpen(entry, last, last.Add(61*time.Minute)))
}

func TestShouldTriggerRespectsEnabled(t *testing.T) {
	entry := jobconfig.ScheduleEntry{
		Year: "*", Month: "*", Day: "*", Hour: "*", Minute: "*",
		WeekDays: jobconfig.WeekDayAll, Enabled: false,
	}
	now := time.Now()
	assert.False(t, ShouldTrigger(entry, time.Time{}, now))
}

func TestEvaluateKeepsMinAndPurgesBeyondMaxAge(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	rule := jobconfig.PersistenceEntry{
		ArchiveType: catalog.ArchiveTypeFull,
		MinKeep:     2,
		MaxKeep:     jobconfig.KeepUnlimited,
		MaxAgeDays:  10,
	}
	runs := []Run{
		{EntityID: 1, ArchiveType: catalog.ArchiveTypeFull, CreatedAt: now},
		{EntityID: 2, ArchiveType: catalog.ArchiveTypeFull, CreatedAt: now.AddDate(0, 0, -5)},
		{EntityID: 3, ArchiveType: catalog.ArchiveTypeFull, CreatedAt: now.AddDate(0, 0, -20)},
		{EntityID: 4, ArchiveType: catalog.ArchiveTypeFull, CreatedAt: now.AddDate(0, 0, -30)},
	}

	purge := Evaluate(rule, runs, now)
	assert.ElementsMatch(t, []int64{3, 4}, purge)
}

func TestEvaluateKeepAllSentinelPurgesNothing(t *testing.T) {
	now := time.Now()
	rule := jobconfig.PersistenceEntry{
		ArchiveType: catalog.ArchiveTypeFull,
		MinKeep:     jobconfig.KeepAll,
		MaxKeep:     jobconfig.KeepUnlimited,
		MaxAgeDays:  jobconfig.AgeForever,
	}
	runs := []Run{
		{EntityID: 1, ArchiveType: catalog.ArchiveTypeFull, CreatedAt: now.AddDate(-5, 0, 0)},
	}
	assert.Empty(t, Evaluate(rule, runs, now))
}

func TestEvaluateMaxKeepCaps(t *testing.T) {
	now := time.Now()
	rule := jobconfig.PersistenceEntry{
		ArchiveType: catalog.ArchiveTypeFull,
		MinKeep:     0,
		MaxKeep:     1,
		MaxAgeDays:  jobconfig.AgeForever,
	}
	runs := []Run{
		{EntityID: 1, ArchiveType: catalog.ArchiveTypeFull, CreatedAt: now},
		{EntityID: 2, ArchiveType: catalog.ArchiveTypeFull, CreatedAt: now.Add(-time.Hour)},
	}
	purge := Evaluate(rule, runs, now)
	assert.Equal(t, []int64{2}, purge)
}
