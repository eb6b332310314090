// Package schedule implements the calendar/interval matching semantics and
// retention (persistence) policy evaluation that drive C5's scheduler loop,
// operating on the raw ScheduleEntry/PersistenceEntry types jobconfig parses
// out of a job file.
package schedule

import (
	"strconv"
	"time"

	"github.com/torvald-bar/bargo/internal/jobconfig"
)

// Matches reports whether entry's calendar pattern matches moment: each of
// year/month/day/hour/minute is either "*" (any) or must equal the field's
// numeric value, and moment's weekday must be set in entry's WeekDays mask.
func Matches(entry jobconfig.ScheduleEntry, moment time.Time) bool {
	if !fieldMatches(entry.Year, moment.Year()) {
		return false
	}
	if !fieldMatches(entry.Month, int(moment.Month())) {
		return false
	}
	if !fieldMatches(entry.Day, moment.Day()) {
		return false
	}
	if !fieldMatches(entry.Hour, moment.Hour()) {
		return false
	}
	if !fieldMatches(entry.Minute, moment.Minute()) {
		return false
	}
	return entry.WeekDays&weekdayBit(moment.Weekday()) != 0
}

func fieldMatches(pattern string, value int) bool {
	if pattern == jobconfig.AnyValue || pattern == "" {
		return true
	}
	n, err := strconv.Atoi(pattern)
	if err != nil {
		return false
	}
	return n == value
}

// weekdayBit maps a time.Weekday (Sunday=0) onto the bit0=Monday..bit6=Sunday
// convention ScheduleEntry.WeekDays uses.
func weekdayBit(wd time.Weekday) uint8 {
	switch wd {
	case time.Monday:
		return 1 << 0
	case time.Tuesday:
		return 1 << 1
	case time.Wednesday:
		return 1 << 2
	case time.Thursday:
		return 1 << 3
	case time.Friday:
		return 1 << 4
	case time.Saturday:
		return 1 << 5
	default:
		return 1 << 6
	}
}

// IntervalOpen reports whether entry's minimum-gap gate is open: either no
// interval is configured, or at least IntervalSecs have elapsed since
// lastExecuted.
func IntervalOpen(entry jobconfig.ScheduleEntry, lastExecuted time.Time, now time.Time) bool {
	if entry.IntervalSecs <= 0 {
		return true
	}
	return now.Sub(lastExecuted) >= time.Duration(entry.IntervalSecs)*time.Second
}

// ShouldTrigger combines calendar matching and the interval gate: the
// condition the scheduler loop checks for each enabled schedule on every
// wake-up.
func ShouldTrigger(entry jobconfig.ScheduleEntry, lastExecuted time.Time, now time.Time) bool {
	if !entry.Enabled {
		return false
	}
	return Matches(entry, now) && IntervalOpen(entry, lastExecuted, now)
}
