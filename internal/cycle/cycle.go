// Package cycle maps task cycle descriptors to concrete trigger expressions and
// enumerates the calendar days a cycle covers.
package cycle

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger expressions for the named cycles.
const (
	ExprHourly  = "0 * * * *"
	ExprDaily   = "0 0 * * *"
	ExprWeekly  = "0 0 * * 0"
	ExprMonthly = "0 0 1 * *"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Named reports whether cycle is one of the built-in cycle names.
func Named(cycle string) bool {
	switch strings.ToLower(cycle) {
	case "hourly", "daily", "weekly", "monthly":
		return true
	}
	return false
}

// Validate checks a raw cron expression.
func Validate(expr string) error {
	_, err := parser.Parse(expr)
	return err
}

// Translate maps a task cycle to a cron trigger expression. Anything that is
// not a named cycle is validated as a cron expression; invalid input falls back
// to the daily expression so a bad cycle degrades to a safe schedule instead of
// dropping the task. Total: never errors.
//
// This fallback is for live scheduling only. The backfill path enumerates
// literal calendar days for invalid input instead (see ExpectedDates); the two
// policies are distinct on purpose.
func Translate(cycle string) string {
	switch strings.ToLower(cycle) {
	case "hourly":
		return ExprHourly
	case "daily":
		return ExprDaily
	case "weekly":
		return ExprWeekly
	case "monthly":
		return ExprMonthly
	default:
		if Validate(cycle) == nil {
			return cycle
		}
		return ExprDaily
	}
}

// ExpectedDates enumerates the calendar days on which a cycle should have
// produced an execution record between start and end, inclusive. Hourly cycles
// are enumerated at day granularity, one entry per day. Weekly cycles walk
// Sundays, monthly cycles the 1st of each month. Custom and unknown cycles walk
// every day.
//
// Returned times are midnights in start's location.
func ExpectedDates(cycle string, start, end time.Time) []time.Time {
	loc := start.Location()
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)

	var dates []time.Time
	switch strings.ToLower(cycle) {
	case "weekly":
		// advance to the first Sunday on or after start
		for day.Weekday() != time.Sunday {
			day = day.AddDate(0, 0, 1)
		}
		for !day.After(last) {
			dates = append(dates, day)
			day = day.AddDate(0, 0, 7)
		}
	case "monthly":
		first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, loc)
		if first.Before(day) {
			first = first.AddDate(0, 1, 0)
		}
		for !first.After(last) {
			dates = append(dates, first)
			first = first.AddDate(0, 1, 0)
		}
	default:
		// hourly, daily, custom and invalid cycles all walk day by day
		for !day.After(last) {
			dates = append(dates, day)
			day = day.AddDate(0, 0, 1)
		}
	}
	return dates
}
