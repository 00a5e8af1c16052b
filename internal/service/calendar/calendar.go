// Package calendar holds the time arithmetic the scheduling calculators
// share. All construction goes through time.Date so that overflowing
// components (hour 26, minute 62) normalize into the following hour or day
// instead of producing invalid wall-clock values.
package calendar

import "time"

// At combines the calendar date of d with the given hour and minute.
// Out-of-range components roll forward calendar-safely.
func At(d time.Time, hour, minute int) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, hour, minute, 0, 0, d.Location())
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays moves t forward by n calendar days, preserving time-of-day.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// NextWeekday returns the first date on or after t whose weekday matches
// target. Time-of-day is preserved.
func NextWeekday(t time.Time, target time.Weekday) time.Time {
	next := t
	for next.Weekday() != target {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
