// Package weekly expands a weekday-set reminder selection into concrete
// occurrences inside a date window.
package weekly

import (
	"errors"
	"time"

	"github.com/medbox-genie/reminder-scheduling/internal/domain"
	"github.com/medbox-genie/reminder-scheduling/internal/service/calendar"
)

// ErrPreferredTimeUnavailable signals that the user has no preferred
// reminder time configured. Callers skip weekly scheduling instead of
// substituting a default time.
var ErrPreferredTimeUnavailable = errors.New("preferred reminder time unavailable")

// Occurrences returns every occurrence of each selected weekday between
// start and end inclusive, at the preferred time of day. Output is grouped
// by weekday in the order given, chronological within each weekday; the
// overall set is what matters for scheduling, but the deterministic order
// keeps recomputation stable.
func Occurrences(weekdays []string, preferred *domain.TimeOfDay, start, end time.Time) ([]time.Time, error) {
	if preferred == nil {
		return nil, ErrPreferredTimeUnavailable
	}
	if err := preferred.Validate(); err != nil {
		return nil, err
	}

	windowStart := calendar.StartOfDay(start)
	windowEnd := calendar.At(end, preferred.Hour, preferred.Minute)

	var occurrences []time.Time
	for _, token := range weekdays {
		day, err := domain.ParseWeekday(token)
		if err != nil {
			return nil, err
		}

		at := calendar.At(calendar.NextWeekday(windowStart, day), preferred.Hour, preferred.Minute)
		for !at.After(windowEnd) {
			occurrences = append(occurrences, at)
			at = calendar.AddDays(at, 7)
		}
	}

	return occurrences, nil
}
