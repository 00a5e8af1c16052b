// Package dose computes the even-interval dose schedule for a medication:
// the ordered list of intake times and the pill stock remaining after each.
package dose

import (
	"time"

	"github.com/medbox-genie/reminder-scheduling/internal/domain"
	"github.com/medbox-genie/reminder-scheduling/internal/service/calendar"
)

// Entry is one scheduled intake event.
type Entry struct {
	Index          int       `json:"index"`
	FireAt         time.Time `json:"fire_at"`
	RemainingAfter int       `json:"remaining_after"`
}

// Generate enumerates doses day-major over the medication's duration:
// intervalHours = 24 / dosesPerDay (integer division; a frequency that does
// not divide 24 loses the remainder, matching the stored schedule format),
// hour = (startHour + i*intervalHours) mod 24. Enumeration stops before any
// dose that would take the pill counter negative, so the schedule length is
// min(dosesPerDay*durationDays, totalPills).
//
// Pure function over validated input; callers run Medication.Validate first.
func Generate(med *domain.Medication) []Entry {
	intervalHours := 24 / med.DosesPerDay
	day := calendar.StartOfDay(med.StartDate)

	entries := make([]Entry, 0, med.DosesPerDay*med.DurationDays)
	remaining := med.TotalPills

	for d := 0; d < med.DurationDays; d++ {
		for i := 0; i < med.DosesPerDay; i++ {
			if remaining <= 0 {
				return entries
			}
			remaining--

			hour := (med.StartHour + i*intervalHours) % 24
			entries = append(entries, Entry{
				Index:          len(entries),
				FireAt:         calendar.At(day, hour, med.StartMinute),
				RemainingAfter: remaining,
			})
		}
		day = calendar.AddDays(day, 1)
	}

	return entries
}
