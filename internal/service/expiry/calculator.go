// Package expiry derives the one-time expiry alert and the survey check-in
// times for a medication.
package expiry

import (
	"time"

	"github.com/medbox-genie/reminder-scheduling/internal/domain"
	"github.com/medbox-genie/reminder-scheduling/internal/service/calendar"
)

const (
	// DefaultOffsetMinutes is added to the medication's start minute when
	// placing the expiry alert on the expiry date.
	DefaultOffsetMinutes = 2
	// DefaultSurveyCadenceDays spaces synthesized check-ins when a
	// medication carries no explicit surveys.
	DefaultSurveyCadenceDays = 1
)

type Calculator struct {
	offsetMinutes     int
	surveyCadenceDays int
}

func NewCalculator(offsetMinutes, surveyCadenceDays int) *Calculator {
	if offsetMinutes <= 0 {
		offsetMinutes = DefaultOffsetMinutes
	}
	if surveyCadenceDays <= 0 {
		surveyCadenceDays = DefaultSurveyCadenceDays
	}
	return &Calculator{
		offsetMinutes:     offsetMinutes,
		surveyCadenceDays: surveyCadenceDays,
	}
}

// ExpiryAlert places the expiry alert on the stored date-only expiry date
// at {startHour, startMinute+offset}. Construction goes through the
// calendar helpers, so an overflowing minute rolls into the next hour
// instead of producing an invalid trigger.
func (c *Calculator) ExpiryAlert(med *domain.Medication) time.Time {
	return calendar.At(calendar.StartOfDay(med.ExpiryDate), med.StartHour, med.StartMinute+c.offsetMinutes)
}

// SurveyTimes returns one fire time per incomplete survey, at the survey's
// own date. Completed surveys never produce notifications. Medications
// without explicit surveys get check-ins synthesized on the configured
// cadence through the treatment window, starting one cadence step after the
// first dose.
func (c *Calculator) SurveyTimes(med *domain.Medication) []time.Time {
	if len(med.Surveys) > 0 {
		times := make([]time.Time, 0, len(med.Surveys))
		for _, s := range med.Surveys {
			if s.Completed {
				continue
			}
			times = append(times, s.Date)
		}
		return times
	}

	first := calendar.At(calendar.StartOfDay(med.StartDate), med.StartHour, med.StartMinute)
	var times []time.Time
	for d := c.surveyCadenceDays; d <= med.DurationDays; d += c.surveyCadenceDays {
		times = append(times, calendar.AddDays(first, d))
	}
	return times
}
