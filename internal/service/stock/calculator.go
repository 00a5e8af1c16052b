// Package stock derives the single low-stock alert for a medication from
// its dose schedule.
package stock

import (
	"log/slog"
	"time"

	"github.com/medbox-genie/reminder-scheduling/internal/domain"
	"github.com/medbox-genie/reminder-scheduling/internal/service/dose"
)

const (
	// DefaultThreshold is the remaining-pill count at or below which the
	// alert fires, independent of dosing frequency.
	DefaultThreshold = 3
	// DefaultGracePeriod delays the alert enough for the scheduling pass to
	// finish registering before it can fire.
	DefaultGracePeriod = 5 * time.Minute
)

// Alert is the computed low-stock trigger. Exactly one exists per
// medication per scheduling pass.
type Alert struct {
	// Immediate is set when the stock is already at or below the threshold
	// at computation time.
	Immediate bool
	// DoseIndex and DoseTime identify the dose whose consumption first
	// drops remaining stock to the threshold. Zero values on the immediate
	// path.
	DoseIndex int
	DoseTime  time.Time
	// FireAt is when the alert fires: now plus the grace period.
	FireAt time.Time
	// Remaining is the pill count the alert reports.
	Remaining int
}

type Calculator struct {
	threshold int
	grace     time.Duration
}

func NewCalculator(threshold int, grace time.Duration) *Calculator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Calculator{threshold: threshold, grace: grace}
}

// Calculate walks the same dose enumeration as dose.Generate and finds the
// first dose after which remaining stock is at or below the threshold.
//
// The alert fires at now+grace rather than at the triggering dose's own
// time, reproducing the stored schedule's behavior; DoseTime carries the
// dose timestamp for callers that want it. Returns nil when stock never
// reaches the threshold within the schedule.
func (c *Calculator) Calculate(med *domain.Medication, now time.Time) *Alert {
	if med.TotalPills <= c.threshold {
		return &Alert{
			Immediate: true,
			FireAt:    now.Add(c.grace),
			Remaining: med.TotalPills,
		}
	}

	for _, entry := range dose.Generate(med) {
		if entry.RemainingAfter <= c.threshold {
			return &Alert{
				DoseIndex: entry.Index,
				DoseTime:  entry.FireAt,
				FireAt:    now.Add(c.grace),
				Remaining: entry.RemainingAfter,
			}
		}
	}

	slog.Debug("stock never reaches low threshold within schedule",
		slog.String("medication", med.Name),
		slog.Int("total_pills", med.TotalPills),
		slog.Int("threshold", c.threshold),
	)
	return nil
}

func (c *Calculator) Threshold() int {
	return c.threshold
}
