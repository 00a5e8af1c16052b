package domain

import (
	"fmt"
	"strings"
	"time"
)

// Medication is the engine's primary input. It is treated as an immutable
// value for the duration of one scheduling pass.
type Medication struct {
	UserID           string    `json:"user_id" firestore:"userId"`
	Name             string    `json:"name" firestore:"medicineName"`
	DosesPerDay      int       `json:"doses_per_day" firestore:"frequency"`
	StartHour        int       `json:"start_hour" firestore:"startHour"`
	StartMinute      int       `json:"start_minute" firestore:"startMinute"`
	DurationDays     int       `json:"duration_days" firestore:"duration"`
	StartDate        time.Time `json:"start_date" firestore:"startDate"`
	ExpiryDate       time.Time `json:"expiry_date" firestore:"expiryDate"`
	TotalPills       int       `json:"total_pills" firestore:"totalPills"`
	ReminderWeekdays []string  `json:"reminder_weekdays,omitempty" firestore:"reminderDays"`
	EndDate          time.Time `json:"end_date,omitempty" firestore:"endDate"`
	Surveys          []Survey  `json:"surveys,omitempty" firestore:"surveys"`
}

// Survey is a follow-up check-in tied to a medication. Only incomplete
// surveys produce notifications.
type Survey struct {
	Date      time.Time         `json:"date" firestore:"date"`
	Completed bool              `json:"completed" firestore:"isCompleted"`
	Prompted  bool              `json:"prompted" firestore:"isPrompted"`
	Responses map[string]string `json:"responses,omitempty" firestore:"responses"`
}

// Key returns the per-medication identifier prefix shared by all
// notifications derived from this medication.
func (m *Medication) Key() string {
	return MedicationKey(m.UserID, m.Name)
}

// HasWeekdayMode reports whether the medication uses the weekday-set
// reminder mode instead of even-interval dosing.
func (m *Medication) HasWeekdayMode() bool {
	return len(m.ReminderWeekdays) > 0
}

// NormalizeExpiry truncates the expiry date to local midnight. The stored
// value is date-only; time-of-day is derived at scheduling time.
func (m *Medication) NormalizeExpiry() {
	y, mo, d := m.ExpiryDate.Date()
	m.ExpiryDate = time.Date(y, mo, d, 0, 0, 0, 0, m.ExpiryDate.Location())
}

// Validate rejects malformed medications before any scheduling pass.
// The engine assumes validated input and never clamps values itself.
func (m *Medication) Validate() error {
	if err := ValidateUserID(m.UserID); err != nil {
		return err
	}
	if m.Name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidMedication)
	}
	// The name is an identifier component; the separator cannot appear in it.
	if strings.Contains(m.Name, identifierSeparator) {
		return fmt.Errorf("%w: name must not contain %q", ErrInvalidMedication, identifierSeparator)
	}
	if m.DosesPerDay < 1 || m.DosesPerDay > 24 {
		return fmt.Errorf("%w: doses per day %d out of range [1, 24]", ErrInvalidMedication, m.DosesPerDay)
	}
	if m.StartHour < 0 || m.StartHour > 23 {
		return fmt.Errorf("%w: start hour %d out of range [0, 23]", ErrInvalidMedication, m.StartHour)
	}
	if m.StartMinute < 0 || m.StartMinute > 59 {
		return fmt.Errorf("%w: start minute %d out of range [0, 59]", ErrInvalidMedication, m.StartMinute)
	}
	if m.DurationDays < 1 {
		return fmt.Errorf("%w: duration %d must be at least one day", ErrInvalidMedication, m.DurationDays)
	}
	if m.TotalPills < 0 {
		return fmt.Errorf("%w: total pills %d is negative", ErrInvalidMedication, m.TotalPills)
	}
	if m.HasWeekdayMode() {
		if m.EndDate.Before(m.StartDate) {
			return fmt.Errorf("%w: end date precedes start date", ErrInvalidMedication)
		}
		for _, day := range m.ReminderWeekdays {
			if _, err := ParseWeekday(day); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateUserID rejects user IDs that cannot form identifiers. The user ID
// is the first identifier component; a separator inside it would make one
// user's identifier prefix collide with another user's medication key.
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is empty", ErrInvalidMedication)
	}
	if strings.Contains(userID, identifierSeparator) {
		return fmt.Errorf("%w: user id must not contain %q", ErrInvalidMedication, identifierSeparator)
	}
	return nil
}

// WeekdayTokens is the canonical ordering of weekday selections, matching
// the order the client presents them in.
var WeekdayTokens = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

var weekdayByToken = map[string]time.Weekday{
	"Mon": time.Monday,
	"Tue": time.Tuesday,
	"Wed": time.Wednesday,
	"Thu": time.Thursday,
	"Fri": time.Friday,
	"Sat": time.Saturday,
	"Sun": time.Sunday,
}

// ParseWeekday converts a weekday token ("Mon".."Sun") into a time.Weekday.
func ParseWeekday(token string) (time.Weekday, error) {
	day, ok := weekdayByToken[token]
	if !ok {
		return 0, fmt.Errorf("%w: unknown weekday token %q", ErrInvalidMedication, token)
	}
	return day, nil
}

// TimeOfDay is an hour/minute pair, used for the per-user preferred
// reminder time.
type TimeOfDay struct {
	Hour   int `json:"hour" firestore:"hour"`
	Minute int `json:"minute" firestore:"minute"`
}

func (t TimeOfDay) Validate() error {
	if t.Hour < 0 || t.Hour > 23 {
		return fmt.Errorf("%w: hour %d out of range [0, 23]", ErrInvalidMedication, t.Hour)
	}
	if t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("%w: minute %d out of range [0, 59]", ErrInvalidMedication, t.Minute)
	}
	return nil
}
