package domain

import (
	"strings"
	"time"
)

// Kind classifies a scheduled notification.
type Kind string

const (
	KindReminder Kind = "reminder"
	KindWeekly   Kind = "weekly"
	KindExpiry   Kind = "expiry"
	KindLowStock Kind = "lowstock"
	KindSurvey   Kind = "survey"
)

func (k Kind) String() string {
	return string(k)
}

// singular reports whether at most one notification of this kind exists per
// medication, in which case the identifier carries no fire-time disambiguator.
func (k Kind) singular() bool {
	return k == KindExpiry || k == KindLowStock
}

// CategoryMedication tags notifications that carry accept/snooze actions on
// the client.
const CategoryMedication = "MEDICATION_CATEGORY"

const identifierSeparator = "_"

// Notification is the engine's output: a command for the sink. It is
// transient and never persisted by the engine itself.
type Notification struct {
	Identifier string    `json:"identifier"`
	UserID     string    `json:"user_id"`
	Medication string    `json:"medication"`
	Kind       Kind      `json:"kind"`
	FireAt     time.Time `json:"fire_at"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Category   string    `json:"category"`
}

// MedicationKey returns the identifier prefix owned by one medication.
// Every notification identifier for the medication starts with this prefix,
// which is what makes cancel-by-prefix reconciliation possible.
func MedicationKey(userID, name string) string {
	return userID + identifierSeparator + name + identifierSeparator
}

// Identifier derives the deterministic notification identifier
// {userId}_{name}_{kind}[_{RFC3339 fireAt}]. Recomputing the schedule from
// the same inputs must yield identical identifiers, so reconciliation can
// cancel-and-replace instead of duplicating.
func Identifier(userID, name string, kind Kind, fireAt time.Time) string {
	id := MedicationKey(userID, name) + kind.String()
	if kind.singular() {
		return id
	}
	return id + identifierSeparator + fireAt.UTC().Format(time.RFC3339)
}

// Matches reports whether another record with the same identifier carries
// the same payload. Singular identifiers do not encode the fire time, so a
// matching identifier alone does not prove a pending record is current.
func (n Notification) Matches(other Notification) bool {
	return n.FireAt.Equal(other.FireAt) &&
		n.Title == other.Title &&
		n.Body == other.Body &&
		n.Category == other.Category
}

// BelongsTo reports whether an identifier was derived from the given
// medication key.
func BelongsTo(identifier, medKey string) bool {
	return strings.HasPrefix(identifier, medKey)
}
