package domain

import "context"

// ChangeType classifies a medication store change event.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeUpdated ChangeType = "updated"
	ChangeRemoved ChangeType = "removed"
)

// Change is one medication store change event. For removals only UserID and
// Name are guaranteed to be populated.
type Change struct {
	Type       ChangeType
	UserID     string
	Name       string
	Medication *Medication
}

// MedicationStore is the persistence capability consumed by the scheduling
// engine. The engine never writes medications; it only reads them and the
// per-user preferred reminder time.
type MedicationStore interface {
	FetchAll(ctx context.Context, userID string) ([]Medication, error)
	Fetch(ctx context.Context, userID, name string) (*Medication, error)
	// FetchPreferredReminderTime returns ErrPreferredTimeNotSet when the user
	// has not configured one. Callers must skip weekly reminders in that case
	// rather than fall back to a default time.
	FetchPreferredReminderTime(ctx context.Context, userID string) (TimeOfDay, error)
	Save(ctx context.Context, med *Medication) error
	Delete(ctx context.Context, userID, name string) error
	// Changes streams add/update/remove events across all users until ctx is
	// cancelled. Stores without change streaming return
	// ErrChangeStreamUnsupported.
	Changes(ctx context.Context) (<-chan Change, error)
}

// UserLister is an optional store capability used by the periodic resync
// job to enumerate every known user.
type UserLister interface {
	ListUsers(ctx context.Context) ([]string, error)
}
