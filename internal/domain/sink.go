package domain

import "context"

// NotificationSink is the capability that registers and cancels
// notifications with the operating environment. The engine depends only on
// this interface; real OS calls, a server-side scheduler and in-memory test
// fakes all satisfy the same contract.
type NotificationSink interface {
	RequestPermission(ctx context.Context) (bool, error)
	Add(ctx context.Context, n Notification) error
	RemoveByIdentifiers(ctx context.Context, identifiers []string) error
	// ListPending returns the full pending records under the identifier
	// prefix. Reconciliation needs the payloads, not just the identifiers:
	// singular kinds reuse one identifier across recomputations, so only a
	// payload comparison can tell a current record from a stale one.
	ListPending(ctx context.Context, prefix string) ([]Notification, error)
}
