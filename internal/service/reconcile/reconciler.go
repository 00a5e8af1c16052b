// Package reconcile keeps the sink's pending notifications consistent with
// a medication's desired set: cancel what should no longer exist, add what
// is missing, leave matching identifiers alone.
package reconcile

import (
	"context"
	"log/slog"

	"github.com/medbox-genie/reminder-scheduling/internal/domain"
)

// ItemError records a single sink call that failed. Failures never abort
// the rest of the batch.
type ItemError struct {
	Identifier string
	Err        error
}

// Result summarizes one reconciliation pass. AddedByKind counts only the
// notifications actually registered during the pass, not the kept ones.
type Result struct {
	Added       int
	Cancelled   int
	Kept        int
	AddedByKind map[domain.Kind]int
	Failures    []ItemError
}

// OK reports whether every sink call in the pass succeeded.
func (r *Result) OK() bool {
	return len(r.Failures) == 0
}

type Reconciler struct {
	sink domain.NotificationSink
}

func NewReconciler(sink domain.NotificationSink) *Reconciler {
	return &Reconciler{sink: sink}
}

// Reconcile diffs the desired set against the sink's pending records under
// medKey and issues the minimal cancel/add calls. Identifiers are
// deterministic functions of the medication, so calling Reconcile twice
// with the same desired set performs no sink mutations the second time.
// A pending record whose identifier matches but whose payload does not
// (singular kinds keep one identifier across recomputations) is cancelled
// and re-added with the current payload.
func (r *Reconciler) Reconcile(ctx context.Context, medKey string, desired []domain.Notification) (*Result, error) {
	pending, err := r.sink.ListPending(ctx, medKey)
	if err != nil {
		return nil, err
	}

	desiredByID := make(map[string]domain.Notification, len(desired))
	for _, n := range desired {
		desiredByID[n.Identifier] = n
	}

	result := &Result{AddedByKind: make(map[domain.Kind]int)}

	var toCancel []string
	for _, p := range pending {
		if want, ok := desiredByID[p.Identifier]; ok && want.Matches(p) {
			result.Kept++
			delete(desiredByID, p.Identifier)
			continue
		}
		toCancel = append(toCancel, p.Identifier)
	}

	if len(toCancel) > 0 {
		if err := r.sink.RemoveByIdentifiers(ctx, toCancel); err != nil {
			slog.WarnContext(ctx, "failed to cancel stale notifications",
				slog.String("med_key", medKey),
				slog.Int("count", len(toCancel)),
				slog.String("error", err.Error()),
			)
			for _, id := range toCancel {
				result.Failures = append(result.Failures, ItemError{Identifier: id, Err: err})
			}
		} else {
			result.Cancelled = len(toCancel)
		}
	}

	// Add in the desired slice's order so logs stay deterministic.
	for _, n := range desired {
		if _, ok := desiredByID[n.Identifier]; !ok {
			continue
		}
		if err := r.sink.Add(ctx, n); err != nil {
			slog.WarnContext(ctx, "failed to add notification",
				slog.String("identifier", n.Identifier),
				slog.String("kind", n.Kind.String()),
				slog.String("error", err.Error()),
			)
			result.Failures = append(result.Failures, ItemError{Identifier: n.Identifier, Err: err})
			continue
		}
		result.Added++
		result.AddedByKind[n.Kind]++
	}

	slog.DebugContext(ctx, "reconciliation pass finished",
		slog.String("med_key", medKey),
		slog.Int("added", result.Added),
		slog.Int("cancelled", result.Cancelled),
		slog.Int("kept", result.Kept),
		slog.Int("failed", len(result.Failures)),
	)

	return result, nil
}
