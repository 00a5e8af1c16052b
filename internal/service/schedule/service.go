// Package schedule orchestrates one scheduling pass per medication: it
// builds the full desired notification set (dose reminders, weekly
// reminders, expiry, low-stock, surveys) and reconciles it against the
// sink. The engine is stateless between passes; everything it schedules is
// a deterministic function of the medication, the user's preferred time and
// the pass timestamp.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medbox-genie/reminder-scheduling/internal/domain"
	"github.com/medbox-genie/reminder-scheduling/internal/observability/metrics"
	"github.com/medbox-genie/reminder-scheduling/internal/service/dose"
	"github.com/medbox-genie/reminder-scheduling/internal/service/expiry"
	"github.com/medbox-genie/reminder-scheduling/internal/service/reconcile"
	"github.com/medbox-genie/reminder-scheduling/internal/service/stock"
	"github.com/medbox-genie/reminder-scheduling/internal/service/weekly"
)

type Service struct {
	store      domain.MedicationStore
	reconciler *reconcile.Reconciler
	stockCalc  *stock.Calculator
	expiryCalc *expiry.Calculator
	metrics    *metrics.SchedulingMetrics

	now func() time.Time

	// Passes for the same medication must not interleave; identifiers are
	// deterministic, so serializing per key makes concurrent edits
	// last-writer-wins without duplicates.
	mu       sync.Mutex
	medLocks map[string]*sync.Mutex
}

func NewService(
	store domain.MedicationStore,
	sink domain.NotificationSink,
	stockCalc *stock.Calculator,
	expiryCalc *expiry.Calculator,
	schedulingMetrics *metrics.SchedulingMetrics,
) *Service {
	return &Service{
		store:      store,
		reconciler: reconcile.NewReconciler(sink),
		stockCalc:  stockCalc,
		expiryCalc: expiryCalc,
		metrics:    schedulingMetrics,
		now:        time.Now,
		medLocks:   make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockFor(medKey string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.medLocks[medKey]
	if !ok {
		lock = &sync.Mutex{}
		s.medLocks[medKey] = lock
	}
	return lock
}

// Schedule runs one pass for a medication. Invalid medications are rejected
// before any sink mutation.
func (s *Service) Schedule(ctx context.Context, med *domain.Medication) (*PassResult, error) {
	return s.schedulePass(ctx, med, "api")
}

func (s *Service) schedulePass(ctx context.Context, med *domain.Medication, trigger string) (*PassResult, error) {
	if err := med.Validate(); err != nil {
		if s.metrics != nil {
			s.metrics.RecordPass(ctx, trigger, "invalid")
		}
		return nil, err
	}
	med.NormalizeExpiry()

	medKey := med.Key()
	lock := s.lockFor(medKey)
	lock.Lock()
	defer lock.Unlock()

	started := s.now()

	desired, weeklySkipped, err := s.buildDesired(ctx, med, started)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordPass(ctx, trigger, "error")
		}
		return nil, err
	}

	result, err := s.reconciler.Reconcile(ctx, medKey, desired)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordPass(ctx, trigger, "error")
		}
		return nil, err
	}

	s.recordReconcile(ctx, trigger, result, started)

	slog.InfoContext(ctx, "scheduling pass completed",
		slog.String("med_key", medKey),
		slog.String("trigger", trigger),
		slog.Int("desired", len(desired)),
		slog.Int("added", result.Added),
		slog.Int("cancelled", result.Cancelled),
		slog.Int("kept", result.Kept),
		slog.Int("failed", len(result.Failures)),
		slog.Bool("weekly_skipped", weeklySkipped),
	)

	return &PassResult{
		MedKey:        medKey,
		Desired:       len(desired),
		Added:         result.Added,
		Cancelled:     result.Cancelled,
		Kept:          result.Kept,
		Failed:        len(result.Failures),
		WeeklySkipped: weeklySkipped,
	}, nil
}

// Remove cancels every pending notification derived from the medication.
// Invoked on deletion; reconciling against an empty desired set is the
// cancel-everything case.
func (s *Service) Remove(ctx context.Context, userID, name string) (*PassResult, error) {
	medKey := domain.MedicationKey(userID, name)
	lock := s.lockFor(medKey)
	lock.Lock()
	defer lock.Unlock()

	result, err := s.reconciler.Reconcile(ctx, medKey, nil)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordPass(ctx, "remove", "error")
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordPass(ctx, "remove", "success")
		s.metrics.RecordCancelled(ctx, result.Cancelled)
	}

	slog.InfoContext(ctx, "medication notifications removed",
		slog.String("med_key", medKey),
		slog.Int("cancelled", result.Cancelled),
	)

	return &PassResult{
		MedKey:    medKey,
		Cancelled: result.Cancelled,
		Failed:    len(result.Failures),
	}, nil
}

// ResyncUser re-runs a scheduling pass for every stored medication of a
// user. This is the app-start path: stored state wins over whatever the
// sink currently holds.
func (s *Service) ResyncUser(ctx context.Context, userID string) (*ResyncResult, error) {
	runID := uuid.NewString()

	meds, err := s.store.FetchAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch medications: %w", err)
	}

	slog.InfoContext(ctx, "starting resync pass",
		slog.String("run_id", runID),
		slog.String("user_id", userID),
		slog.Int("medications", len(meds)),
	)

	resync := &ResyncResult{
		RunID:       runID,
		UserID:      userID,
		Medications: len(meds),
	}

	for i := range meds {
		pass, err := s.schedulePass(ctx, &meds[i], "resync")
		if err != nil {
			slog.WarnContext(ctx, "resync pass failed for medication",
				slog.String("run_id", runID),
				slog.String("medication", meds[i].Name),
				slog.String("error", err.Error()),
			)
			resync.FailedMeds++
			continue
		}
		resync.Passes = append(resync.Passes, *pass)
	}

	return resync, nil
}

// ResyncAll re-runs a resync pass for every known user. Stores that cannot
// enumerate users are skipped.
func (s *Service) ResyncAll(ctx context.Context) error {
	lister, ok := s.store.(domain.UserLister)
	if !ok {
		slog.InfoContext(ctx, "medication store cannot enumerate users, skipping periodic resync")
		return nil
	}

	users, err := lister.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	var failedUsers int
	for _, userID := range users {
		if _, err := s.ResyncUser(ctx, userID); err != nil {
			slog.WarnContext(ctx, "periodic resync failed for user",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			failedUsers++
		}
	}

	slog.InfoContext(ctx, "periodic resync completed",
		slog.Int("users", len(users)),
		slog.Int("failed_users", failedUsers),
	)
	return nil
}

// WatchChanges consumes the store's change stream and re-runs a scheduling
// pass per event until ctx is cancelled. Stores without streaming support
// are skipped.
func (s *Service) WatchChanges(ctx context.Context) error {
	changes, err := s.store.Changes(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrChangeStreamUnsupported) {
			slog.InfoContext(ctx, "medication store has no change stream, relying on API-driven passes")
			return nil
		}
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			s.handleChange(ctx, change)
		}
	}
}

func (s *Service) handleChange(ctx context.Context, change domain.Change) {
	switch change.Type {
	case domain.ChangeAdded, domain.ChangeUpdated:
		if change.Medication == nil {
			slog.WarnContext(ctx, "change event without medication payload",
				slog.String("type", string(change.Type)),
				slog.String("user_id", change.UserID),
				slog.String("name", change.Name),
			)
			return
		}
		if _, err := s.schedulePass(ctx, change.Medication, "change"); err != nil {
			slog.WarnContext(ctx, "scheduling pass for change event failed",
				slog.String("type", string(change.Type)),
				slog.String("user_id", change.UserID),
				slog.String("name", change.Name),
				slog.String("error", err.Error()),
			)
		}
	case domain.ChangeRemoved:
		if _, err := s.Remove(ctx, change.UserID, change.Name); err != nil {
			slog.WarnContext(ctx, "cancellation for removed medication failed",
				slog.String("user_id", change.UserID),
				slog.String("name", change.Name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// buildDesired computes the complete notification set for one medication.
// The two dosing modes are mutually exclusive: a weekday selection switches
// the medication to weekly reminders at the user's preferred time, and the
// even-interval dose schedule (with its pill accounting and low-stock
// alert) applies otherwise.
func (s *Service) buildDesired(ctx context.Context, med *domain.Medication, now time.Time) ([]domain.Notification, bool, error) {
	var desired []domain.Notification
	weeklySkipped := false

	if med.HasWeekdayMode() {
		occurrences, skipped, err := s.weeklyOccurrences(ctx, med)
		if err != nil {
			return nil, false, err
		}
		weeklySkipped = skipped
		for _, at := range occurrences {
			desired = append(desired, domain.Notification{
				Identifier: domain.Identifier(med.UserID, med.Name, domain.KindWeekly, at),
				UserID:     med.UserID,
				Medication: med.Name,
				Kind:       domain.KindWeekly,
				FireAt:     at,
				Title:      "Medication Reminder",
				Body:       fmt.Sprintf("Time to take your medication: %s.", med.Name),
				Category:   domain.CategoryMedication,
			})
		}
	} else {
		for _, entry := range dose.Generate(med) {
			desired = append(desired, domain.Notification{
				Identifier: domain.Identifier(med.UserID, med.Name, domain.KindReminder, entry.FireAt),
				UserID:     med.UserID,
				Medication: med.Name,
				Kind:       domain.KindReminder,
				FireAt:     entry.FireAt,
				Title:      "Medication Reminder",
				Body:       fmt.Sprintf("Time to take your medication: %s. Pills left: %d.", med.Name, entry.RemainingAfter),
				Category:   domain.CategoryMedication,
			})
		}

		if alert := s.stockCalc.Calculate(med, now); alert != nil {
			body := fmt.Sprintf("You have low stock of %s. Only %d pill(s) left. Please refill soon!", med.Name, alert.Remaining)
			if alert.Immediate {
				body = fmt.Sprintf("You have critically low stock of %s. Only %d pill(s) available. Please refill soon!", med.Name, alert.Remaining)
			}
			desired = append(desired, domain.Notification{
				Identifier: domain.Identifier(med.UserID, med.Name, domain.KindLowStock, alert.FireAt),
				UserID:     med.UserID,
				Medication: med.Name,
				Kind:       domain.KindLowStock,
				FireAt:     alert.FireAt,
				Title:      "Low Stock Alert",
				Body:       body,
				Category:   domain.CategoryMedication,
			})
		}
	}

	expiryAt := s.expiryCalc.ExpiryAlert(med)
	desired = append(desired, domain.Notification{
		Identifier: domain.Identifier(med.UserID, med.Name, domain.KindExpiry, expiryAt),
		UserID:     med.UserID,
		Medication: med.Name,
		Kind:       domain.KindExpiry,
		FireAt:     expiryAt,
		Title:      "Medication Expiry Alert",
		Body:       fmt.Sprintf("Your medication '%s' has expired.", med.Name),
		Category:   domain.CategoryMedication,
	})

	for _, at := range s.expiryCalc.SurveyTimes(med) {
		desired = append(desired, domain.Notification{
			Identifier: domain.Identifier(med.UserID, med.Name, domain.KindSurvey, at),
			UserID:     med.UserID,
			Medication: med.Name,
			Kind:       domain.KindSurvey,
			FireAt:     at,
			Title:      med.Name,
			Body:       "",
			Category:   domain.CategoryMedication,
		})
	}

	// Past fire times are never scheduled. Delivered notifications leave
	// the sink, so re-adding an elapsed fire time would re-deliver it on
	// the next dispatch tick.
	upcoming := desired[:0]
	for _, n := range desired {
		if n.FireAt.After(now) {
			upcoming = append(upcoming, n)
		}
	}

	return upcoming, weeklySkipped, nil
}

func (s *Service) weeklyOccurrences(ctx context.Context, med *domain.Medication) ([]time.Time, bool, error) {
	preferred, err := s.store.FetchPreferredReminderTime(ctx, med.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrPreferredTimeNotSet) {
			// Recoverable: weekly reminders cannot be scheduled yet, the
			// rest of the pass proceeds.
			slog.InfoContext(ctx, "no preferred reminder time, skipping weekly reminders",
				slog.String("user_id", med.UserID),
				slog.String("medication", med.Name),
			)
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("failed to fetch preferred reminder time: %w", err)
	}

	occurrences, err := weekly.Occurrences(med.ReminderWeekdays, &preferred, med.StartDate, med.EndDate)
	if err != nil {
		return nil, false, err
	}
	return occurrences, false, nil
}

func (s *Service) recordReconcile(ctx context.Context, trigger string, result *reconcile.Result, started time.Time) {
	if s.metrics == nil {
		return
	}

	outcome := "success"
	if !result.OK() {
		outcome = "partial"
	}
	s.metrics.RecordPass(ctx, trigger, outcome)
	s.metrics.RecordPassDuration(ctx, trigger, s.now().Sub(started))
	s.metrics.RecordCancelled(ctx, result.Cancelled)
	s.metrics.RecordReconcileFailures(ctx, len(result.Failures))

	// Kept notifications were counted when they were first added.
	for kind, count := range result.AddedByKind {
		s.metrics.RecordScheduled(ctx, kind.String(), count)
	}
}
