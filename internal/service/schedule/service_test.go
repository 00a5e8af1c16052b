package schedule

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbox-genie/reminder-scheduling/internal/domain"
	"github.com/medbox-genie/reminder-scheduling/internal/service/expiry"
	"github.com/medbox-genie/reminder-scheduling/internal/service/stock"
)

type fakeStore struct {
	meds          map[string][]domain.Medication
	preferred     map[string]domain.TimeOfDay
	changes       chan domain.Change
	changesErr    error
	preferredErrs map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		meds:          make(map[string][]domain.Medication),
		preferred:     make(map[string]domain.TimeOfDay),
		preferredErrs: make(map[string]error),
	}
}

func (f *fakeStore) FetchAll(_ context.Context, userID string) ([]domain.Medication, error) {
	return f.meds[userID], nil
}

func (f *fakeStore) Fetch(_ context.Context, userID, name string) (*domain.Medication, error) {
	for i := range f.meds[userID] {
		if f.meds[userID][i].Name == name {
			return &f.meds[userID][i], nil
		}
	}
	return nil, domain.ErrMedicationNotFound
}

func (f *fakeStore) FetchPreferredReminderTime(_ context.Context, userID string) (domain.TimeOfDay, error) {
	if err := f.preferredErrs[userID]; err != nil {
		return domain.TimeOfDay{}, err
	}
	t, ok := f.preferred[userID]
	if !ok {
		return domain.TimeOfDay{}, domain.ErrPreferredTimeNotSet
	}
	return t, nil
}

func (f *fakeStore) Save(_ context.Context, med *domain.Medication) error {
	f.meds[med.UserID] = append(f.meds[med.UserID], *med)
	return nil
}

func (f *fakeStore) Delete(_ context.Context, _, _ string) error { return nil }

func (f *fakeStore) ListUsers(_ context.Context) ([]string, error) {
	var users []string
	for id := range f.meds {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

func (f *fakeStore) Changes(_ context.Context) (<-chan domain.Change, error) {
	if f.changesErr != nil {
		return nil, f.changesErr
	}
	return f.changes, nil
}

type memorySink struct {
	mu       sync.Mutex
	pending  map[string]domain.Notification
	addCalls int
}

func newMemorySink() *memorySink {
	return &memorySink{pending: make(map[string]domain.Notification)}
}

func (m *memorySink) RequestPermission(_ context.Context) (bool, error) { return true, nil }

func (m *memorySink) Add(_ context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls++
	m.pending[n.Identifier] = n
	return nil
}

func (m *memorySink) RemoveByIdentifiers(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.pending, id)
	}
	return nil
}

func (m *memorySink) ListPending(_ context.Context, prefix string) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for id, n := range m.pending {
		if domain.BelongsTo(id, prefix) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out, nil
}

func (m *memorySink) byKind(kind domain.Kind) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.pending {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func newTestService(store domain.MedicationStore, sink domain.NotificationSink) *Service {
	svc := NewService(
		store,
		sink,
		stock.NewCalculator(3, 5*time.Minute),
		expiry.NewCalculator(2, 1),
		nil,
	)
	svc.now = func() time.Time {
		return time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func doseMedication() *domain.Medication {
	return &domain.Medication{
		UserID:       "user-1",
		Name:         "Aspirin",
		DosesPerDay:  2,
		StartHour:    8,
		StartMinute:  0,
		DurationDays: 1,
		StartDate:    time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		ExpiryDate:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		TotalPills:   10,
	}
}

func TestScheduleBuildsFullDesiredSet(t *testing.T) {
	store := newFakeStore()
	sink := newMemorySink()
	svc := newTestService(store, sink)

	result, err := svc.Schedule(context.Background(), doseMedication())
	require.NoError(t, err)

	// 2 dose reminders + 1 expiry + 1 survey check-in; 10 pills over 2
	// doses never hit the low-stock threshold.
	assert.Equal(t, 4, result.Desired)
	assert.Equal(t, 4, result.Added)
	assert.Empty(t, sink.byKind(domain.KindLowStock))
	assert.Len(t, sink.byKind(domain.KindReminder), 2)
	assert.Len(t, sink.byKind(domain.KindExpiry), 1)
	assert.Len(t, sink.byKind(domain.KindSurvey), 1)
}

func TestScheduleSinglePillTruncation(t *testing.T) {
	store := newFakeStore()
	sink := newMemorySink()
	svc := newTestService(store, sink)

	med := doseMedication()
	med.TotalPills = 1

	_, err := svc.Schedule(context.Background(), med)
	require.NoError(t, err)

	reminders := sink.byKind(domain.KindReminder)
	require.Len(t, reminders, 1, "second dose must not be scheduled with one pill")
	assert.True(t, reminders[0].FireAt.Equal(time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)))
	assert.Contains(t, reminders[0].Body, "Pills left: 0")
	// One pill is at the threshold, so the low-stock alert fires immediately.
	require.Len(t, sink.byKind(domain.KindLowStock), 1)
}

func TestScheduleIdempotentAcrossPasses(t *testing.T) {
	store := newFakeStore()
	sink := newMemorySink()
	svc := newTestService(store, sink)

	med := doseMedication()
	first, err := svc.Schedule(context.Background(), med)
	require.NoError(t, err)
	addsAfterFirst := sink.addCalls

	second, err := svc.Schedule(context.Background(), med)
	require.NoError(t, err)

	assert.Equal(t, first.Desired, second.Desired)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, first.Desired, second.Kept)
	assert.Equal(t, addsAfterFirst, sink.addCalls, "second pass must not re-add")
}

func TestSchedulePastFireTimesNotScheduled(t *testing.T) {
	store := newFakeStore()
	sink := newMemorySink()
	svc := newTestService(store, sink)

	// Doses on Jan 4, 5 and 6 at 8:00; the pass runs at Jan 5 12:00, so
	// only the Jan 6 dose is still upcoming.
	med := doseMedication()
	med.DosesPerDay = 1
	med.DurationDays = 3
	med.StartDate = time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC)

	_, err := svc.Schedule(context.Background(), med)
	require.NoError(t, err)

	reminders := sink.byKind(domain.KindReminder)
	require.Len(t, reminders, 1)
	assert.True(t, reminders[0].FireAt.Equal(time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)))

	pending, _ := sink.ListPending(context.Background(), med.Key())
	for _, n := range pending {
		assert.True(t, n.FireAt.After(svc.now()), "pending %s fires in the past", n.Identifier)
	}
}

func TestScheduleDoesNotReAddDeliveredDose(t *testing.T) {
	store := newFakeStore()
	sink := newMemorySink()
	svc := newTestService(store, sink)

	med := doseMedication()
	_, err := svc.Schedule(context.Background(), med)
	require.NoError(t, err)

	// The dispatcher delivers the 8:00 dose and drops it from the sink.
	delivered := domain.Identifier(med.UserID, med.Name, domain.KindReminder,
		time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC))
	require.NoError(t, sink.RemoveByIdentifiers(context.Background(), []string{delivered}))
	svc.now = func() time.Time {
		return time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	}

	result, err := svc.Schedule(context.Background(), med)
	require.NoError(t, err)

	assert.Zero(t, result.Added, "elapsed dose must not come back on a later pass")
	if _, ok := sink.pending[delivered]; ok {
		t.Error("delivered dose was rescheduled")
	}
}

func TestScheduleEditCancelsStaleReminders(t *testing.T) {
	store := newFakeStore()
	sink := newMemorySink()
	svc := newTestService(store, sink)

	med := doseMedication()
	_, err := svc.Schedule(context.Background(), med)
	require.NoError(t, err)

	edited := doseMedication()
	edited.StartHour = 9 // shifts every dose and survey identifier

	result, err := svc.Schedule(context.Background(), edited)
	require.NoError(t, err)

	// Both dose reminders and the survey check-in move; only the singular
	// expiry identifier survives the edit.
	assert.Equal(t, 3, result.Cancelled)
	assert.Equal(t, 1, result.Kept)
	for _, n := range sink.byKind(domain.KindReminder) {
		assert.Equal(t, 9, n.FireAt.Hour())
	}
}

func TestScheduleEditRefreshesLowStockAlert(t *testing.T) {
	store := newFakeStore()
	sink := newMemorySink()
	svc := newTestService(store, sink)

	med := doseMedication()
	med.TotalPills = 2
	_, err := svc.Schedule(context.Background(), med)
	require.NoError(t, err)

	// The low-stock identifier has no fire-time component, so a recomputed
	// alert reuses it. The pending record must pick up the new body.
	edited := doseMedication()
	edited.TotalPills = 1
	_, err = svc.Schedule(context.Background(), edited)
	require.NoError(t, err)

	alerts := sink.byKind(domain.KindLowStock)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Body, "Only 1 pill(s) available")
}

func TestScheduleRejectsInvalidMedication(t *testing.T) {
	store := newFakeStore()
	sink := newMemorySink()
	svc := newTestService(store, sink)

	med := doseMedication()
	med.DurationDays = 0

	_, err := svc.Schedule(context.Background(), med)
	assert.ErrorIs(t, err, domain.ErrInvalidMedication)
	assert.Zero(t, sink.addCalls, "invalid input must not reach the sink")
}

func TestScheduleWeekdayModeUsesPreferredTime(t *testing.T) {
	store := newFakeStore()
	store.preferred["user-1"] = domain.TimeOfDay{Hour: 9, Minute: 30}
	sink := newMemorySink()
	svc := newTestService(store, sink)

	med := doseMedication()
	med.ReminderWeekdays = []string{"Mon"}
	med.StartDate = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC) // Monday
	med.EndDate = med.StartDate.AddDate(0, 0, 14)

	result, err := svc.Schedule(context.Background(), med)
	require.NoError(t, err)
	assert.False(t, result.WeeklySkipped)

	weeklies := sink.byKind(domain.KindWeekly)
	require.Len(t, weeklies, 3)
	for _, n := range weeklies {
		assert.Equal(t, 9, n.FireAt.Hour())
		assert.Equal(t, 30, n.FireAt.Minute())
	}
	assert.Empty(t, sink.byKind(domain.KindReminder), "weekday mode replaces interval dosing")
}

func TestScheduleWeekdayModeSkipsWithoutPreferredTime(t *testing.T) {
	store := newFakeStore()
	sink := newMemorySink()
	svc := newTestService(store, sink)

	med := doseMedication()
	med.ReminderWeekdays = []string{"Mon"}
	med.EndDate = med.StartDate.AddDate(0, 0, 14)

	result, err := svc.Schedule(context.Background(), med)
	require.NoError(t, err)

	assert.True(t, result.WeeklySkipped)
	assert.Empty(t, sink.byKind(domain.KindWeekly))
	// Expiry and survey notifications still go out.
	assert.Len(t, sink.byKind(domain.KindExpiry), 1)
}

func TestRemoveCancelsEverything(t *testing.T) {
	store := newFakeStore()
	sink := newMemorySink()
	svc := newTestService(store, sink)

	med := doseMedication()
	_, err := svc.Schedule(context.Background(), med)
	require.NoError(t, err)

	result, err := svc.Remove(context.Background(), med.UserID, med.Name)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Cancelled)
	pending, _ := sink.ListPending(context.Background(), med.Key())
	assert.Empty(t, pending)
}

func TestResyncUserCoversAllMedications(t *testing.T) {
	store := newFakeStore()
	sink := newMemorySink()
	svc := newTestService(store, sink)

	first := doseMedication()
	second := doseMedication()
	second.Name = "Ibuprofen"
	store.meds["user-1"] = []domain.Medication{*first, *second}

	result, err := svc.ResyncUser(context.Background(), "user-1")
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 2, result.Medications)
	assert.Len(t, result.Passes, 2)
	assert.Zero(t, result.FailedMeds)

	aspirin, _ := sink.ListPending(context.Background(), first.Key())
	ibuprofen, _ := sink.ListPending(context.Background(), second.Key())
	assert.NotEmpty(t, aspirin)
	assert.NotEmpty(t, ibuprofen)
}

func TestResyncAllCoversEveryUser(t *testing.T) {
	store := newFakeStore()
	sink := newMemorySink()
	svc := newTestService(store, sink)

	first := doseMedication()
	second := doseMedication()
	second.UserID = "user-2"
	store.meds["user-1"] = []domain.Medication{*first}
	store.meds["user-2"] = []domain.Medication{*second}

	require.NoError(t, svc.ResyncAll(context.Background()))

	for _, med := range []*domain.Medication{first, second} {
		pending, _ := sink.ListPending(context.Background(), med.Key())
		assert.NotEmpty(t, pending, "user %s has no pending notifications", med.UserID)
	}
}

func TestWatchChangesHandlesEvents(t *testing.T) {
	store := newFakeStore()
	store.changes = make(chan domain.Change, 2)
	sink := newMemorySink()
	svc := newTestService(store, sink)

	med := doseMedication()
	store.changes <- domain.Change{
		Type:       domain.ChangeAdded,
		UserID:     med.UserID,
		Name:       med.Name,
		Medication: med,
	}
	store.changes <- domain.Change{
		Type:   domain.ChangeRemoved,
		UserID: med.UserID,
		Name:   med.Name,
	}
	close(store.changes)

	err := svc.WatchChanges(context.Background())
	require.NoError(t, err)

	pending, _ := sink.ListPending(context.Background(), med.Key())
	assert.Empty(t, pending, "removal event cancels what the add event scheduled")
}

func TestWatchChangesUnsupportedStore(t *testing.T) {
	store := newFakeStore()
	store.changesErr = domain.ErrChangeStreamUnsupported
	svc := newTestService(store, newMemorySink())

	assert.NoError(t, svc.WatchChanges(context.Background()))
}
