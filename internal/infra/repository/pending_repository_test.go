package repository

import (
	"context"
	"testing"
	"time"

	"github.com/medbox-genie/reminder-scheduling/internal/domain"
	"github.com/medbox-genie/reminder-scheduling/internal/testutil"
)

func pendingNotification(userID, name string, kind domain.Kind, fireAt time.Time) domain.Notification {
	return domain.Notification{
		Identifier: domain.Identifier(userID, name, kind, fireAt),
		UserID:     userID,
		Medication: name,
		Kind:       kind,
		Title:      "Medication Reminder",
		Body:       "Time to take your medication: " + name + ".",
		Category:   domain.CategoryMedication,
		FireAt:     fireAt,
	}
}

func TestAddAndListPending(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	client, cleanup := testutil.SetupRedisContainer(ctx, t)
	defer cleanup()

	repo := NewPendingNotificationRepository(client)

	fireAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	aspirin := pendingNotification("user-1", "Aspirin", domain.KindReminder, fireAt)
	ibuprofen := pendingNotification("user-1", "Ibuprofen", domain.KindReminder, fireAt)

	if err := repo.Add(ctx, aspirin); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := repo.Add(ctx, ibuprofen); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, err := repo.ListPending(ctx, domain.MedicationKey("user-1", "Aspirin"))
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(got) != 1 || got[0].Identifier != aspirin.Identifier {
		t.Errorf("ListPending() = %v, want [%s]", got, aspirin.Identifier)
	}
	if got[0].Body != aspirin.Body || !got[0].FireAt.Equal(fireAt) {
		t.Errorf("round-tripped record = %+v, want %+v", got[0], aspirin)
	}

	all, err := repo.ListPending(ctx, "user-1_")
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListPending() returned %d records, want 2", len(all))
	}
}

func TestRemoveByIdentifiers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	client, cleanup := testutil.SetupRedisContainer(ctx, t)
	defer cleanup()

	repo := NewPendingNotificationRepository(client)

	fireAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	n := pendingNotification("user-1", "Aspirin", domain.KindReminder, fireAt)

	if err := repo.Add(ctx, n); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := repo.RemoveByIdentifiers(ctx, []string{n.Identifier}); err != nil {
		t.Fatalf("RemoveByIdentifiers() error = %v", err)
	}

	pending, err := repo.ListPending(ctx, domain.MedicationKey("user-1", "Aspirin"))
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("ListPending() = %v, want empty", pending)
	}

	due, err := repo.PopDue(ctx, fireAt.Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("PopDue() error = %v", err)
	}
	if len(due) != 0 {
		t.Errorf("PopDue() after remove = %v, want empty", due)
	}
}

func TestPopDueClaimsOnlyDue(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	client, cleanup := testutil.SetupRedisContainer(ctx, t)
	defer cleanup()

	repo := NewPendingNotificationRepository(client)

	now := time.Now().UTC().Truncate(time.Second)
	due := pendingNotification("user-1", "Aspirin", domain.KindReminder, now.Add(-time.Minute))
	future := pendingNotification("user-1", "Ibuprofen", domain.KindReminder, now.Add(time.Hour))

	if err := repo.Add(ctx, due); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := repo.Add(ctx, future); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	claimed, err := repo.PopDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("PopDue() error = %v", err)
	}
	if len(claimed) != 1 || claimed[0].Identifier != due.Identifier {
		t.Fatalf("PopDue() = %v, want only %s", claimed, due.Identifier)
	}

	// Claimed notifications are removed; the future one is still pending.
	again, err := repo.PopDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("PopDue() error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second PopDue() = %v, want empty", again)
	}

	remaining, err := repo.ListPending(ctx, "user-1_")
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(remaining) != 1 || remaining[0].Identifier != future.Identifier {
		t.Errorf("ListPending() = %v, want [%s]", remaining, future.Identifier)
	}
}

func TestRequeueRestoresNotification(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	client, cleanup := testutil.SetupRedisContainer(ctx, t)
	defer cleanup()

	repo := NewPendingNotificationRepository(client)

	now := time.Now().UTC().Truncate(time.Second)
	n := pendingNotification("user-1", "Aspirin", domain.KindReminder, now.Add(-time.Minute))

	if err := repo.Add(ctx, n); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	claimed, err := repo.PopDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("PopDue() error = %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("PopDue() claimed %d, want 1", len(claimed))
	}

	if err := repo.Requeue(ctx, claimed[0]); err != nil {
		t.Fatalf("Requeue() error = %v", err)
	}

	retried, err := repo.PopDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("PopDue() after requeue error = %v", err)
	}
	if len(retried) != 1 || retried[0].Identifier != n.Identifier {
		t.Errorf("PopDue() after requeue = %v, want [%s]", retried, n.Identifier)
	}
}

func TestListPendingRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	client, cleanup := testutil.SetupRedisContainer(ctx, t)
	defer cleanup()

	repo := NewPendingNotificationRepository(client)

	fireAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	n := pendingNotification("user-1", "Aspirin", domain.KindLowStock, fireAt)
	n.Body = "You have critically low stock of Aspirin. Only 2 pill(s) available. Please refill soon!"

	if err := repo.Add(ctx, n); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	got, err := repo.ListPending(ctx, "user-1_")
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ListPending() returned %d, want 1", len(got))
	}
	if got[0].Kind != domain.KindLowStock || got[0].Body != n.Body || !got[0].FireAt.Equal(fireAt) {
		t.Errorf("round-tripped notification = %+v, want %+v", got[0], n)
	}
}
