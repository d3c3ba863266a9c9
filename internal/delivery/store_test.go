package delivery

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/broadwing/dispatch/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "test.db"), nil)
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newQueuedRecord(id string) *domain.DeliveryRecord {
	return &domain.DeliveryRecord{
		ID:         id,
		SessionID:  "session-1",
		Recipient:  "jane@example.com",
		Channel:    domain.ChannelMail,
		Status:     domain.StatusQueued,
		MaxRetries: 3,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestStore_InsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := newQueuedRecord("rec-1")
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Get(ctx, "rec-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Recipient != "jane@example.com" || got.Status != domain.StatusQueued {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get(context.Background(), "missing"); err != domain.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ApplyStatus_ForwardTransitionFillsTimestamp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rec := newQueuedRecord("rec-2")
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now := time.Now().UTC()
	updated, err := store.ApplyStatus(ctx, "rec-2", domain.StatusSending, now, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.StatusSending {
		t.Errorf("expected sending, got %s", updated.Status)
	}

	updated, err = store.ApplyStatus(ctx, "rec-2", domain.StatusSent, now, "wamid.123", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.SentAt == nil {
		t.Error("expected SentAt to be filled")
	}
	if updated.ProviderID != "wamid.123" {
		t.Errorf("expected provider id to be recorded, got %q", updated.ProviderID)
	}
}

func TestStore_ApplyStatus_LateArrivalDoesNotRegressStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rec := newQueuedRecord("rec-3")
	store.Insert(ctx, rec)

	now := time.Now().UTC()
	store.ApplyStatus(ctx, "rec-3", domain.StatusSending, now, "", "")
	store.ApplyStatus(ctx, "rec-3", domain.StatusSent, now, "", "")
	store.ApplyStatus(ctx, "rec-3", domain.StatusDelivered, now, "", "")
	store.ApplyStatus(ctx, "rec-3", domain.StatusRead, now, "", "")

	// A "delivered" webhook arrives late, after "read" was already recorded.
	updated, err := store.ApplyStatus(ctx, "rec-3", domain.StatusDelivered, now.Add(-time.Minute), "", "")
	if err != nil {
		t.Fatalf("unexpected error treating late arrival as rejection: %v", err)
	}
	if updated.Status != domain.StatusRead {
		t.Errorf("expected status to remain read, got %s", updated.Status)
	}
}

func TestStore_ApplyStatus_UnknownTransitionRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rec := newQueuedRecord("rec-4")
	store.Insert(ctx, rec)

	_, err := store.ApplyStatus(ctx, "rec-4", domain.StatusRead, time.Now().UTC(), "", "")
	if _, ok := err.(*domain.InvalidTransition); !ok {
		t.Fatalf("expected InvalidTransition, got %v (%T)", err, err)
	}
}

func TestStore_ApplyStatus_RetryRequeueIncrementsCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rec := newQueuedRecord("rec-5")
	store.Insert(ctx, rec)

	now := time.Now().UTC()
	store.ApplyStatus(ctx, "rec-5", domain.StatusSending, now, "", "")
	store.ApplyStatus(ctx, "rec-5", domain.StatusFailed, now, "", "smtp timeout")

	updated, err := store.ApplyStatus(ctx, "rec-5", domain.StatusQueued, now, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", updated.RetryCount)
	}
	if updated.Error != "" {
		t.Errorf("expected error cleared on requeue, got %q", updated.Error)
	}
}

func TestStore_ApplyStatus_RetryRefusedOnceExhausted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rec := newQueuedRecord("rec-6")
	rec.MaxRetries = 1
	store.Insert(ctx, rec)

	now := time.Now().UTC()
	store.ApplyStatus(ctx, "rec-6", domain.StatusSending, now, "", "")
	store.ApplyStatus(ctx, "rec-6", domain.StatusFailed, now, "", "boom")
	store.ApplyStatus(ctx, "rec-6", domain.StatusQueued, now, "", "") // consumes the one retry
	store.ApplyStatus(ctx, "rec-6", domain.StatusSending, now, "", "")
	store.ApplyStatus(ctx, "rec-6", domain.StatusFailed, now, "", "boom again")

	_, err := store.ApplyStatus(ctx, "rec-6", domain.StatusQueued, now, "", "")
	if _, ok := err.(*domain.InvalidTransition); !ok {
		t.Fatalf("expected InvalidTransition once retries are exhausted, got %v", err)
	}
}

func TestStore_Delete_Tombstones(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rec := newQueuedRecord("rec-7")
	store.Insert(ctx, rec)

	if err := store.Delete(ctx, "rec-7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := store.Get(ctx, "rec-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.StatusDeleted {
		t.Errorf("expected deleted, got %s", got.Status)
	}

	if err := store.Delete(ctx, "rec-7"); err == nil {
		t.Error("expected deleting an already-deleted record to fail")
	}
}

func TestStore_List_FiltersByStatusAndSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newQueuedRecord("a")
	a.SessionID = "s1"
	b := newQueuedRecord("b")
	b.SessionID = "s1"
	c := newQueuedRecord("c")
	c.SessionID = "s2"
	store.Insert(ctx, a)
	store.Insert(ctx, b)
	store.Insert(ctx, c)

	store.ApplyStatus(ctx, "a", domain.StatusSending, time.Now().UTC(), "", "")

	results, err := store.List(ctx, ListFilter{SessionID: "s1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 records for session s1, got %d", len(results))
	}

	sending, err := store.List(ctx, ListFilter{Status: domain.StatusSending})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sending) != 1 || sending[0].ID != "a" {
		t.Errorf("expected only record a to be sending, got %+v", sending)
	}
}

func TestStore_Sweep_RemovesOnlyOldRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := newQueuedRecord("old")
	old.CreatedAt = time.Now().UTC().AddDate(0, 0, -100)
	fresh := newQueuedRecord("fresh")
	fresh.CreatedAt = time.Now().UTC()
	store.Insert(ctx, old)
	store.Insert(ctx, fresh)

	n, err := store.Sweep(ctx, time.Now().UTC().AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 record swept, got %d", n)
	}

	if _, err := store.Get(ctx, "old"); err != domain.ErrNotFound {
		t.Errorf("expected old record to be gone, got %v", err)
	}
	if _, err := store.Get(ctx, "fresh"); err != nil {
		t.Errorf("expected fresh record to survive, got %v", err)
	}

	// Idempotent: sweeping again removes nothing further.
	n, err = store.Sweep(ctx, time.Now().UTC().AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected idempotent second sweep to remove 0, got %d", n)
	}
}
