package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/broadwing/dispatch/internal/domain"
)

func TestAnalytics_ComputesRatesAndHistogram(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	sent := newQueuedRecord("sent-1")
	store.Insert(ctx, sent)
	store.ApplyStatus(ctx, "sent-1", domain.StatusSending, now, "", "")
	store.ApplyStatus(ctx, "sent-1", domain.StatusSent, now, "", "")
	store.ApplyStatus(ctx, "sent-1", domain.StatusDelivered, now.Add(2*time.Second), "", "")

	failed := newQueuedRecord("failed-1")
	store.Insert(ctx, failed)
	store.ApplyStatus(ctx, "failed-1", domain.StatusSending, now, "", "")
	store.ApplyStatus(ctx, "failed-1", domain.StatusFailed, now, "", "rate_limited")

	other := newQueuedRecord("failed-2")
	store.Insert(ctx, other)
	store.ApplyStatus(ctx, "failed-2", domain.StatusSending, now, "", "")
	store.ApplyStatus(ctx, "failed-2", domain.StatusFailed, now, "", "rate_limited")

	result, err := store.Analytics(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Total != 3 {
		t.Fatalf("expected 3 records in window, got %d", result.Total)
	}
	if result.PerStatus[domain.StatusDelivered] != 1 {
		t.Errorf("expected 1 delivered, got %d", result.PerStatus[domain.StatusDelivered])
	}
	if result.FailureRate < 0.66 || result.FailureRate > 0.67 {
		t.Errorf("expected failure rate ~2/3, got %v", result.FailureRate)
	}
	if result.ErrorHistogram["rate_limited"] != 2 {
		t.Errorf("expected 2 rate_limited failures, got %d", result.ErrorHistogram["rate_limited"])
	}
	if result.AvgDeliveryTime < 1900*time.Millisecond || result.AvgDeliveryTime > 2100*time.Millisecond {
		t.Errorf("expected avg delivery time ~2s, got %v", result.AvgDeliveryTime)
	}
}

func TestAnalytics_EmptyWindowYieldsZeroRates(t *testing.T) {
	store := newTestStore(t)
	result, err := store.Analytics(context.Background(), time.Now().UTC().Add(-time.Hour), time.Now().UTC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 0 || result.DeliveryRate != 0 || result.FailureRate != 0 {
		t.Errorf("expected all-zero analytics for empty window, got %+v", result)
	}
}
