package domain

import "testing"

func TestDeliveryRecord_CanTransition_HappyPath(t *testing.T) {
	d := &DeliveryRecord{Status: StatusQueued, MaxRetries: 3}
	steps := []DeliveryStatus{StatusSending, StatusSent, StatusDelivered, StatusRead}
	for _, to := range steps {
		if !d.CanTransition(to) {
			t.Fatalf("expected %s -> %s to be allowed", d.Status, to)
		}
		d.Status = to
	}
}

func TestDeliveryRecord_CanTransition_FailedFromSending(t *testing.T) {
	d := &DeliveryRecord{Status: StatusSending}
	if !d.CanTransition(StatusFailed) {
		t.Error("expected sending -> failed to be allowed")
	}
}

func TestDeliveryRecord_CanTransition_LateFailedAfterRead(t *testing.T) {
	d := &DeliveryRecord{Status: StatusRead}
	if !d.CanTransition(StatusFailed) {
		t.Error("expected read -> failed to be allowed (late provider error report)")
	}
}

func TestDeliveryRecord_CanTransition_NoRegressAfterDelivered(t *testing.T) {
	d := &DeliveryRecord{Status: StatusDelivered}
	if d.CanTransition(StatusSent) {
		t.Error("expected delivered -> sent to be rejected (regression)")
	}
	if !d.CanTransition(StatusDelivered) {
		t.Error("expected delivered -> delivered to be accepted as a no-op")
	}
}

func TestDeliveryRecord_CanTransition_RetryGatedByCount(t *testing.T) {
	d := &DeliveryRecord{Status: StatusFailed, RetryCount: 1, MaxRetries: 3}
	if !d.CanTransition(StatusQueued) {
		t.Error("expected failed -> queued to be allowed under max retries")
	}

	exhausted := &DeliveryRecord{Status: StatusFailed, RetryCount: 3, MaxRetries: 3}
	if exhausted.CanTransition(StatusQueued) {
		t.Error("expected failed -> queued to be rejected once retries are exhausted")
	}
}

func TestDeliveryRecord_CanTransition_DeleteIsTerminal(t *testing.T) {
	d := &DeliveryRecord{Status: StatusSent}
	if !d.CanTransition(StatusDeleted) {
		t.Error("expected any status -> deleted to be allowed")
	}
	d.Status = StatusDeleted
	if d.CanTransition(StatusQueued) || d.CanTransition(StatusDeleted) {
		t.Error("expected deleted to be a true terminal state")
	}
}

func TestDeliveryRecord_CanTransition_RejectsUnknown(t *testing.T) {
	d := &DeliveryRecord{Status: StatusQueued}
	if d.CanTransition(StatusRead) {
		t.Error("expected queued -> read to be rejected, can't skip states")
	}
}

func TestSession_Done(t *testing.T) {
	s := &Session{Total: 3, Sent: 2, Failed: 0}
	if s.Done() {
		t.Error("expected session not done yet")
	}
	s.Failed = 1
	if !s.Done() {
		t.Error("expected session done once sent+failed reaches total")
	}
}

func TestRecipient_ChannelAvailability(t *testing.T) {
	r := Recipient{Email: "a@b.com"}
	if !r.HasMailChannel() {
		t.Error("expected mail channel available")
	}
	if r.HasWhatsAppChannel() {
		t.Error("expected no whatsapp channel without phone")
	}
}
