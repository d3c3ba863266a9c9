package webhook

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/broadwing/dispatch/internal/domain"
)

type fakeUpdater struct {
	calls []statusCall
	err   error
}

type statusCall struct {
	id         string
	to         domain.DeliveryStatus
	occurredAt time.Time
	errMsg     string
}

func (f *fakeUpdater) ApplyStatus(ctx context.Context, id string, to domain.DeliveryStatus, occurredAt time.Time, providerID, errMsg string) (*domain.DeliveryRecord, error) {
	f.calls = append(f.calls, statusCall{id: id, to: to, occurredAt: occurredAt, errMsg: errMsg})
	if f.err != nil {
		return nil, f.err
	}
	return &domain.DeliveryRecord{ID: id, Status: to}, nil
}

type fakeTemplateUpdater struct {
	calls []string
}

func (f *fakeTemplateUpdater) HandleStatusUpdate(ctx context.Context, name, language, event, reason string) error {
	f.calls = append(f.calls, fmt.Sprintf("%s/%s/%s/%s", name, language, event, reason))
	return nil
}

func newTestReceiver(t *testing.T, updater StatusUpdater, tmpl TemplateStatusUpdater, onInbound func(InboundMessage)) *Receiver {
	t.Helper()
	r, err := NewReceiver("", updater, tmpl, onInbound, 100, time.Hour, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return r
}

func TestProcess_RejectsInvalidSignature(t *testing.T) {
	r, err := NewReceiver("secret", nil, nil, nil, 100, time.Hour, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Process(context.Background(), []byte(`{"entry":[]}`), "sha256=bad") {
		t.Error("expected invalid signature to be rejected")
	}
}

func TestProcess_RejectsMalformedPayload(t *testing.T) {
	r := newTestReceiver(t, nil, nil, nil)
	if r.Process(context.Background(), []byte(`not json`), "") {
		t.Error("expected malformed payload to be rejected")
	}
}

func TestProcess_AppliesDeliveryStatus(t *testing.T) {
	updater := &fakeUpdater{}
	r := newTestReceiver(t, updater, nil, nil)

	payload := []byte(`{"entry":[{"changes":[{"field":"messages","value":{"statuses":[
		{"id":"wamid.1","status":"delivered","timestamp":"1700000000"}
	]}}]}]}`)

	if !r.Process(context.Background(), payload, "") {
		t.Fatal("expected payload to be accepted")
	}
	if len(updater.calls) != 1 {
		t.Fatalf("expected 1 status update, got %d", len(updater.calls))
	}
	if updater.calls[0].id != "wamid.1" || updater.calls[0].to != domain.StatusDelivered {
		t.Errorf("unexpected call: %+v", updater.calls[0])
	}
}

func TestProcess_ExtractsErrorOnFailedStatus(t *testing.T) {
	updater := &fakeUpdater{}
	r := newTestReceiver(t, updater, nil, nil)

	payload := []byte(`{"entry":[{"changes":[{"field":"messages","value":{"statuses":[
		{"id":"wamid.2","status":"failed","timestamp":"1700000000",
		 "errors":[{"code":131047,"title":"Message undeliverable"}]}
	]}}]}]}`)

	r.Process(context.Background(), payload, "")
	if len(updater.calls) != 1 || updater.calls[0].errMsg != "Message undeliverable" {
		t.Fatalf("expected failed status with extracted error, got %+v", updater.calls)
	}
}

func TestProcess_DeduplicatesRepeatedEventsWithinTTL(t *testing.T) {
	updater := &fakeUpdater{}
	r := newTestReceiver(t, updater, nil, nil)

	payload := []byte(`{"entry":[{"changes":[{"field":"messages","value":{"statuses":[
		{"id":"wamid.3","status":"sent","timestamp":"1700000000"}
	]}}]}]}`)

	r.Process(context.Background(), payload, "")
	r.Process(context.Background(), payload, "")

	if len(updater.calls) != 1 {
		t.Fatalf("expected duplicate event to be ignored, got %d calls", len(updater.calls))
	}
}

func TestProcess_RecordsInboundMessage(t *testing.T) {
	var received []InboundMessage
	r := newTestReceiver(t, nil, nil, func(m InboundMessage) { received = append(received, m) })

	payload := []byte(`{"entry":[{"changes":[{"field":"messages","value":{"messages":[
		{"id":"wamid.in.1","from":"15551234567","timestamp":"1700000000","text":{"body":"hi there"}}
	]}}]}]}`)

	r.Process(context.Background(), payload, "")
	if len(received) != 1 {
		t.Fatalf("expected 1 inbound message, got %d", len(received))
	}
	if received[0].From != "15551234567" || received[0].Body != "hi there" {
		t.Errorf("unexpected inbound message: %+v", received[0])
	}
}

func TestProcess_ForwardsTemplateStatusUpdate(t *testing.T) {
	tmpl := &fakeTemplateUpdater{}
	r := newTestReceiver(t, nil, tmpl, nil)

	payload := []byte(`{"entry":[{"changes":[{"field":"message_template_status_update","value":{
		"message_template_name":"order_confirmation",
		"message_template_language":"en_US",
		"event":"APPROVED",
		"reason":""
	}}]}]}`)

	if !r.Process(context.Background(), payload, "") {
		t.Fatal("expected payload to be accepted")
	}
	if len(tmpl.calls) != 1 || tmpl.calls[0] != "order_confirmation/en_US/APPROVED/" {
		t.Fatalf("unexpected template update calls: %v", tmpl.calls)
	}
}

func TestProcess_IgnoresUnknownStatusValue(t *testing.T) {
	updater := &fakeUpdater{}
	r := newTestReceiver(t, updater, nil, nil)

	payload := []byte(`{"entry":[{"changes":[{"field":"messages","value":{"statuses":[
		{"id":"wamid.4","status":"warehoused","timestamp":"1700000000"}
	]}}]}]}`)

	r.Process(context.Background(), payload, "")
	if len(updater.calls) != 0 {
		t.Errorf("expected unknown status to be ignored, got %d calls", len(updater.calls))
	}
}
