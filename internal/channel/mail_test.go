package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/broadwing/dispatch/internal/domain"
)

type fakeMailer struct {
	id      string
	err     error
	lastTo  string
	lastDraft bool
}

func (f *fakeMailer) Send(subject, body, to string, draft bool) (string, error) {
	f.lastTo = to
	f.lastDraft = draft
	if f.err != nil {
		return "", f.err
	}
	return f.id, nil
}

func TestMailAdapter_Send_Success(t *testing.T) {
	m := &fakeMailer{id: "mailsink-1"}
	a := NewMailAdapter(m)

	result := a.Send(context.Background(), domain.RenderedMessage{RecipientEmail: "jane@example.com", Subject: "Hi", Body: "body"}, SendOptions{})
	if !result.OK || result.MessageID != "mailsink-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if m.lastTo != "jane@example.com" {
		t.Errorf("expected recipient to be forwarded, got %q", m.lastTo)
	}
}

func TestMailAdapter_Send_DraftFlagForwarded(t *testing.T) {
	m := &fakeMailer{id: "mailsink-2"}
	a := NewMailAdapter(m)

	a.Send(context.Background(), domain.RenderedMessage{RecipientEmail: "jane@example.com"}, SendOptions{Draft: true})
	if !m.lastDraft {
		t.Error("expected draft flag to reach the mail client")
	}
}

func TestMailAdapter_Send_ClientErrorBecomesAdapterError(t *testing.T) {
	m := &fakeMailer{err: errors.New("smtp down")}
	a := NewMailAdapter(m)

	result := a.Send(context.Background(), domain.RenderedMessage{RecipientEmail: "jane@example.com"}, SendOptions{})
	if result.OK || result.Err == nil {
		t.Fatalf("expected failure result, got %+v", result)
	}
}

func TestMailAdapter_ValidateRecipientField(t *testing.T) {
	a := NewMailAdapter(&fakeMailer{})
	if !a.ValidateRecipientField("jane@example.com") {
		t.Error("expected valid email to pass")
	}
	if a.ValidateRecipientField("not-an-email") {
		t.Error("expected invalid email to fail")
	}
}

func TestMailAdapter_TestConnection_NoClient(t *testing.T) {
	a := &MailAdapter{}
	ok, _ := a.TestConnection(context.Background())
	if ok {
		t.Error("expected TestConnection to fail with no client configured")
	}
}
