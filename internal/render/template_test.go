package render

import (
	"testing"

	"github.com/broadwing/dispatch/internal/domain"
)

func TestSubstitute_ReplacesKnownPlaceholders(t *testing.T) {
	rendered, missing := Substitute("Hi {name}, from {company}", map[string]string{"name": "Jane", "company": "Acme"})
	if rendered != "Hi Jane, from Acme" {
		t.Errorf("unexpected render: %q", rendered)
	}
	if len(missing) != 0 {
		t.Errorf("expected no missing placeholders, got %+v", missing)
	}
}

func TestSubstitute_MissingValueBecomesEmptyAndIsReported(t *testing.T) {
	rendered, missing := Substitute("Hi {name}, code {code}", map[string]string{"name": "Jane"})
	if rendered != "Hi Jane, code " {
		t.Errorf("unexpected render: %q", rendered)
	}
	if len(missing) != 1 || missing[0].Variable != "code" {
		t.Errorf("expected one missing placeholder for code, got %+v", missing)
	}
}

func TestPlaceholders_ReturnsDistinctNames(t *testing.T) {
	names := Placeholders("{a} and {b} and {a} again")
	if len(names) != 2 {
		t.Errorf("expected 2 distinct placeholders, got %v", names)
	}
}

func TestValidateTemplate_RejectsEmptyBodyForEnabledChannel(t *testing.T) {
	tmpl := domain.Template{EnabledMail: true, MailSubject: "Hi", MailBody: ""}
	if err := ValidateTemplate(tmpl); err == nil {
		t.Error("expected error for empty mail body on enabled channel")
	}
}

func TestValidateTemplate_RejectsMissingDeclaredVariable(t *testing.T) {
	tmpl := domain.Template{
		EnabledMail: true, MailSubject: "Hi {name}", MailBody: "Body",
		Variables: []string{"company"},
	}
	if err := ValidateTemplate(tmpl); err == nil {
		t.Error("expected error for declared variable absent from every enabled body")
	}
}

func TestValidateTemplate_AcceptsValidTemplate(t *testing.T) {
	tmpl := domain.Template{
		EnabledMail: true, MailSubject: "Hi {name}", MailBody: "Body {company}",
		Variables: []string{"name", "company"},
	}
	if err := ValidateTemplate(tmpl); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateTemplate_DisabledChannelBodyIgnored(t *testing.T) {
	tmpl := domain.Template{EnabledMail: false, EnabledWhatsApp: true, WhatsAppBody: "Hi {name}", Variables: []string{"name"}}
	if err := ValidateTemplate(tmpl); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRenderForRecipient_OnlyEnabledChannelsWithMatchingContact(t *testing.T) {
	tmpl := domain.Template{
		EnabledMail: true, MailSubject: "Hi {name}", MailBody: "Body",
		EnabledWhatsApp: true, WhatsAppBody: "Hi {name}",
	}
	r := domain.Recipient{Name: "Jane", Email: "jane@example.com"} // no phone
	messages := RenderForRecipient(tmpl, r, nil)

	if len(messages) != 1 {
		t.Fatalf("expected 1 message (mail only, no phone), got %d", len(messages))
	}
	if messages[0].Channel != domain.ChannelMail {
		t.Errorf("expected mail channel, got %s", messages[0].Channel)
	}
}
