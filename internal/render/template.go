// Package render substitutes {placeholder} tokens in a template's
// channel-keyed bodies against a recipient's field values and, for the
// WhatsApp channel, optionally splits a long body into an ordered,
// delayed sequence of messages.
package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/broadwing/dispatch/internal/domain"
)

var placeholderRegex = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// FieldValues returns the substitution values available for r: the four
// canonical fields plus anything in extra (e.g. a custom column the
// ingestor mapped but the recipient type doesn't carry).
func FieldValues(r domain.Recipient, extra map[string]string) map[string]string {
	values := map[string]string{
		"name":    r.Name,
		"company": r.Company,
		"email":   r.Email,
		"phone":   r.Phone,
	}
	for k, v := range extra {
		values[k] = v
	}
	return values
}

// MissingPlaceholder is logged at info when a template references a
// variable with no corresponding recipient value; rendering proceeds
// with that occurrence replaced by an empty string.
type MissingPlaceholder struct {
	Variable string
}

// Substitute replaces every {placeholder} in body with values[placeholder],
// an empty string for anything not present in values, and returns the
// rendered text along with the list of variables that were missing.
func Substitute(body string, values map[string]string) (string, []MissingPlaceholder) {
	var missing []MissingPlaceholder
	seen := map[string]struct{}{}

	rendered := placeholderRegex.ReplaceAllStringFunc(body, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := values[name]; ok {
			return v
		}
		if _, already := seen[name]; !already {
			seen[name] = struct{}{}
			missing = append(missing, MissingPlaceholder{Variable: name})
		}
		return ""
	})
	return rendered, missing
}

// Placeholders returns the distinct {name} variables referenced in body.
func Placeholders(body string) []string {
	matches := placeholderRegex.FindAllStringSubmatch(body, -1)
	seen := map[string]struct{}{}
	var names []string
	for _, m := range matches {
		if _, ok := seen[m[1]]; !ok {
			seen[m[1]] = struct{}{}
			names = append(names, m[1])
		}
	}
	return names
}

// ValidateTemplate enforces the rendering invariants: no empty body for
// an enabled channel, and every declared variable appears in at least one
// enabled body. {{i}} placeholder counts are not checked here;
// domain.WhatsAppTemplate.Validate checks those.
func ValidateTemplate(tmpl domain.Template) error {
	var errs []string

	if tmpl.EnabledMail {
		if strings.TrimSpace(tmpl.MailBody) == "" {
			errs = append(errs, "mail channel is enabled but mail body is empty")
		}
		if strings.TrimSpace(tmpl.MailSubject) == "" {
			errs = append(errs, "mail channel is enabled but mail subject is empty")
		}
	}
	if tmpl.EnabledWhatsApp && strings.TrimSpace(tmpl.WhatsAppBody) == "" {
		errs = append(errs, "whatsapp channel is enabled but whatsapp body is empty")
	}

	for _, v := range tmpl.Variables {
		present := false
		if tmpl.EnabledMail {
			if contains(Placeholders(tmpl.MailSubject), v) || contains(Placeholders(tmpl.MailBody), v) {
				present = true
			}
		}
		if tmpl.EnabledWhatsApp && contains(Placeholders(tmpl.WhatsAppBody), v) {
			present = true
		}
		if !present {
			errs = append(errs, fmt.Sprintf("declared variable %q is absent from every enabled body", v))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("template validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// RenderForRecipient produces the RenderedMessage values tmpl generates
// for r across its enabled channels, without any multi-message split.
func RenderForRecipient(tmpl domain.Template, r domain.Recipient, extra map[string]string) []domain.RenderedMessage {
	values := FieldValues(r, extra)
	var messages []domain.RenderedMessage

	if tmpl.EnabledMail && r.HasMailChannel() {
		subject, _ := Substitute(tmpl.MailSubject, values)
		body, _ := Substitute(tmpl.MailBody, values)
		messages = append(messages, domain.RenderedMessage{
			RecipientEmail: r.Email,
			Channel:        domain.ChannelMail,
			Subject:        subject,
			Body:           body,
			SequenceIndex:  0,
			SequenceTotal:  1,
		})
	}

	if tmpl.EnabledWhatsApp && r.HasWhatsAppChannel() {
		body, _ := Substitute(tmpl.WhatsAppBody, values)
		messages = append(messages, domain.RenderedMessage{
			RecipientPhone: r.Phone,
			Channel:        domain.ChannelWhatsAppAPI,
			Body:           body,
			SequenceIndex:  0,
			SequenceTotal:  1,
		})
	}

	return messages
}

// RenderWhatsAppSequence renders tmpl's WhatsApp body for r and splits it
// per cfg, producing one RenderedMessage per resulting part with
// DelayAfter set for every part but the last.
func RenderWhatsAppSequence(tmpl domain.Template, r domain.Recipient, extra map[string]string, cfg SplitConfig) ([]domain.RenderedMessage, error) {
	values := FieldValues(r, extra)
	body, _ := Substitute(tmpl.WhatsAppBody, values)

	seq, err := Split(body, cfg)
	if err != nil {
		return nil, err
	}

	messages := make([]domain.RenderedMessage, len(seq.Parts))
	for i, part := range seq.Parts {
		delay := seq.DelayBetweenParts
		if i == len(seq.Parts)-1 {
			delay = 0
		}
		messages[i] = domain.RenderedMessage{
			RecipientPhone: r.Phone,
			Channel:        domain.ChannelWhatsAppAPI,
			Body:           part,
			SequenceIndex:  i,
			SequenceTotal:  len(seq.Parts),
			DelayAfter:     delay,
		}
	}
	return messages, nil
}
