package domain

import (
	"fmt"
	"strings"
	"time"
)

// WhatsAppTemplateStatus is the lifecycle state of a WhatsAppTemplate in
// the local registry, mirroring the provider's own approval workflow.
type WhatsAppTemplateStatus string

const (
	TemplateDraft    WhatsAppTemplateStatus = "draft"
	TemplatePending  WhatsAppTemplateStatus = "pending"
	TemplateApproved WhatsAppTemplateStatus = "approved"
	TemplateRejected WhatsAppTemplateStatus = "rejected"
	TemplateDisabled WhatsAppTemplateStatus = "disabled"
	TemplatePaused   WhatsAppTemplateStatus = "paused"
)

// ComponentType is one of the four provider-recognized template component
// kinds.
type ComponentType string

const (
	ComponentHeader  ComponentType = "header"
	ComponentBody    ComponentType = "body"
	ComponentFooter  ComponentType = "footer"
	ComponentButtons ComponentType = "buttons"
)

// Component is one piece of a WhatsAppTemplate. Text carries literal
// {{1}}, {{2}}, ... placeholders; ParamCount is the declared number of
// parameters the caller must supply at send time, and must equal the
// count of distinct {{i}} placeholders actually present in Text for
// header/body/footer components.
type Component struct {
	Type       ComponentType
	Text       string
	ParamCount int
	Buttons    []Button // only meaningful when Type == ComponentButtons
}

// Button is one quick-reply or call-to-action button in a buttons
// component.
type Button struct {
	Type string // quick_reply | url | phone_number
	Text string
	URL  string
}

// placeholderCount returns how many distinct {{i}} placeholders appear in
// text.
func placeholderCount(text string) int {
	seen := map[string]struct{}{}
	for i := 0; i < len(text); i++ {
		if text[i] != '{' || i+1 >= len(text) || text[i+1] != '{' {
			continue
		}
		end := strings.Index(text[i:], "}}")
		if end < 0 {
			continue
		}
		seen[text[i:i+end+2]] = struct{}{}
	}
	return len(seen)
}

// UsageStats accumulates send outcomes for one template, reported back by
// the registry's Report operation.
type UsageStats struct {
	Sent      int
	Delivered int
	Read      int
	Failed    int
}

// WhatsAppTemplate is a provider-side message template tracked through
// its approval lifecycle in the local registry.
type WhatsAppTemplate struct {
	Name            string
	Language        string
	Category        string
	Components      []Component
	Status          WhatsAppTemplateStatus
	SubmittedAt     *time.Time
	ApprovedAt      *time.Time
	RejectedAt      *time.Time
	RejectionReason string
	Usage           UsageStats
}

// Validate enforces the template's structural invariants: exactly one
// body component, at most one header and one footer, and a matching
// {{i}} placeholder count against each component's declared parameter
// count.
func (t *WhatsAppTemplate) Validate() error {
	var bodies, headers, footers int
	for _, c := range t.Components {
		switch c.Type {
		case ComponentBody:
			bodies++
		case ComponentHeader:
			headers++
		case ComponentFooter:
			footers++
		case ComponentButtons:
			// no count limit imposed here
		default:
			return fmt.Errorf("unknown component type %q", c.Type)
		}

		if c.Type == ComponentHeader || c.Type == ComponentBody || c.Type == ComponentFooter {
			if got := placeholderCount(c.Text); got != c.ParamCount {
				return fmt.Errorf("component %s: text has %d {{i}} placeholders, declared %d parameters", c.Type, got, c.ParamCount)
			}
		}
	}
	if bodies != 1 {
		return fmt.Errorf("template must have exactly one body component, got %d", bodies)
	}
	if headers > 1 {
		return fmt.Errorf("template must have at most one header component, got %d", headers)
	}
	if footers > 1 {
		return fmt.Errorf("template must have at most one footer component, got %d", footers)
	}
	return nil
}

// Deletable reports whether the template may be removed from the
// registry: only drafts and rejected templates, never anything that has
// been or could still be submitted to the provider.
func (t *WhatsAppTemplate) Deletable() bool {
	return t.Status == TemplateDraft || t.Status == TemplateRejected
}

func (t *WhatsAppTemplate) body() *Component {
	for i := range t.Components {
		if t.Components[i].Type == ComponentBody {
			return &t.Components[i]
		}
	}
	return nil
}

// Preview substitutes each component's {{i}} placeholders with the
// caller-supplied params (keyed "param_1", "param_2", ...), falling back
// to a literal "[type]" placeholder for any parameter not supplied.
func (t *WhatsAppTemplate) Preview(params map[string]string) map[string]string {
	out := map[string]string{}
	for _, c := range t.Components {
		var key string
		switch c.Type {
		case ComponentHeader:
			key = "header"
		case ComponentBody:
			key = "body"
		case ComponentFooter:
			key = "footer"
		default:
			continue
		}
		out[key] = substitutePlaceholders(c.Text, params)
	}
	return out
}

func substitutePlaceholders(text string, params map[string]string) string {
	result := text
	for i := 1; i <= placeholderCount(text); i++ {
		placeholder := fmt.Sprintf("{{%d}}", i)
		value, ok := params[fmt.Sprintf("param_%d", i)]
		if !ok {
			value = "[type]"
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}
