package whatsapp

import (
	"context"
	"fmt"
	"strings"
)

// HandleStatusUpdate implements webhook.TemplateStatusUpdater, applying a
// provider-pushed message_template_status_update event to the matching
// registry entry. language is accepted but unused: this registry tracks
// one entry per template name and does not yet support per-language
// template variants.
func (r *Registry) HandleStatusUpdate(ctx context.Context, name, language, event, reason string) error {
	switch strings.ToUpper(event) {
	case "APPROVED":
		return r.Approve(name)
	case "REJECTED":
		return r.Reject(name, reason)
	case "DISABLED":
		return r.Disable(name, reason)
	case "PAUSED", "FLAGGED":
		return r.Pause(name, reason)
	case "":
		return fmt.Errorf("whatsapp: empty template status event for %q", name)
	default:
		return fmt.Errorf("whatsapp: unrecognized template status event %q for %q", event, name)
	}
}
