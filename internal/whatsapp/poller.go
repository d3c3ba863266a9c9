package whatsapp

import (
	"context"
	"time"

	"github.com/broadwing/dispatch/internal/domain"
	"github.com/broadwing/dispatch/pkg/logger"
)

// DefaultPollInterval is how often RunPoller reconciles pending templates
// against the provider when the caller configures no interval.
const DefaultPollInterval = 5 * time.Minute

// RunPoller periodically reconciles every pending template's status
// against fetcher, independent of whatever the webhook path separately
// reports. It returns once ctx is canceled.
func RunPoller(ctx context.Context, registry *Registry, fetcher TemplateStatusFetcher, interval time.Duration, log logger.Logger) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	poll := func() {
		registry.mu.RLock()
		var pending []struct {
			name       string
			providerID string
		}
		for name, tmpl := range registry.templates {
			if tmpl.Status != domain.TemplatePending {
				continue
			}
			if id, ok := registry.providerIDs[name]; ok {
				pending = append(pending, struct {
					name       string
					providerID string
				}{name, id})
			}
		}
		registry.mu.RUnlock()

		for _, p := range pending {
			status, reason, err := fetcher.FetchStatus(ctx, p.providerID)
			if err != nil {
				if log != nil {
					log.WithFields(map[string]interface{}{"template": p.name, "error": err.Error()}).Warn("whatsapp template status poll failed")
				}
				continue
			}
			if err := applyPolledStatus(registry, p.name, status, reason); err != nil && log != nil {
				log.WithFields(map[string]interface{}{"template": p.name, "error": err.Error()}).Warn("failed to apply polled whatsapp template status")
			}
		}
	}

	poll()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}

func applyPolledStatus(registry *Registry, name string, status domain.WhatsAppTemplateStatus, reason string) error {
	switch status {
	case domain.TemplateApproved:
		return registry.Approve(name)
	case domain.TemplateRejected:
		return registry.Reject(name, reason)
	case domain.TemplateDisabled:
		return registry.Disable(name, reason)
	case domain.TemplatePaused:
		return registry.Pause(name, reason)
	default:
		return nil // still pending, nothing to do
	}
}
