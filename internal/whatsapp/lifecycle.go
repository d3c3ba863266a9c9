package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/broadwing/dispatch/internal/domain"
)

var (
	// ErrNotFound is returned by any operation addressing a template name
	// the registry does not track.
	ErrNotFound = errors.New("whatsapp: template not found")
	// ErrAlreadyExists is returned by Create when name is already tracked.
	ErrAlreadyExists = errors.New("whatsapp: template already exists")
	// ErrNotDeletable is returned by Delete for a template whose status
	// is neither draft nor rejected.
	ErrNotDeletable = errors.New("whatsapp: template is not deletable in its current status")
	// ErrNotDraft is returned by Submit for a template not in draft
	// status.
	ErrNotDraft = errors.New("whatsapp: only a draft template may be submitted")
)

// Create registers a new draft template after validating its component
// structure. The caller's tmpl.Status is ignored; a freshly created
// template always starts as draft.
func (r *Registry) Create(tmpl *domain.WhatsAppTemplate) error {
	if err := tmpl.Validate(); err != nil {
		return fmt.Errorf("whatsapp: create %q: %w", tmpl.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[tmpl.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, tmpl.Name)
	}
	tmpl.Status = domain.TemplateDraft
	r.templates[tmpl.Name] = tmpl
	r.persistLocked()
	return nil
}

// Submit validates a draft template and hands it to submitter, recording
// the provider-assigned id and moving the template to pending.
func (r *Registry) Submit(ctx context.Context, name string, submitter TemplateSubmitter) error {
	r.mu.Lock()
	tmpl, ok := r.templates[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if tmpl.Status != domain.TemplateDraft {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrNotDraft, name, tmpl.Status)
	}
	if err := tmpl.Validate(); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("whatsapp: submit %q: %w", name, err)
	}
	r.mu.Unlock()

	providerID, err := submitter.Submit(ctx, tmpl)
	if err != nil {
		return fmt.Errorf("whatsapp: provider rejected submission of %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	tmpl.Status = domain.TemplatePending
	tmpl.SubmittedAt = &now
	r.providerIDs[name] = providerID
	r.persistLocked()
	return nil
}

// Approve transitions name to approved, stamping ApprovedAt.
func (r *Registry) Approve(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	now := time.Now().UTC()
	tmpl.Status = domain.TemplateApproved
	tmpl.ApprovedAt = &now
	tmpl.RejectionReason = ""
	r.persistLocked()
	return nil
}

// Reject transitions name to rejected, recording reason.
func (r *Registry) Reject(name, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	now := time.Now().UTC()
	tmpl.Status = domain.TemplateRejected
	tmpl.RejectedAt = &now
	tmpl.RejectionReason = reason
	r.persistLocked()
	return nil
}

// Disable moves an approved template out of service, e.g. in response to
// a provider policy action reported over the webhook path.
func (r *Registry) Disable(name, reason string) error {
	return r.setStatus(name, domain.TemplateDisabled, reason)
}

// Pause moves an approved template to paused, a reversible quality-hold
// state the provider can also lift by re-approving.
func (r *Registry) Pause(name, reason string) error {
	return r.setStatus(name, domain.TemplatePaused, reason)
}

func (r *Registry) setStatus(name string, status domain.WhatsAppTemplateStatus, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	tmpl.Status = status
	tmpl.RejectionReason = reason
	r.persistLocked()
	return nil
}

// Delete removes a template from the registry. Only draft and rejected
// templates may be deleted.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if !tmpl.Deletable() {
		return fmt.Errorf("%w: %s is %s", ErrNotDeletable, name, tmpl.Status)
	}
	delete(r.templates, name)
	delete(r.providerIDs, name)
	r.persistLocked()
	return nil
}

// Preview renders name's components against params, or ErrNotFound if
// name is untracked.
func (r *Registry) Preview(name string, params map[string]string) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tmpl, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return tmpl.Preview(params), nil
}

// RecordUsage accumulates one send outcome against name's UsageStats.
// Nothing in this module calls it outside its tests. Unknown template
// names are silently ignored since not every WhatsApp send is
// necessarily against an approved template in this registry (a plain
// text send has no backing template at all).
func (r *Registry) RecordUsage(name string, status domain.DeliveryStatus) {
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tmpl, ok := r.templates[name]
	if !ok {
		return
	}
	switch status {
	case domain.StatusSent:
		tmpl.Usage.Sent++
	case domain.StatusDelivered:
		tmpl.Usage.Delivered++
	case domain.StatusRead:
		tmpl.Usage.Read++
	case domain.StatusFailed:
		tmpl.Usage.Failed++
	}
	r.persistLocked()
}

// Report returns a snapshot of every tracked template's usage stats
// keyed by name.
func (r *Registry) Report() map[string]domain.UsageStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domain.UsageStats, len(r.templates))
	for name, t := range r.templates {
		out[name] = t.Usage
	}
	return out
}
