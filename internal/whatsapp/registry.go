// Package whatsapp tracks WhatsApp message templates through the
// provider's approval workflow: local drafting, submission, a background
// poller that reconciles status against the provider, and the webhook
// path that applies a provider-pushed status update as soon as it
// arrives. Approved templates are what the dispatcher's render step may
// use as parameterized WhatsApp bodies.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/broadwing/dispatch/internal/domain"
	"github.com/broadwing/dispatch/pkg/logger"
)

// registrySnapshot is the on-disk shape of the template registry: a
// timestamp plus every tracked template keyed by name, mirroring the
// quota manager's own snapshot-plus-timestamp persistence shape.
type registrySnapshot struct {
	Timestamp time.Time                           `json:"timestamp"`
	Templates map[string]*domain.WhatsAppTemplate `json:"templates"`
}

// TemplateSubmitter is the narrow interface the registry depends on to
// submit a draft to the provider, cutting what would otherwise be a
// cyclic dependency between the template registry and the channel
// adapter that actually speaks to the provider.
type TemplateSubmitter interface {
	Submit(ctx context.Context, tmpl *domain.WhatsAppTemplate) (providerID string, err error)
}

// TemplateStatusFetcher is the narrow interface the poller depends on to
// ask the provider for a pending template's current status, independent
// of whatever webhook delivery might separately report.
type TemplateStatusFetcher interface {
	FetchStatus(ctx context.Context, providerID string) (status domain.WhatsAppTemplateStatus, reason string, err error)
}

// Registry is the local, single-node store of WhatsAppTemplates and their
// lifecycle state, persisted to a single JSON file with atomic rename.
type Registry struct {
	mu           sync.RWMutex
	templates    map[string]*domain.WhatsAppTemplate
	providerIDs  map[string]string // template name -> provider-assigned template id, set on submit
	snapshotPath string
	logger       logger.Logger
}

// NewRegistry constructs an empty Registry backed by snapshotPath; pass
// an empty path to disable persistence entirely (useful in tests).
func NewRegistry(snapshotPath string, log logger.Logger) *Registry {
	return &Registry{
		templates:    make(map[string]*domain.WhatsAppTemplate),
		providerIDs:  make(map[string]string),
		snapshotPath: snapshotPath,
		logger:       log,
	}
}

// LoadSnapshot reads the registry's persisted state from snapshotPath. A
// missing file is not an error: a fresh registry starts empty.
func (r *Registry) LoadSnapshot() error {
	if r.snapshotPath == "" {
		return nil
	}
	data, err := os.ReadFile(r.snapshotPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("whatsapp: read snapshot: %w", err)
	}

	var snap registrySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("whatsapp: parse snapshot: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if snap.Templates != nil {
		r.templates = snap.Templates
	}
	return nil
}

// persistLocked writes the current registry state to disk, swallowing
// errors the way the quota manager's own snapshot writer does: a failed
// write must never fail the caller's mutation. Must be called with r.mu
// held (read or write lock; the write is a pure read of current state).
func (r *Registry) persistLocked() {
	if r.snapshotPath == "" {
		return
	}
	if err := r.writeSnapshotLocked(); err != nil && r.logger != nil {
		r.logger.WithField("error", err.Error()).Warn("failed to persist whatsapp template registry snapshot")
	}
}

func (r *Registry) writeSnapshotLocked() error {
	snap := registrySnapshot{Timestamp: time.Now(), Templates: r.templates}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("whatsapp: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(r.snapshotPath)
	tmp, err := os.CreateTemp(dir, ".whatsapp-templates-*")
	if err != nil {
		return fmt.Errorf("whatsapp: create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("whatsapp: write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("whatsapp: close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, r.snapshotPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("whatsapp: rename snapshot: %w", err)
	}
	return nil
}

// Get returns the named template, or false if the registry has no
// template by that name.
func (r *Registry) Get(name string) (*domain.WhatsAppTemplate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	return t, ok
}

// List returns every tracked template, in no particular order.
func (r *Registry) List() []*domain.WhatsAppTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.WhatsAppTemplate, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	return out
}

// Approved returns every template currently in the approved state, the
// set C3 may draw a parameterized WhatsApp body from.
func (r *Registry) Approved() []*domain.WhatsAppTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.WhatsAppTemplate
	for _, t := range r.templates {
		if t.Status == domain.TemplateApproved {
			out = append(out, t)
		}
	}
	return out
}
