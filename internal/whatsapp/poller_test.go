package whatsapp

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/broadwing/dispatch/internal/domain"
)

type fakeFetcher struct {
	status domain.WhatsAppTemplateStatus
	reason string
	calls  int32
}

func (f *fakeFetcher) FetchStatus(ctx context.Context, providerID string) (domain.WhatsAppTemplateStatus, string, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.status, f.reason, nil
}

func TestRunPoller_AppliesApprovedStatusOnFirstPoll(t *testing.T) {
	r := NewRegistry("", nil)
	r.Create(testTemplate("a"))
	r.Submit(context.Background(), "a", &fakeSubmitter{id: "provider-1"})

	fetcher := &fakeFetcher{status: domain.TemplateApproved}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunPoller(ctx, r, fetcher, time.Hour, nil)
		close(done)
	}()

	waitForCondition(t, func() bool {
		tmpl, _ := r.Get("a")
		return tmpl.Status == domain.TemplateApproved
	})

	cancel()
	<-done
}

func TestRunPoller_IgnoresNonPendingTemplates(t *testing.T) {
	r := NewRegistry("", nil)
	r.Create(testTemplate("draft-only"))

	fetcher := &fakeFetcher{status: domain.TemplateApproved}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunPoller(ctx, r, fetcher, time.Hour, nil)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if atomic.LoadInt32(&fetcher.calls) != 0 {
		t.Errorf("expected no fetch calls for a draft template, got %d", fetcher.calls)
	}
	tmpl, _ := r.Get("draft-only")
	if tmpl.Status != domain.TemplateDraft {
		t.Errorf("expected draft-only to remain untouched, got %s", tmpl.Status)
	}
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
