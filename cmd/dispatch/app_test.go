package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/broadwing/dispatch/config"
	"github.com/broadwing/dispatch/pkg/logger"
)

type stubMailer struct{}

func (stubMailer) Send(subject, body, to string, draft bool) (string, error) {
	return "stub-id", nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Database: config.DatabaseConfig{Path: filepath.Join(dir, "dispatch.db")},
		WhatsApp: config.WhatsAppConfig{
			APIBaseURL: "https://graph.example.invalid",
			APIVersion: "v19.0",
		},
		Quota:       config.QuotaConfig{SnapshotPath: filepath.Join(dir, "quota.json")},
		Webhook:     config.WebhookConfig{Secret: "test-secret", DedupeSize: 100, DedupeTTL: time.Hour},
		Dispatch:    config.DispatchConfig{WorkersPerChannel: 2, MaxRetries: 2, BackoffBase: time.Millisecond, BackoffCap: 10 * time.Millisecond},
		Retention:   config.RetentionConfig{Days: 90, Interval: time.Hour},
		Environment: "test",
	}
}

func TestApp_Initialize_WiresEveryComponent(t *testing.T) {
	app := NewApp(testConfig(t), WithLogger(logger.NewTestLogger(t)), WithMailer(stubMailer{}))
	if err := app.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer app.store.Close()

	if app.store == nil || app.quota == nil || app.registry == nil || app.dispatcher == nil {
		t.Fatal("expected every core component to be initialized")
	}
	if len(app.adapters) != 3 {
		t.Errorf("expected 3 channel adapters, got %d", len(app.adapters))
	}
}

func TestApp_HandleHealth_ReturnsOK(t *testing.T) {
	app := NewApp(testConfig(t), WithLogger(logger.NewTestLogger(t)), WithMailer(stubMailer{}))
	if err := app.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer app.store.Close()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	app.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestApp_HandleWebhook_VerificationHandshake(t *testing.T) {
	app := NewApp(testConfig(t), WithLogger(logger.NewTestLogger(t)), WithMailer(stubMailer{}))
	if err := app.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer app.store.Close()

	req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.verify_token=test-secret&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	app.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "12345" {
		t.Errorf("expected echoed challenge 12345, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestApp_HandleWebhook_RejectsWrongVerifyToken(t *testing.T) {
	app := NewApp(testConfig(t), WithLogger(logger.NewTestLogger(t)), WithMailer(stubMailer{}))
	if err := app.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer app.store.Close()

	req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.verify_token=wrong&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	app.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a wrong verify token, got %d", rec.Code)
	}
}

func TestApp_HandleRunCampaign_RejectsMissingFile(t *testing.T) {
	app := NewApp(testConfig(t), WithLogger(logger.NewTestLogger(t)), WithMailer(stubMailer{}))
	if err := app.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer app.store.Close()

	req := httptest.NewRequest(http.MethodPost, "/campaigns", strings.NewReader(`{"source_path":"/no/such/file.csv"}`))
	rec := httptest.NewRecorder()
	app.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a missing source file, got %d", rec.Code)
	}
}

func TestDefaultLauncher_BuildsWithoutPanicking(t *testing.T) {
	// Exercises the platform switch without actually needing a browser in
	// the test environment; a failing exec.Command is an expected outcome
	// in a headless CI sandbox, not a test failure.
	_ = defaultLauncher("https://example.invalid/compose")
}
