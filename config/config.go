// Package config loads process configuration from the environment. Kept in
// the teacher's shape (grouped structs, a single Load, a Validate that
// fails fast on missing required values) but reads directly from
// os.Getenv instead of the teacher's viper-backed load path, since nothing
// here needs viper's config-file merging or database-stored overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const Version = "1.0"

// Config is the full process configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	SMTP      SMTPConfig
	WhatsApp  WhatsAppConfig
	Quota     QuotaConfig
	Webhook   WebhookConfig
	Dispatch  DispatchConfig
	Retention RetentionConfig
	LogLevel  string
	Environment string
}

// ServerConfig configures the HTTP server exposing the webhook receiver
// and operational endpoints.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig points at the embedded delivery store.
type DatabaseConfig struct {
	// Path is the SQLite file path, e.g. "./data/dispatch.db".
	Path string
}

// SMTPConfig configures the mail-sink channel adapter.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// WhatsAppConfig configures the WhatsApp Cloud API provider-API adapter
// and the template lifecycle poller.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BusinessID    string
	APIBaseURL    string
	APIVersion    string
	PollInterval  time.Duration
}

// QuotaConfig configures the Quota Manager's snapshot persistence.
type QuotaConfig struct {
	SnapshotPath string
}

// WebhookConfig configures the inbound status-update receiver.
type WebhookConfig struct {
	Secret     string
	DedupeSize int
	DedupeTTL  time.Duration
}

// DispatchConfig configures the dispatcher's worker pool and retry policy.
type DispatchConfig struct {
	WorkersPerChannel int
	MaxRetries        int
	BackoffBase       time.Duration
	BackoffCap        time.Duration
}

// RetentionConfig configures the delivery store's retention sweep.
type RetentionConfig struct {
	Days     int
	Interval time.Duration
}

// Load reads configuration from the environment, applying defaults and
// validating required values.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/dispatch.db"),
		},
		SMTP: SMTPConfig{
			Host:      getEnv("SMTP_HOST", ""),
			Port:      getEnvInt("SMTP_PORT", 587),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			FromEmail: getEnv("SMTP_FROM_EMAIL", ""),
			FromName:  getEnv("SMTP_FROM_NAME", "Dispatch"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			PhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			BusinessID:    getEnv("WHATSAPP_BUSINESS_ID", ""),
			APIBaseURL:    getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getEnv("WHATSAPP_API_VERSION", "v19.0"),
			PollInterval:  getEnvDuration("WHATSAPP_POLL_INTERVAL", 5*time.Minute),
		},
		Quota: QuotaConfig{
			SnapshotPath: getEnv("QUOTA_SNAPSHOT_PATH", "./data/quota-snapshot.json"),
		},
		Webhook: WebhookConfig{
			Secret:     getEnv("WEBHOOK_SECRET", ""),
			DedupeSize: getEnvInt("WEBHOOK_DEDUPE_SIZE", 10000),
			DedupeTTL:  getEnvDuration("WEBHOOK_DEDUPE_TTL", 24*time.Hour),
		},
		Dispatch: DispatchConfig{
			WorkersPerChannel: getEnvInt("DISPATCH_WORKERS_PER_CHANNEL", 4),
			MaxRetries:        getEnvInt("DISPATCH_MAX_RETRIES", 3),
			BackoffBase:       getEnvDuration("DISPATCH_BACKOFF_BASE", 1*time.Second),
			BackoffCap:        getEnvDuration("DISPATCH_BACKOFF_CAP", 60*time.Second),
		},
		Retention: RetentionConfig{
			Days:     getEnvInt("RETENTION_DAYS", 90),
			Interval: getEnvDuration("RETENTION_SWEEP_INTERVAL", 1*time.Hour),
		},
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Environment: getEnv("ENVIRONMENT", "production"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate fails fast on configuration that would otherwise surface as a
// confusing runtime error later (an out-of-range port, a zero worker pool
// that never drains). The webhook secret is not checked here.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid SERVER_PORT: %d", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, "DB_PATH must not be empty")
	}
	if c.Dispatch.WorkersPerChannel <= 0 {
		errs = append(errs, "DISPATCH_WORKERS_PER_CHANNEL must be positive")
	}
	if c.Dispatch.MaxRetries < 0 {
		errs = append(errs, "DISPATCH_MAX_RETRIES must not be negative")
	}
	if c.Retention.Days < 0 {
		errs = append(errs, "RETENTION_DAYS must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IsDevelopment reports whether the environment is set to development.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
