package main

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/broadwing/dispatch/config"
	"github.com/broadwing/dispatch/internal/channel"
	"github.com/broadwing/dispatch/internal/delivery"
	"github.com/broadwing/dispatch/internal/dispatch"
	"github.com/broadwing/dispatch/internal/domain"
	"github.com/broadwing/dispatch/internal/whatsapp"
	"github.com/broadwing/dispatch/pkg/logger"
	"github.com/broadwing/dispatch/pkg/mailer"
	"github.com/broadwing/dispatch/pkg/quota"
)

// App encapsulates every long-lived component a dispatch process wires
// together, following the same struct-plus-functional-options shape the
// API server binary uses.
type App struct {
	config *config.Config
	logger logger.Logger

	store    *delivery.Store
	quota    *quota.Manager
	registry *whatsapp.Registry
	mail     mailer.Mailer

	adapters   map[domain.Channel]channel.Adapter
	dispatcher *dispatch.Dispatcher

	mux    *http.ServeMux
	server *http.Server

	serverMu      sync.RWMutex
	serverStarted chan struct{}
}

// AppOption configures an App at construction time, primarily so tests
// can substitute a mock store or mailer without touching the filesystem
// or network.
type AppOption func(*App)

func WithLogger(log logger.Logger) AppOption {
	return func(a *App) { a.logger = log }
}

func WithStore(store *delivery.Store) AppOption {
	return func(a *App) { a.store = store }
}

func WithMailer(m mailer.Mailer) AppOption {
	return func(a *App) { a.mail = m }
}

// NewApp builds an App from cfg, applying opts after the defaults so a
// test can override any individual dependency.
func NewApp(cfg *config.Config, opts ...AppOption) *App {
	app := &App{
		config:        cfg,
		logger:        logger.NewLoggerWithLevel(cfg.LogLevel),
		mux:           http.NewServeMux(),
		serverStarted: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Initialize wires every component in dependency order: store, quota
// manager, WhatsApp template registry, mailer, channel adapters, the
// dispatcher, and finally the HTTP routes.
func (a *App) Initialize() error {
	if err := a.initStore(); err != nil {
		return err
	}
	if err := a.initQuota(); err != nil {
		return err
	}
	if err := a.initRegistry(); err != nil {
		return err
	}
	a.initMailer()
	a.initAdapters()
	a.initDispatcher()
	a.initRoutes()
	return nil
}

func (a *App) initStore() error {
	if a.store != nil {
		return nil
	}
	store, err := delivery.Open(a.config.Database.Path, a.logger)
	if err != nil {
		return fmt.Errorf("opening delivery store: %w", err)
	}
	a.store = store
	return nil
}

func (a *App) initQuota() error {
	a.quota = quota.NewManager(a.config.Quota.SnapshotPath)
	if err := a.quota.LoadSnapshot(); err != nil {
		a.logger.WithField("error", err.Error()).Warn("quota snapshot failed to load, starting from empty windows")
	}
	a.quota.UpdateQuotaConfig("mail", quota.Config{Limit: 100, Window: time.Minute, BurstCapacity: 20, WarnThreshold: 0.8, CritThreshold: 0.95})
	a.quota.UpdateQuotaConfig("whatsapp_api", quota.Config{Limit: 80, Window: time.Second, BurstCapacity: 0, WarnThreshold: 0.8, CritThreshold: 0.95})
	a.quota.UpdateQuotaConfig("whatsapp_browser", quota.Config{Limit: 200, Window: time.Hour, BurstCapacity: 0, WarnThreshold: 0.8, CritThreshold: 0.95})
	return nil
}

func (a *App) initRegistry() error {
	a.registry = whatsapp.NewRegistry(a.config.Quota.SnapshotPath+".templates", a.logger)
	if err := a.registry.LoadSnapshot(); err != nil {
		a.logger.WithField("error", err.Error()).Warn("template registry snapshot failed to load, starting empty")
	}
	return nil
}

func (a *App) initMailer() {
	if a.mail != nil {
		return
	}
	if a.config.IsDevelopment() {
		a.mail = mailer.NewConsoleMailer()
		a.logger.Info("using console mailer for development")
		return
	}
	a.mail = mailer.NewSMTPMailer(&mailer.Config{
		SMTPHost:     a.config.SMTP.Host,
		SMTPPort:     a.config.SMTP.Port,
		SMTPUsername: a.config.SMTP.Username,
		SMTPPassword: a.config.SMTP.Password,
		FromEmail:    a.config.SMTP.FromEmail,
		FromName:     a.config.SMTP.FromName,
	})
}

func (a *App) initAdapters() {
	providerAdapter := channel.NewProviderAPIAdapter(a.config.WhatsApp)
	a.adapters = map[domain.Channel]channel.Adapter{
		domain.ChannelMail:            channel.NewMailAdapter(a.mail),
		domain.ChannelWhatsAppAPI:     providerAdapter,
		domain.ChannelWhatsAppBrowser: channel.NewBrowserFallbackAdapter(defaultLauncher, 0, channel.DefaultMinInterSendDelay),
	}
}

func (a *App) initDispatcher() {
	a.dispatcher = &dispatch.Dispatcher{
		Quota:             a.quota,
		Store:             a.store,
		Adapters:          a.adapters,
		WorkersPerChannel: a.config.Dispatch.WorkersPerChannel,
		MaxRetries:        a.config.Dispatch.MaxRetries,
		BackoffBase:       a.config.Dispatch.BackoffBase,
		BackoffCap:        a.config.Dispatch.BackoffCap,
		Logger:            a.logger,
	}
}

// RunBackgroundLoops starts the retention sweeper and the WhatsApp
// template status poller, both of which run until ctx is canceled.
func (a *App) RunBackgroundLoops(ctx context.Context) {
	go delivery.RunRetentionSweeper(ctx, a.store, a.config.Retention.Days, a.config.Retention.Interval, a.logger)

	fetcher, ok := a.adapters[domain.ChannelWhatsAppAPI].(whatsapp.TemplateStatusFetcher)
	if ok {
		go whatsapp.RunPoller(ctx, a.registry, fetcher, a.config.WhatsApp.PollInterval, a.logger)
	}
}

// Start serves HTTP traffic until the server is shut down. It blocks.
func (a *App) Start() error {
	addr := fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port)
	a.logger.WithField("address", addr).Info("dispatch server starting")

	a.serverMu.Lock()
	a.server = &http.Server{Addr: addr, Handler: a.mux}
	close(a.serverStarted)
	a.serverMu.Unlock()

	err := a.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server and persists the quota
// snapshot before closing the delivery store. The template registry is
// not written here; it writes its snapshot on every change.
func (a *App) Shutdown(ctx context.Context) error {
	a.serverMu.RLock()
	server := a.server
	a.serverMu.RUnlock()
	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			return err
		}
	}
	if err := a.quota.Persist(); err != nil {
		a.logger.WithField("error", err.Error()).Warn("failed to persist quota snapshot on shutdown")
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// defaultLauncher opens url in the host's default browser, used by the
// browser-fallback adapter outside of tests.
func defaultLauncher(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
