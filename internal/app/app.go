// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lakeridepros/ticketwatch/internal/config"
	"github.com/lakeridepros/ticketwatch/internal/identity"
	identitypostgres "github.com/lakeridepros/ticketwatch/internal/identity/postgres"
	"github.com/lakeridepros/ticketwatch/internal/notify"
	"github.com/lakeridepros/ticketwatch/internal/notify/email"
	"github.com/lakeridepros/ticketwatch/internal/notify/push"
	"github.com/lakeridepros/ticketwatch/internal/notify/sms"
	"github.com/lakeridepros/ticketwatch/internal/pkg/ctxlog"
	"github.com/lakeridepros/ticketwatch/internal/pkg/httputil"
	"github.com/lakeridepros/ticketwatch/internal/pkg/metrics"
	"github.com/lakeridepros/ticketwatch/internal/pkg/postgres"
	"github.com/lakeridepros/ticketwatch/internal/tickets"
	ticketspostgres "github.com/lakeridepros/ticketwatch/internal/tickets/postgres"
	"github.com/lakeridepros/ticketwatch/internal/version"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	background    context.CancelFunc
	sweeper       *tickets.Sweeper
	sweeperDone   chan struct{}
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.Database.Migrate {
		if err := postgres.Migrate(cfg.Database.URL); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())

	app := &App{
		config:     cfg,
		logger:     logger,
		db:         db,
		background: backgroundCancel,
	}

	go app.collectDBMetrics(backgroundCtx)

	router, sweeper, err := app.setup(backgroundCtx)
	if err != nil {
		db.Close()
		backgroundCancel()
		return nil, fmt.Errorf("setup application: %w", err)
	}

	app.sweeper = sweeper

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start the SLA sweep loop alongside the servers.
	app.sweeperDone = make(chan struct{})
	go func() {
		defer close(app.sweeperDone)
		app.sweeper.Run(backgroundCtx)
	}()

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	// Start main server
	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	// Stop the sweeper and metrics collection first
	a.background()
	if a.sweeperDone != nil {
		select {
		case <-a.sweeperDone:
		case <-ctx.Done():
		}
	}

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Sweeper returns the SLA sweeper instance. Used in tests to trigger a
// sweep without waiting for the interval.
func (a *App) Sweeper() *tickets.Sweeper {
	return a.sweeper
}

func (a *App) setup(_ context.Context) (*chi.Mux, *tickets.Sweeper, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	slog.Info("notification channels configured",
		"email_enabled", a.config.Notify.Email.Enabled,
		"push_enabled", a.config.Notify.Push.Enabled,
		"sms_enabled", a.config.Notify.SMS.Enabled,
	)

	emailSender, err := email.NewSender(email.Config{
		Enabled:      a.config.Notify.Email.Enabled,
		SMTPHost:     a.config.Notify.Email.SMTPHost,
		SMTPPort:     a.config.Notify.Email.SMTPPort,
		SMTPUser:     a.config.Notify.Email.SMTPUser,
		SMTPPassword: a.config.Notify.Email.SMTPPassword,
		FromAddress:  a.config.Notify.Email.FromAddress,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create email sender: %w", err)
	}

	if !a.config.Notify.Email.Enabled {
		slog.Warn("email sender is disabled: email notifications will not be sent")
	}

	pushSender, err := push.NewSender(push.Config{
		Enabled:   a.config.Notify.Push.Enabled,
		Endpoint:  a.config.Notify.Push.Endpoint,
		ServerKey: a.config.Notify.Push.ServerKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create push sender: %w", err)
	}

	renderer, err := notify.NewRenderer(a.config.Notify.Source)
	if err != nil {
		return nil, nil, fmt.Errorf("create notification renderer: %w", err)
	}

	senders := []notify.Sender{emailSender}

	// SMS is optional; without a configured sender phone targets are
	// silently skipped by the dispatcher.
	if a.config.Notify.SMS.Enabled {
		smsSender, err := sms.NewSender(sms.Config{
			Enabled:    true,
			APIBase:    a.config.Notify.SMS.APIBase,
			AccountSID: a.config.Notify.SMS.AccountSID,
			AuthToken:  a.config.Notify.SMS.AuthToken,
			From:       a.config.Notify.SMS.From,
			RateLimit:  a.config.Notify.SMS.RateLimit,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create sms sender: %w", err)
		}
		senders = append(senders, smsSender)
	}

	dispatcher := notify.NewDispatcher(renderer, pushSender, senders...)

	accessStore := identitypostgres.NewAccessStore(a.db)
	profileStore := identitypostgres.NewProfileStore(a.db)
	tokenStore := identitypostgres.NewTokenStore(a.db)
	resolver := identity.NewResolver(accessStore, profileStore, tokenStore)

	ticketsRepo := ticketspostgres.NewRepository(a.db)
	watcher := tickets.NewWatcher(ticketsRepo, resolver, dispatcher, a.config.Notify.Origin)

	sweeper := tickets.NewSweeper(tickets.SweeperConfig{
		Interval:  a.config.SLA.SweepInterval,
		Lookahead: a.config.SLA.Lookahead,
		PageSize:  a.config.SLA.PageSize,
	}, ticketsRepo, resolver, dispatcher, watcher)

	ticketsHandler := tickets.NewHandler(ticketsRepo, watcher)

	r.Route("/api/v1", func(r chi.Router) {
		ticketsHandler.RegisterRoutes(r)
	})

	return r, sweeper, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
