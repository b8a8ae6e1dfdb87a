package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	httpapi "github.com/aussiebroadwan/gatekeeper/internal/auth/http"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/service"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/pkg/authz"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"

	meterName = "github.com/aussiebroadwan/gatekeeper"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Metrics
	meterProvider  *sdkmetric.MeterProvider
	meter          metric.Meter
	metricsHandler http.Handler

	// Core dependencies
	db         store.Store
	refresh    store.RefreshStore
	closeRedis func() error
	keyManager *jwtx.KeyManager
	engine     *authz.Engine

	// Services
	tokenService        *service.TokenService
	sessionService      *service.SessionService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
// Configuration problems (weak key, excessive skew, a policy without a
// handler, an unreadable seed file) are returned here so the process never
// starts serving with them.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gatekeeper",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(app.cfg.PepperFile)
	if err := cryptox.LoadPepper(); err != nil {
		return nil, err
	}

	keyManager, err := InitAuthKeys(app.cfg, app.logger)
	if err != nil {
		return nil, err
	}
	app.keyManager = keyManager

	mp, metricsHandler, err := initMetrics(app.cfg)
	if err != nil {
		return nil, err
	}
	app.meterProvider = mp
	app.meter = mp.Meter(meterName)
	app.metricsHandler = metricsHandler

	engine, err := InitPolicies(app.cfg, app.meter, app.logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.engine = engine

	ctx := slogx.WithContext(context.Background(), app.logger)

	if err := app.initDatabase(); err != nil {
		_ = app.Close()
		return nil, err
	}

	if err := app.initRefreshStore(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	if err := app.seed(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the HTTP handler serving every route.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		_ = app.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down a running application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.Close(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// Close releases the stores and flushes metrics. Shutdown calls it; use it
// directly only when Run was never called.
func (app *Application) Close() error {
	var errs []error
	if app.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := app.meterProvider.Shutdown(ctx); err != nil {
			app.logger.Error("error shutting down meter provider", "error", err)
			errs = append(errs, err)
		}
		cancel()
		app.meterProvider = nil
	}
	if app.closeRedis != nil {
		if err := app.closeRedis(); err != nil {
			app.logger.Error("error closing redis", "error", err)
			errs = append(errs, err)
		}
		app.closeRedis = nil
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
		app.db = nil
	}
	return errors.Join(errs...)
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = app.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initRefreshStore picks where refresh token records live. The sqlite
// adapter shares the user database; redis keeps them out of it.
func (app *Application) initRefreshStore(ctx context.Context) error {
	switch app.cfg.RefreshStore {
	case "", "sqlite":
		app.refresh = store.NewRefreshStoreAdapter(app.db)
	case "redis":
		rs, err := redis.Open(ctx, redis.Config{Addr: app.cfg.RedisAddr})
		if err != nil {
			return fmt.Errorf("failed to connect refresh store: %w", err)
		}
		app.refresh = rs
		app.closeRedis = rs.Close
	default:
		return fmt.Errorf("unknown AUTH_REFRESH_STORE %q (supported: sqlite, redis)", app.cfg.RefreshStore)
	}

	app.logger.Info("refresh store ready", "driver", app.cfg.RefreshStore)
	return nil
}

// seed creates the initial users when the user table is empty.
func (app *Application) seed(ctx context.Context) error {
	data := service.DefaultSeed()
	if app.cfg.SeedFile != "" {
		var err error
		if data, err = service.LoadSeedFile(app.cfg.SeedFile); err != nil {
			return fmt.Errorf("failed to load seed file: %w", err)
		}
	} else if app.cfg.Env == "prod" {
		// Demo credentials never reach production.
		data = domain.SeedData{}
	}

	generated, err := (&service.SeedService{Store: app.db}).Seed(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	for username, password := range generated {
		// Printed once so the operator can log in; never stored in plain text.
		app.logger.Warn("generated initial password", "username", username, "password", password)
	}
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	metrics, err := service.NewTokenMetrics(app.meter)
	if err != nil {
		return fmt.Errorf("failed to register token metrics: %w", err)
	}

	app.tokenService = &service.TokenService{
		KeyManager: app.keyManager,
		Issuer:     app.cfg.Issuer,
		Audience:   []string{app.cfg.Audience},
		AccessTTL:  app.cfg.TokenTTL,
		Metrics:    metrics,
	}

	app.sessionService = &service.SessionService{
		Credentials:  &service.CredentialVerifier{Store: app.db},
		Tokens:       app.tokenService,
		Store:        app.db,
		RefreshStore: app.refresh,
		RefreshTTL:   app.cfg.RefreshTTL,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.refresh,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager,
		BuildVersion,
		app.db,
		app.refresh,
		app.logger,
	)

	router.Sessions = app.sessionService
	router.Tokens = app.tokenService
	router.Engine = app.engine
	router.Metrics = app.metricsHandler
	router.Limits = httpapi.RateLimits{
		Login:         httpx.ParseRateLimitFromEnv("STRICT", httpx.StrictLimit),
		Refresh:       httpx.ParseRateLimitFromEnv("MODERATE", httpx.ModerateLimit),
		Authenticated: httpx.ParseRateLimitFromEnv("MODERATE", httpx.ModerateLimit),
		PreAuth:       httpx.ParseRateLimitFromEnv("PREAUTH", httpx.PublicLimit),
		Public:        httpx.ParseRateLimitFromEnv("PUBLIC", httpx.PublicLimit),
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
