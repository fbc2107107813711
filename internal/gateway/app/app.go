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

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/internal/auth/guard"
	"github.com/swiftlogistics/platform/internal/auth/service"
	"github.com/swiftlogistics/platform/internal/events"
	httpapi "github.com/swiftlogistics/platform/internal/gateway/http"
	"github.com/swiftlogistics/platform/internal/session"
	"github.com/swiftlogistics/platform/internal/store"
	"github.com/swiftlogistics/platform/internal/store/drivers"
	"github.com/swiftlogistics/platform/pkg/broker"
	"github.com/swiftlogistics/platform/pkg/broker/amqpbroker"
	"github.com/swiftlogistics/platform/pkg/httpx"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	connectTimeout = 30 * time.Second
)

// Deps are the infrastructure clients the gateway runs on. New opens them
// from Config; tests hand in their own.
type Deps struct {
	Store    store.Store
	Sessions session.Store
	Broker   broker.Broker

	// Counter backs rate limiting. Nil means process-local counters.
	Counter httpx.WindowCounter
}

// Application encapsulates the API gateway with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Infrastructure
	db       store.Store
	sessions session.Store
	broker   broker.Broker
	counter  httpx.WindowCounter

	// Services
	publisher        *events.Publisher
	tokenService     *service.TokenService
	accountService   *service.AccountService
	orderService     *service.OrderService
	bootstrapService *service.BootstrapService
	guard            *guard.Guard

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New connects to the store, Redis and RabbitMQ named in cfg and wires the
// gateway on top of them.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisStore, err := session.NewRedis(cfg.Redis, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure session store: %w", err)
	}
	if err := redisStore.Ping(ctx); err != nil {
		_ = db.Close()
		_ = redisStore.Close()
		return nil, fmt.Errorf("failed to reach session store: %w", err)
	}

	bk := amqpbroker.New(amqpbroker.Config{
		URL:            cfg.RabbitMQURL,
		ConnectionName: "api-gateway",
		PublishTimeout: cfg.BrokerPublishTimeout,
		Logger:         logger,
	})
	if err := bk.Connect(ctx); err != nil {
		_ = db.Close()
		_ = redisStore.Close()
		return nil, fmt.Errorf("failed to connect to message broker: %w", err)
	}

	app, err := newApplication(cfg, logger, Deps{
		Store:    db,
		Sessions: redisStore,
		Broker:   bk,
		Counter:  session.NewRedisWindowCounter(redisStore.Client()),
	})
	if err != nil {
		_ = bk.Close()
		_ = redisStore.Close()
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

// NewWithDeps wires the gateway over already opened infrastructure. The
// store is migrated and the gateway topology declared here as in New.
func NewWithDeps(cfg Config, deps Deps) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if deps.Store == nil || deps.Sessions == nil || deps.Broker == nil {
		return nil, errors.New("store, sessions and broker are required")
	}
	return newApplication(cfg, newLogger(cfg), deps)
}

func newLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "api-gateway",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

func newApplication(cfg Config, logger *slog.Logger, deps Deps) (*Application, error) {
	app := &Application{
		cfg:      cfg,
		logger:   logger,
		db:       deps.Store,
		sessions: deps.Sessions,
		broker:   deps.Broker,
		counter:  deps.Counter,
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initBroker(); err != nil {
		return nil, err
	}
	if err := app.initServices(); err != nil {
		return nil, err
	}
	if err := app.bootstrap(); err != nil {
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the gateway's HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("api gateway starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
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

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down api gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	var errs []error
	if err := app.broker.Close(); err != nil {
		app.logger.Error("error closing message broker", "error", err)
		errs = append(errs, err)
	}
	if err := app.sessions.Close(); err != nil {
		app.logger.Error("error closing session store", "error", err)
		errs = append(errs, err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}

	app.logger.Info("api gateway stopped")
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg Config) (store.Store, error) {
	return drivers.Open(ctx, drivers.Config{
		Driver:        cfg.StoreDriver,
		SQLitePath:    cfg.SQLitePath,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
	})
}

// initDatabase applies migrations
func (app *Application) initDatabase() error {
	if err := app.db.ApplyMigrations(); err != nil {
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.StoreDriver)
	return nil
}

// initBroker declares the gateway topology. A gateway that cannot declare
// its exchanges does not start.
func (app *Application) initBroker() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := app.broker.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to message broker: %w", err)
	}
	if err := events.GatewayTopology().Declare(ctx, app.broker); err != nil {
		return fmt.Errorf("failed to declare broker topology: %w", err)
	}

	app.logger.Info("broker topology declared", "state", app.broker.State())
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	app.publisher = &events.Publisher{
		Broker:      app.broker,
		Timeout:     app.cfg.BrokerPublishTimeout,
		Logger:      app.logger.With("component", "event_publisher"),
		ContentType: app.cfg.BrokerContentType,
	}

	tokens, err := service.NewTokenService(service.TokenConfig{
		Secret:   []byte(app.cfg.JWTSecret),
		Issuer:   app.cfg.JWTIssuer,
		Audience: app.cfg.JWTAudience,
		TTL:      app.cfg.TokenTTL,
	}, app.sessions)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}
	app.tokenService = tokens

	app.accountService = &service.AccountService{
		Store:  app.db,
		Tokens: app.tokenService,
		Events: app.publisher,
	}
	app.orderService = &service.OrderService{
		Store:  app.db,
		Events: app.publisher,
	}
	app.bootstrapService = &service.BootstrapService{Store: app.db}

	policy, err := guard.ParsePolicy(app.cfg.OwnershipPolicy, app.orderService)
	if err != nil {
		return err
	}
	app.guard = guard.New(app.tokenService, policy)
	app.logger.Info("ownership policy selected", "policy", app.cfg.OwnershipPolicy)

	return nil
}

// bootstrap creates the first admin when ADMIN_EMAIL and ADMIN_PASSWORD are
// set. An existing admin is not an error.
func (app *Application) bootstrap() error {
	if app.cfg.AdminEmail == "" && app.cfg.AdminPassword == "" {
		return nil
	}

	ctx := slogx.WithContext(context.Background(), app.logger)
	_, err := app.bootstrapService.Bootstrap(ctx, domain.BootstrapData{
		AdminEmail:    app.cfg.AdminEmail,
		AdminName:     app.cfg.AdminName,
		AdminPassword: app.cfg.AdminPassword,
	})
	switch {
	case err == nil, errors.Is(err, service.ErrBootstrapAlready):
		return nil
	default:
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.cfg.ClientURLs, app.logger)

	router.Store = app.db
	router.Sessions = app.sessions
	router.Broker = app.broker
	router.Accounts = app.accountService
	router.Orders = app.orderService
	router.Guard = app.guard
	router.Counter = app.counter
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
