package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/swiftlogistics/platform/internal/events"
	"github.com/swiftlogistics/platform/internal/store"
	"github.com/swiftlogistics/platform/internal/store/drivers"
	"github.com/swiftlogistics/platform/pkg/broker"
	"github.com/swiftlogistics/platform/pkg/broker/amqpbroker"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

// connectTimeout bounds the first connect and topology declare.
const connectTimeout = 30 * time.Second

// Process holds what a consumer binary needs to build its handlers.
type Process struct {
	Name    string
	Version string
	Config  Config
	Logger  *slog.Logger
	Store   store.Store
	Broker  broker.Broker
	Events  *events.Publisher
}

// Open builds the logger, opens and migrates the store and prepares the
// broker client for a consumer binary. The broker connects in Run.
func Open(ctx context.Context, name, version string, cfg Config) (*Process, error) {
	logger := slogx.New(slogx.Config{
		Service: name,
		Version: version,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	db, err := drivers.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	b := amqpbroker.New(amqpbroker.Config{
		URL:            cfg.RabbitMQURL,
		ConnectionName: name,
		PublishTimeout: cfg.BrokerPublishTimeout,
		Logger:         logger,
	})

	return &Process{
		Name:    name,
		Version: version,
		Config:  cfg,
		Logger:  logger,
		Store:   db,
		Broker:  b,
		Events: &events.Publisher{
			Broker:      b,
			Timeout:     cfg.BrokerPublishTimeout,
			Logger:      logger,
			ContentType: cfg.BrokerContentType,
		},
	}, nil
}

// Run consumes with the given handlers until SIGINT or SIGTERM, then
// stops within the configured grace period and closes the store.
func (p *Process) Run(topology broker.Topology, consumers []Consumer) error {
	healthAddr := ""
	if p.Config.HealthPort > 0 {
		healthAddr = fmt.Sprintf(":%d", p.Config.HealthPort)
	}

	w := New(p.Broker, Options{
		Name:             p.Name,
		Version:          p.Version,
		Topology:         topology,
		Consumers:        consumers,
		HealthAddr:       healthAddr,
		ReconnectInitial: p.Config.ReconnectInitial,
		ReconnectMax:     p.Config.ReconnectMax,
		Logger:           p.Logger,
	})

	p.Logger.Info(p.Name+" starting", "version", p.Version)

	startCtx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	err := w.Start(startCtx)
	cancel()
	if err != nil {
		_ = p.Broker.Close()
		_ = p.Store.Close()
		return fmt.Errorf("start worker: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	p.Logger.Info("shutdown signal received", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), p.Config.ShutdownGracePeriod)
	defer cancel()

	var errs []error
	if err := w.Stop(ctx); err != nil {
		p.Logger.Error("error stopping worker", "error", err)
		errs = append(errs, err)
	}
	if err := p.Store.Close(); err != nil {
		p.Logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}

	p.Logger.Info(p.Name + " stopped")
	return errors.Join(errs...)
}
