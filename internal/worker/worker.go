// Package worker runs long-lived queue consumers: it connects to the
// broker, declares the process topology, serves every consumer and
// reconnects with exponential backoff when the connection drops.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/swiftlogistics/platform/pkg/broker"
)

// Consumer binds a handler to a queue.
type Consumer struct {
	Queue   string
	Handler broker.Handler
	Options broker.ConsumeOptions
}

// Options configures a Worker.
type Options struct {
	// Name identifies the process in logs and health responses.
	Name    string
	Version string

	// Topology is declared on every (re)connect. A failure on the first
	// connect is fatal.
	Topology  broker.Topology
	Consumers []Consumer

	// HealthAddr is the listen address of the health server. Empty
	// disables it.
	HealthAddr string

	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	Logger *slog.Logger
}

// Worker owns the consume loop of one process.
type Worker struct {
	opts   Options
	broker broker.Broker
	log    *slog.Logger

	startTime time.Time
	health    *http.Server

	mu       sync.Mutex
	sessions int

	cancel context.CancelFunc
	doneCh chan struct{}
}

func New(b broker.Broker, opts Options) *Worker {
	if opts.ReconnectInitial <= 0 {
		opts.ReconnectInitial = time.Second
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		opts:   opts,
		broker: b,
		log:    log.With("component", "worker", "worker", opts.Name),
	}
}

// Start connects, declares the topology and starts consuming in the
// background. It fails when the first connect or declare fails.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.connect(ctx); err != nil {
		return err
	}

	w.startTime = time.Now()
	if w.opts.HealthAddr != "" {
		w.startHealthServer()
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel
	w.doneCh = make(chan struct{})
	go w.run(runCtx)

	w.log.Info("worker started", "consumers", len(w.opts.Consumers))
	return nil
}

// Stop cancels every consumer, waits for in-flight handlers to settle
// their messages and closes the broker connection. ctx bounds the wait.
func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()

	var errs []error
	select {
	case <-w.doneCh:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("consumers did not stop in time: %w", ctx.Err()))
	}

	if w.health != nil {
		if err := w.health.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("health server shutdown: %w", err))
		}
	}
	if err := w.broker.Close(); err != nil {
		errs = append(errs, fmt.Errorf("broker close: %w", err))
	}

	w.log.Info("worker stopped")
	return errors.Join(errs...)
}

// Sessions reports how many consume sessions have started, one per
// successful connect.
func (w *Worker) Sessions() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessions
}

func (w *Worker) connect(ctx context.Context) error {
	if w.broker.State() != broker.Connected {
		// Drop whatever is left of the previous connection first.
		_ = w.broker.Close()
		if err := w.broker.Connect(ctx); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
	}
	if err := w.opts.Topology.Declare(ctx, w.broker); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}
	return nil
}

func (w *Worker) newBackOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.opts.ReconnectInitial
	b.MaxInterval = w.opts.ReconnectMax
	b.MaxElapsedTime = 0
	return backoff.WithContext(b, ctx)
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		err := w.serve(ctx)
		if ctx.Err() != nil {
			return
		}
		w.log.Warn("consumers stopped, reconnecting", "error", err)

		err = backoff.RetryNotify(
			func() error { return w.connect(ctx) },
			w.newBackOff(ctx),
			func(err error, next time.Duration) {
				w.log.Warn("reconnect failed", "error", err, "retry_in", next)
			},
		)
		if err != nil {
			// Only cancellation ends an unbounded backoff.
			return
		}
		w.log.Info("reconnected")
	}
}

// serve runs every consumer until ctx is cancelled or one of them ends,
// which cancels the rest. It returns the first error seen.
func (w *Worker) serve(ctx context.Context) error {
	w.mu.Lock()
	w.sessions++
	w.mu.Unlock()

	if len(w.opts.Consumers) == 0 {
		<-ctx.Done()
		return nil
	}

	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, len(w.opts.Consumers))
	for _, c := range w.opts.Consumers {
		go func() {
			err := w.broker.Consume(consumeCtx, c.Queue, c.Handler, c.Options)
			if err != nil {
				err = fmt.Errorf("%s: %w", c.Queue, err)
			}
			errs <- err
		}()
	}

	var first error
	for range w.opts.Consumers {
		err := <-errs
		cancel()
		if first == nil {
			first = err
		}
	}
	if first == nil && ctx.Err() == nil {
		first = broker.ErrSubscriptionClosed
	}
	return first
}
