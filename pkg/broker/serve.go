package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ServeOptions configures the consumer worker loop.
type ServeOptions struct {
	// Queue is the queue the subscription reads from. Bounded retries
	// republish to it through the default exchange.
	Queue string

	Workers int
	Retry   RetryPolicy

	// Publisher is required when Retry is bounded.
	Publisher Publisher

	Logger *slog.Logger
}

// Serve runs handler over every delivery of sub until ctx is cancelled or
// the subscription ends. A handler success acks the delivery; a failure is
// settled according to the retry policy. Cancelling ctx stops fetching but
// lets in-flight handlers finish and settle their messages.
//
// Serve returns nil after a requested stop and ErrSubscriptionClosed when
// the stream ended on its own.
func Serve(ctx context.Context, sub Subscription, handler Handler, opts ServeOptions) error {
	if !opts.Retry.Unlimited() && opts.Publisher == nil {
		return errors.New("broker: bounded retry needs a publisher")
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("queue", opts.Queue)

	workers := max(opts.Workers, 1)

	stopped := make(chan struct{})
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			if err := sub.Cancel(); err != nil {
				log.Warn("cancel subscription failed", "error", err)
			}
			close(stopped)
		case <-done:
		}
	}()

	w := &worker{
		handler:    handler,
		opts:       opts,
		log:        log,
		stop:       ctx,
		nackNotice: &rate.Sometimes{First: 5, Interval: 30 * time.Second},
	}

	// Handlers run on a context that outlives cancellation so in-flight
	// work can still be acknowledged.
	handlerCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for d := range sub.Deliveries() {
				w.process(handlerCtx, d)
			}
		})
	}
	wg.Wait()

	select {
	case <-stopped:
		return nil
	default:
		if ctx.Err() != nil {
			return nil
		}
		return ErrSubscriptionClosed
	}
}

type worker struct {
	handler Handler
	opts    ServeOptions
	log     *slog.Logger
	stop    context.Context

	// nackNotice throttles the requeue warning so a poison message cannot
	// flood the log.
	nackNotice *rate.Sometimes
}

func (w *worker) process(ctx context.Context, d Delivery) {
	log := w.log.With("routing_key", d.RoutingKey, "message_id", d.ID)

	err := w.invoke(ctx, d.Message)
	if err == nil {
		if ackErr := d.Ack(); ackErr != nil {
			log.Warn("ack failed, message will be redelivered", "error", ackErr)
		}
		return
	}

	attempt := RetryCount(d.Headers) + 1
	policy := w.opts.Retry

	// The delay also applies to unlimited requeues, where it throttles a
	// failing message while it stays unacknowledged.
	w.sleep(policy.Delay(attempt))

	switch {
	case policy.Unlimited():
		w.nackNotice.Do(func() {
			log.Warn("handler failed, requeueing", "error", err, "redelivered", d.Redelivered)
		})
		if nackErr := d.Nack(true); nackErr != nil {
			log.Warn("nack failed", "error", nackErr)
		}

	case !policy.Exhausted(attempt):
		log.Warn("handler failed, scheduling retry", "error", err, "attempt", attempt, "max_attempts", policy.MaxAttempts)
		w.republish(ctx, log, d, "", w.opts.Queue, withOrigin(withRetryCount(d.Headers, attempt), d))

	case policy.DeadLetterExchange != "":
		headers := withOrigin(withRetryCount(d.Headers, attempt), d)
		headers[FailureReasonHeader] = err.Error()

		key := policy.DeadLetterRoutingKey
		if key == "" {
			key, _ = headers[OriginalRoutingKeyHeader].(string)
		}

		log.Error("handler failed, dead-lettering", "error", err, "attempt", attempt, "dead_letter_exchange", policy.DeadLetterExchange)
		w.republish(ctx, log, d, policy.DeadLetterExchange, key, headers)

	default:
		log.Error("handler failed, rejecting", "error", err, "attempt", attempt)
		if nackErr := d.Nack(false); nackErr != nil {
			log.Warn("nack failed", "error", nackErr)
		}
	}
}

// invoke runs the handler and turns panics into errors.
func (w *worker) invoke(ctx context.Context, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrHandlerFailure, r)
		}
	}()

	if err := w.handler(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrHandlerFailure, err)
	}
	return nil
}

// republish sends a copy of d and acks the original only once the copy
// has been accepted. Otherwise the original goes back to its queue.
func (w *worker) republish(ctx context.Context, log *slog.Logger, d Delivery, exchange, key string, headers map[string]any) {
	opts := PublishOptions{
		Persistent:  d.Persistent,
		ContentType: d.ContentType,
		Headers:     headers,
		MessageID:   d.ID,
	}

	ok, err := w.opts.Publisher.Publish(ctx, exchange, key, d.Body, opts)
	if err != nil || !ok {
		log.Warn("republish failed, requeueing original", "error", err, "accepted", ok)
		_ = d.Nack(true)
		return
	}
	if err := d.Ack(); err != nil {
		log.Warn("ack after republish failed, message may be duplicated", "error", err)
	}
}

// sleep waits for d unless the consumer is being stopped.
func (w *worker) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-w.stop.Done():
	}
}
