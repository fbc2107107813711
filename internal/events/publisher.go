package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/swiftlogistics/platform/pkg/broker"
)

// DefaultPublishTimeout bounds a single publish on the request path.
const DefaultPublishTimeout = 5 * time.Second

// Publisher sends event records without ever failing the caller. A publish
// that errors, times out or is nacked by the broker is logged and dropped.
type Publisher struct {
	// Broker may be nil, which turns every publish into a no-op.
	Broker  broker.Publisher
	Timeout time.Duration
	Logger  *slog.Logger

	// Options default to persistent, mandatory JSON.
	Options *broker.PublishOptions

	// ContentType overrides the codec of Options, e.g. broker.ContentTypeCBOR.
	ContentType string
}

// NewPublisher returns a Publisher over b with the default timeout.
func NewPublisher(b broker.Publisher, log *slog.Logger) *Publisher {
	return &Publisher{Broker: b, Timeout: DefaultPublishTimeout, Logger: log}
}

// Publish sends event to exchange under routingKey and reports whether the
// broker accepted it.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, event any) bool {
	if p == nil || p.Broker == nil {
		return false
	}

	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("exchange", exchange, "routing_key", routingKey)

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	// The caller's request may finish before the broker confirms.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	opts := broker.DefaultPublishOptions()
	if p.Options != nil {
		opts = *p.Options
	}
	if p.ContentType != "" {
		opts.ContentType = p.ContentType
	}

	ok, err := p.Broker.Publish(ctx, exchange, routingKey, event, opts)
	switch {
	case err != nil:
		log.Warn("event publish failed", "error", err)
		return false
	case !ok:
		log.Warn("event publish not acknowledged")
		return false
	}
	log.Debug("event published")
	return true
}

func (p *Publisher) UserLoggedIn(ctx context.Context, e AuthEvent) bool {
	return p.Publish(ctx, ExchangeEvents, UserLogin, e)
}

func (p *Publisher) UserRegistered(ctx context.Context, e AuthEvent) bool {
	return p.Publish(ctx, ExchangeEvents, UserRegister, e)
}

func (p *Publisher) UserLoggedOut(ctx context.Context, e AuthEvent) bool {
	return p.Publish(ctx, ExchangeEvents, UserLogout, e)
}

func (p *Publisher) OrderCreated(ctx context.Context, e OrderEvent) bool {
	return p.Publish(ctx, ExchangeOrders, OrderCreated, e)
}

func (p *Publisher) OrderUpdated(ctx context.Context, e OrderEvent) bool {
	return p.Publish(ctx, ExchangeOrders, OrderUpdated, e)
}

// Notify asks the notifier to store n, routed by its kind.
func (p *Publisher) Notify(ctx context.Context, routingKey string, n NotificationEvent) bool {
	return p.Publish(ctx, ExchangeNotifications, routingKey, n)
}
