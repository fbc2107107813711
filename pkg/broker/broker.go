// Package broker is the messaging abstraction shared by every service:
// topology declaration, confirmed publishing and acknowledged consumption
// over a topic broker. amqpbroker talks to RabbitMQ, memory is an
// in-process double with the same semantics.
package broker

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrChannelUnavailable is returned by every operation attempted
	// before Connect succeeds or after the connection dropped.
	ErrChannelUnavailable = errors.New("broker: channel unavailable")

	// ErrPublishRejected marks a publish the broker negatively acknowledged.
	ErrPublishRejected = errors.New("broker: publish rejected")

	// ErrHandlerFailure wraps errors returned or panics raised by handlers.
	ErrHandlerFailure = errors.New("broker: handler failure")

	// ErrTopologyMismatch is returned when an entity is redeclared with
	// parameters different from the existing one.
	ErrTopologyMismatch = errors.New("broker: topology mismatch")

	// ErrNotFound is returned for operations on undeclared entities.
	ErrNotFound = errors.New("broker: not found")

	// ErrSubscriptionClosed is returned by Serve when the delivery stream
	// ends without the caller asking for it, usually a lost connection.
	ErrSubscriptionClosed = errors.New("broker: subscription closed")
)

// State is the connection lifecycle of a client.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

type ExchangeKind string

const (
	Topic  ExchangeKind = "topic"
	Direct ExchangeKind = "direct"
	Fanout ExchangeKind = "fanout"
)

type ExchangeSpec struct {
	Name    string
	Kind    ExchangeKind
	Durable bool
}

type QueueSpec struct {
	Name    string
	Durable bool

	// DeadLetterExchange receives messages rejected without requeue.
	DeadLetterExchange string
}

// Binding routes messages from Exchange whose routing key matches Pattern
// into Queue.
type Binding struct {
	Queue    string
	Exchange string
	Pattern  string
}

// Message is the envelope carried through the broker.
type Message struct {
	ID          string
	Exchange    string
	RoutingKey  string
	ContentType string
	Body        []byte
	Headers     map[string]any
	Persistent  bool
	Timestamp   time.Time
	Redelivered bool
}

// Acknowledger settles a single delivery.
type Acknowledger interface {
	Ack() error
	Nack(requeue bool) error
}

// Delivery is a received message plus the handle that settles it. Exactly
// one of Ack or Nack takes effect; later calls are no-ops.
type Delivery struct {
	Message

	ack  Acknowledger
	once *sync.Once
}

// NewDelivery pairs a message with its acknowledger.
func NewDelivery(msg Message, ack Acknowledger) Delivery {
	return Delivery{Message: msg, ack: ack, once: new(sync.Once)}
}

func (d Delivery) Ack() error {
	var err error
	d.once.Do(func() { err = d.ack.Ack() })
	return err
}

func (d Delivery) Nack(requeue bool) error {
	var err error
	d.once.Do(func() { err = d.ack.Nack(requeue) })
	return err
}

// Subscription is a cancellable stream of deliveries from one queue.
// Cancel stops fetching; deliveries already handed out can still be
// settled. The channel closes once the stream has ended.
type Subscription interface {
	Deliveries() <-chan Delivery
	Cancel() error
}

type PublishOptions struct {
	Persistent bool
	Mandatory  bool

	// ContentType selects the codec. Empty means JSON.
	ContentType string
	Headers     map[string]any

	// MessageID is generated when empty.
	MessageID string
}

// DefaultPublishOptions are persistent, mandatory JSON messages.
func DefaultPublishOptions() PublishOptions {
	return PublishOptions{Persistent: true, Mandatory: true, ContentType: ContentTypeJSON}
}

type SubscribeOptions struct {
	// Prefetch bounds unacknowledged deliveries held by the subscriber.
	// Zero means 1.
	Prefetch int
}

type ConsumeOptions struct {
	Prefetch int

	// Workers is the number of handler goroutines. Zero means 1.
	Workers int

	Retry RetryPolicy
}

// Handler processes one message. A nil error acknowledges it.
type Handler func(ctx context.Context, msg Message) error

// Declarer creates topology. All methods are idempotent.
type Declarer interface {
	DeclareExchange(ctx context.Context, spec ExchangeSpec) error
	DeclareQueue(ctx context.Context, spec QueueSpec) error
	BindQueue(ctx context.Context, b Binding) error
}

// Publisher sends a message and reports whether the broker accepted it.
// A negative acknowledgement is (false, nil); the caller decides whether
// to retry.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, payload any, opts PublishOptions) (bool, error)
}

// Broker is the full client surface.
type Broker interface {
	Declarer
	Publisher

	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, queue string, opts SubscribeOptions) (Subscription, error)
	Consume(ctx context.Context, queue string, handler Handler, opts ConsumeOptions) error
	State() State

	// Health returns nil while the client holds a usable channel.
	Health(ctx context.Context) error
	Close() error
}
