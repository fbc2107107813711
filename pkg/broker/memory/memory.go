// Package memory is an in-process topic broker with the delivery semantics
// of the RabbitMQ client: confirmed publishes, per-subscriber prefetch,
// manual acknowledgement, requeue and dead lettering.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swiftlogistics/platform/pkg/broker"
)

// Broker implements broker.Broker in memory. The zero value is not usable;
// call New.
type Broker struct {
	log *slog.Logger

	mu        sync.Mutex
	state     broker.State
	exchanges map[string]broker.ExchangeSpec
	queues    map[string]*queue
	bindings  []broker.Binding
	subs      map[*subscription]struct{}
	returned  []broker.Message
	nextTag   uint64

	// changed is closed and replaced whenever queue contents or unacked
	// counts move, waking every waiting subscription.
	changed chan struct{}

	// rejectPublishes makes every publish come back negatively acknowledged.
	rejectPublishes bool
}

type queue struct {
	spec  broker.QueueSpec
	ready []broker.Message
}

var _ broker.Broker = (*Broker)(nil)

// New returns a disconnected broker with no topology.
func New(log *slog.Logger) *Broker {
	if log == nil {
		log = slog.Default()
	}
	return &Broker{
		log:       log.With("component", "memory_broker"),
		exchanges: make(map[string]broker.ExchangeSpec),
		queues:    make(map[string]*queue),
		subs:      make(map[*subscription]struct{}),
		changed:   make(chan struct{}),
	}
}

// Connect opens the broker. Calling it while connected is a no-op.
func (b *Broker) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == broker.Connected {
		return nil
	}
	b.state = broker.Connected
	b.log.Info("connected")
	return nil
}

func (b *Broker) State() broker.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Broker) Health(context.Context) error {
	if b.State() != broker.Connected {
		return broker.ErrChannelUnavailable
	}
	return nil
}

// Close ends every subscription and returns their unacknowledged messages
// to the head of their queues, flagged as redelivered. Messages and
// topology survive; a later Connect picks up where this left off.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == broker.Disconnected {
		return nil
	}
	b.state = broker.Closing
	b.dropSubscriptionsLocked()
	b.state = broker.Disconnected
	b.log.Info("closed")
	return nil
}

// Restart simulates a broker node restart: the connection drops, and only
// durable exchanges, durable queues and persistent messages survive.
func (b *Broker) Restart() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dropSubscriptionsLocked()
	b.state = broker.Disconnected

	for name, ex := range b.exchanges {
		if !ex.Durable {
			delete(b.exchanges, name)
		}
	}
	for name, q := range b.queues {
		if !q.spec.Durable {
			delete(b.queues, name)
			continue
		}
		q.ready = slices.DeleteFunc(q.ready, func(m broker.Message) bool { return !m.Persistent })
	}
	b.bindings = slices.DeleteFunc(b.bindings, func(bd broker.Binding) bool {
		_, qok := b.queues[bd.Queue]
		_, eok := b.exchanges[bd.Exchange]
		return !qok || !eok
	})
	b.log.Info("restarted")
}

// RejectPublishes toggles negative acknowledgement of every publish.
func (b *Broker) RejectPublishes(reject bool) {
	b.mu.Lock()
	b.rejectPublishes = reject
	b.mu.Unlock()
}

// Depth is the number of ready messages in a queue.
func (b *Broker) Depth(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[name]; ok {
		return len(q.ready)
	}
	return 0
}

// Unacked is the number of messages from a queue delivered but not yet settled.
func (b *Broker) Unacked(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for s := range b.subs {
		if s.queue == name {
			n += len(s.unacked)
		}
	}
	return n
}

// Returned lists mandatory messages that matched no queue.
func (b *Broker) Returned() []broker.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.returned)
}

func (b *Broker) DeclareExchange(_ context.Context, spec broker.ExchangeSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("%w: the default exchange cannot be declared", broker.ErrTopologyMismatch)
	}
	if spec.Kind == "" {
		spec.Kind = broker.Topic
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != broker.Connected {
		return broker.ErrChannelUnavailable
	}
	if existing, ok := b.exchanges[spec.Name]; ok {
		if existing != spec {
			return fmt.Errorf("%w: exchange %q declared as %s durable=%t", broker.ErrTopologyMismatch,
				spec.Name, existing.Kind, existing.Durable)
		}
		return nil
	}
	b.exchanges[spec.Name] = spec
	return nil
}

func (b *Broker) DeclareQueue(_ context.Context, spec broker.QueueSpec) error {
	if spec.Name == "" {
		return errors.New("memory broker: queue name required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != broker.Connected {
		return broker.ErrChannelUnavailable
	}
	if existing, ok := b.queues[spec.Name]; ok {
		if existing.spec != spec {
			return fmt.Errorf("%w: queue %q declared with durable=%t dead_letter_exchange=%q",
				broker.ErrTopologyMismatch, spec.Name, existing.spec.Durable, existing.spec.DeadLetterExchange)
		}
		return nil
	}
	b.queues[spec.Name] = &queue{spec: spec}
	return nil
}

func (b *Broker) BindQueue(_ context.Context, bd broker.Binding) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != broker.Connected {
		return broker.ErrChannelUnavailable
	}
	if _, ok := b.queues[bd.Queue]; !ok {
		return fmt.Errorf("%w: queue %q", broker.ErrNotFound, bd.Queue)
	}
	if _, ok := b.exchanges[bd.Exchange]; !ok {
		return fmt.Errorf("%w: exchange %q", broker.ErrNotFound, bd.Exchange)
	}
	if !slices.Contains(b.bindings, bd) {
		b.bindings = append(b.bindings, bd)
	}
	return nil
}

// Publish routes a message to every bound queue. The default exchange ""
// delivers straight to the queue named by the routing key.
func (b *Broker) Publish(ctx context.Context, exchange, routingKey string, payload any, opts broker.PublishOptions) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	body, contentType, err := broker.Encode(payload, opts.ContentType)
	if err != nil {
		return false, err
	}

	msg := broker.Message{
		ID:          opts.MessageID,
		Exchange:    exchange,
		RoutingKey:  routingKey,
		ContentType: contentType,
		Body:        body,
		Headers:     maps.Clone(opts.Headers),
		Persistent:  opts.Persistent,
		Timestamp:   time.Now().UTC(),
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != broker.Connected {
		return false, broker.ErrChannelUnavailable
	}
	if exchange != "" {
		if _, ok := b.exchanges[exchange]; !ok {
			return false, fmt.Errorf("%w: exchange %q", broker.ErrNotFound, exchange)
		}
	}
	if b.rejectPublishes {
		b.log.Warn("publish negatively acknowledged", "exchange", exchange, "routing_key", routingKey, "message_id", msg.ID)
		return false, nil
	}

	if n := b.routeLocked(msg); n == 0 && opts.Mandatory {
		b.returned = append(b.returned, msg)
		b.log.Warn("unroutable message returned", "exchange", exchange, "routing_key", routingKey, "message_id", msg.ID)
	}
	return true, nil
}

// routeLocked appends msg to every matching queue and reports how many
// received it. Caller holds mu.
func (b *Broker) routeLocked(msg broker.Message) int {
	if msg.Exchange == "" {
		q, ok := b.queues[msg.RoutingKey]
		if !ok {
			return 0
		}
		q.ready = append(q.ready, msg)
		b.notifyLocked()
		return 1
	}

	kind := b.exchanges[msg.Exchange].Kind
	seen := make(map[string]bool)
	for _, bd := range b.bindings {
		if bd.Exchange != msg.Exchange || seen[bd.Queue] {
			continue
		}
		if !broker.Routes(kind, bd.Pattern, msg.RoutingKey) {
			continue
		}
		seen[bd.Queue] = true
		q := b.queues[bd.Queue]
		q.ready = append(q.ready, msg)
	}
	if len(seen) > 0 {
		b.notifyLocked()
	}
	return len(seen)
}

func (b *Broker) notifyLocked() {
	close(b.changed)
	b.changed = make(chan struct{})
}

// deadLetterLocked routes a rejected message through the queue's dead-letter
// exchange, or drops it when none is configured. Caller holds mu.
func (b *Broker) deadLetterLocked(q *queue, msg broker.Message) {
	dlx := q.spec.DeadLetterExchange
	if dlx == "" {
		b.log.Warn("message rejected and dropped", "queue", q.spec.Name, "message_id", msg.ID)
		return
	}
	if _, ok := b.exchanges[dlx]; !ok {
		b.log.Warn("dead-letter exchange missing, message dropped", "queue", q.spec.Name, "dead_letter_exchange", dlx)
		return
	}

	msg.Headers = maps.Clone(msg.Headers)
	if msg.Headers == nil {
		msg.Headers = make(map[string]any)
	}
	msg.Headers["x-first-death-queue"] = q.spec.Name
	msg.Exchange = dlx
	msg.Redelivered = false
	b.routeLocked(msg)
}

// dropSubscriptionsLocked ends every subscription and requeues what they
// held. Caller holds mu.
func (b *Broker) dropSubscriptionsLocked() {
	for s := range b.subs {
		s.endLocked()
		b.requeueUnackedLocked(s)
		delete(b.subs, s)
	}
	b.notifyLocked()
}

func (b *Broker) requeueUnackedLocked(s *subscription) {
	q, ok := b.queues[s.queue]
	if !ok || len(s.unacked) == 0 {
		s.unacked = map[uint64]broker.Message{}
		return
	}

	tags := slices.Sorted(maps.Keys(s.unacked))
	back := make([]broker.Message, 0, len(tags))
	for _, tag := range tags {
		m := s.unacked[tag]
		m.Redelivered = true
		back = append(back, m)
	}
	q.ready = append(back, q.ready...)
	s.unacked = map[uint64]broker.Message{}
}

func (b *Broker) Subscribe(ctx context.Context, name string, opts broker.SubscribeOptions) (broker.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != broker.Connected {
		return nil, broker.ErrChannelUnavailable
	}
	if _, ok := b.queues[name]; !ok {
		return nil, fmt.Errorf("%w: queue %q", broker.ErrNotFound, name)
	}

	s := &subscription{
		b:        b,
		queue:    name,
		tag:      "ctag-" + uuid.NewString(),
		prefetch: max(opts.Prefetch, 1),
		out:      make(chan broker.Delivery),
		done:     make(chan struct{}),
		unacked:  make(map[uint64]broker.Message),
	}
	b.subs[s] = struct{}{}
	go s.pump()

	b.log.Debug("subscribed", "queue", name, "consumer_tag", s.tag, "prefetch", s.prefetch)
	return s, nil
}

// Consume subscribes to queue and serves handler until ctx is cancelled or
// the subscription is dropped.
func (b *Broker) Consume(ctx context.Context, queue string, handler broker.Handler, opts broker.ConsumeOptions) error {
	sub, err := b.Subscribe(ctx, queue, broker.SubscribeOptions{Prefetch: opts.Prefetch})
	if err != nil {
		return err
	}
	return broker.Serve(ctx, sub, handler, broker.ServeOptions{
		Queue:     queue,
		Workers:   opts.Workers,
		Retry:     opts.Retry,
		Publisher: b,
		Logger:    b.log,
	})
}
