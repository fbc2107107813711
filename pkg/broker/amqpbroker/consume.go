package amqpbroker

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/swiftlogistics/platform/pkg/broker"
)

// Subscribe starts a manual-ack consumer on queue.
func (c *Client) Subscribe(ctx context.Context, queue string, opts broker.SubscribeOptions) (broker.Subscription, error) {
	ch, err := c.channel()
	if err != nil {
		return nil, err
	}

	prefetch := max(opts.Prefetch, 1)
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, mapError(err)
	}

	tag := newConsumerTag()
	deliveries, err := ch.ConsumeWithContext(ctx, queue, tag, false, false, false, false, nil)
	if err != nil {
		return nil, mapError(err)
	}

	s := &subscription{
		ch:   ch,
		tag:  tag,
		out:  make(chan broker.Delivery),
		done: make(chan struct{}),
	}
	go s.pump(deliveries)

	c.log.Debug("subscribed", "queue", queue, "consumer_tag", tag, "prefetch", prefetch)
	return s, nil
}

// Consume subscribes to queue and serves handler until ctx is cancelled or
// the connection drops.
func (c *Client) Consume(ctx context.Context, queue string, handler broker.Handler, opts broker.ConsumeOptions) error {
	sub, err := c.Subscribe(ctx, queue, broker.SubscribeOptions{Prefetch: opts.Prefetch})
	if err != nil {
		return err
	}
	return broker.Serve(ctx, sub, handler, broker.ServeOptions{
		Queue:     queue,
		Workers:   opts.Workers,
		Retry:     opts.Retry,
		Publisher: c,
		Logger:    c.log,
	})
}

type subscription struct {
	ch   *amqp.Channel
	tag  string
	out  chan broker.Delivery
	done chan struct{}
	once sync.Once
}

func (s *subscription) Deliveries() <-chan broker.Delivery { return s.out }

func (s *subscription) Cancel() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = mapError(s.ch.Cancel(s.tag, false))
		if errors.Is(err, broker.ErrChannelUnavailable) {
			err = nil
		}
	})
	return err
}

func (s *subscription) pump(deliveries <-chan amqp.Delivery) {
	defer close(s.out)
	for d := range deliveries {
		select {
		case s.out <- broker.NewDelivery(toMessage(d), acknowledger{d}):
		case <-s.done:
			_ = d.Nack(false, true)
		}
	}
}

func toMessage(d amqp.Delivery) broker.Message {
	return broker.Message{
		ID:          d.MessageId,
		Exchange:    d.Exchange,
		RoutingKey:  d.RoutingKey,
		ContentType: d.ContentType,
		Body:        d.Body,
		Headers:     map[string]any(d.Headers),
		Persistent:  d.DeliveryMode == amqp.Persistent,
		Timestamp:   d.Timestamp,
		Redelivered: d.Redelivered,
	}
}

type acknowledger struct {
	d amqp.Delivery
}

func (a acknowledger) Ack() error { return mapError(a.d.Ack(false)) }

func (a acknowledger) Nack(requeue bool) error { return mapError(a.d.Nack(false, requeue)) }
