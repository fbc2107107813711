package amqpbroker

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/swiftlogistics/platform/pkg/broker"
)

// Declaring an entity that already exists with different arguments makes
// RabbitMQ close the channel with 406, so a mismatch also disconnects the
// client.

func (c *Client) DeclareExchange(_ context.Context, spec broker.ExchangeSpec) error {
	ch, err := c.channel()
	if err != nil {
		return err
	}
	kind := spec.Kind
	if kind == "" {
		kind = broker.Topic
	}
	return mapError(ch.ExchangeDeclare(spec.Name, string(kind), spec.Durable, false, false, false, nil))
}

func (c *Client) DeclareQueue(_ context.Context, spec broker.QueueSpec) error {
	ch, err := c.channel()
	if err != nil {
		return err
	}

	var args amqp.Table
	if spec.DeadLetterExchange != "" {
		args = amqp.Table{"x-dead-letter-exchange": spec.DeadLetterExchange}
	}
	_, err = ch.QueueDeclare(spec.Name, spec.Durable, false, false, false, args)
	return mapError(err)
}

func (c *Client) BindQueue(_ context.Context, b broker.Binding) error {
	ch, err := c.channel()
	if err != nil {
		return err
	}
	return mapError(ch.QueueBind(b.Queue, b.Pattern, b.Exchange, false, nil))
}
