package amqpbroker

import (
	"context"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/swiftlogistics/platform/pkg/broker"
)

// Publish sends one message and waits for the broker's confirm. A nack is
// logged and reported as (false, nil).
func (c *Client) Publish(ctx context.Context, exchange, routingKey string, payload any, opts broker.PublishOptions) (bool, error) {
	ch, err := c.channel()
	if err != nil {
		return false, err
	}

	body, contentType, err := broker.Encode(payload, opts.ContentType)
	if err != nil {
		return false, err
	}

	msg := amqp.Publishing{
		ContentType:  contentType,
		DeliveryMode: amqp.Transient,
		MessageId:    opts.MessageID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if opts.Persistent {
		msg.DeliveryMode = amqp.Persistent
	}
	if msg.MessageId == "" {
		msg.MessageId = uuid.NewString()
	}
	if len(opts.Headers) > 0 {
		msg.Headers = amqp.Table(opts.Headers)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.PublishTimeout)
		defer cancel()
	}

	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, opts.Mandatory, false, msg)
	if err != nil {
		return false, mapError(err)
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return false, err
	}
	if !acked {
		c.log.Warn("publish negatively acknowledged",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.MessageId,
		)
		return false, nil
	}
	return true, nil
}
