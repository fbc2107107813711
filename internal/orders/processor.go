// Package orders holds the order worker's queue handlers: confirming new
// orders, applying workflow steps and telling the people on an order that
// its status moved.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/internal/auth/service"
	"github.com/swiftlogistics/platform/internal/events"
	"github.com/swiftlogistics/platform/internal/store"
	"github.com/swiftlogistics/platform/internal/worker"
	"github.com/swiftlogistics/platform/pkg/broker"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

// ErrNotifyFailed makes a status-change delivery retry when the follow-up
// notification could not be published.
var ErrNotifyFailed = errors.New("orders: notification not published")

type Processor struct {
	Orders   *service.OrderService
	Accounts store.Accounts
	Events   *events.Publisher
	Logger   *slog.Logger
}

// Consumers binds the handlers to the order worker queues.
func (p *Processor) Consumers(opts broker.ConsumeOptions) []worker.Consumer {
	return []worker.Consumer{
		{Queue: events.QueueNewOrders, Handler: p.logged(broker.Typed(p.HandleOrderCreated)), Options: opts},
		{Queue: events.QueueOrderUpdates, Handler: p.logged(broker.Typed(p.HandleOrderUpdated)), Options: opts},
		{Queue: events.QueueWorkflowEvents, Handler: p.logged(broker.Typed(p.HandleWorkflowEvent)), Options: opts},
	}
}

// logged attaches a per-delivery logger to the handler context.
func (p *Processor) logged(h broker.Handler) broker.Handler {
	base := p.Logger
	if base == nil {
		base = slog.Default()
	}
	return func(ctx context.Context, msg broker.Message) error {
		log := base.With(
			slog.String("routing_key", msg.RoutingKey),
			slog.String("message_id", msg.ID),
		)
		return h(slogx.WithContext(ctx, log), msg)
	}
}

// HandleOrderCreated confirms a new order. Orders that have already left
// Pending, by a redelivery or a concurrent update, are left alone.
func (p *Processor) HandleOrderCreated(ctx context.Context, e events.OrderEvent, _ broker.Message) error {
	log := slogx.FromContext(ctx).With(slog.String("order_id", e.OrderID))

	_, err := p.Orders.UpdateStatus(ctx, e.OrderID, domain.OrderConfirmed)
	switch {
	case err == nil:
		log.Info("order confirmed")
		return nil
	case errors.Is(err, service.ErrOrderNotFound):
		log.Warn("created order not found, dropping event")
		return nil
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, store.ErrConflict):
		log.Debug("order no longer pending", slog.Any("reason", err))
		return nil
	default:
		return fmt.Errorf("confirm order %s: %w", e.OrderID, err)
	}
}

// HandleWorkflowEvent applies a workflow step's status to its order. A
// step that was already applied is acknowledged; a step the lifecycle does
// not allow is dropped. A concurrent update is retried so the step is
// judged against the fresh status.
func (p *Processor) HandleWorkflowEvent(ctx context.Context, e events.WorkflowEvent, _ broker.Message) error {
	log := slogx.FromContext(ctx).With(
		slog.String("order_id", e.OrderID),
		slog.String("step", e.Step),
		slog.String("status", e.Status),
	)

	next := domain.OrderStatus(e.Status)
	if !next.Valid() {
		log.Warn("workflow event with unknown status, dropping")
		return nil
	}

	_, err := p.Orders.UpdateStatus(ctx, e.OrderID, next)
	switch {
	case err == nil:
		log.Info("workflow step applied")
		return nil
	case errors.Is(err, service.ErrOrderNotFound):
		log.Warn("workflow order not found, dropping event")
		return nil
	case errors.Is(err, service.ErrInvalidTransition):
		order, getErr := p.Orders.Get(ctx, e.OrderID)
		if getErr == nil && order.Status == next {
			log.Debug("workflow step already applied")
			return nil
		}
		log.Warn("workflow step not allowed, dropping", slog.Any("reason", err))
		return nil
	default:
		return fmt.Errorf("apply workflow step to %s: %w", e.OrderID, err)
	}
}

// HandleOrderUpdated asks the notifier to tell the client, and the driver
// when one is assigned, about the new status.
func (p *Processor) HandleOrderUpdated(ctx context.Context, e events.OrderEvent, _ broker.Message) error {
	log := slogx.FromContext(ctx).With(slog.String("order_id", e.OrderID))

	title, message := statusMessage(e)
	data := map[string]string{
		"orderId": e.OrderID,
		"status":  e.Status,
	}
	if e.OrderNumber != "" {
		data["orderNumber"] = e.OrderNumber
	}
	if e.PreviousStatus != "" {
		data["previousStatus"] = e.PreviousStatus
	}

	for _, roleID := range []string{e.ClientID, e.DriverID} {
		if roleID == "" {
			continue
		}
		account, err := p.Accounts.GetAccountByRoleID(ctx, roleID)
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("no account for order party", slog.String("role_id", roleID))
			continue
		}
		if err != nil {
			return fmt.Errorf("look up account %s: %w", roleID, err)
		}

		ok := p.Events.Notify(ctx, events.NotificationOrder, events.NotificationEvent{
			UserID:    account.ID,
			Type:      string(domain.NotificationOrderUpdate),
			Title:     title,
			Message:   message,
			Data:      data,
			Timestamp: e.Timestamp,
		})
		if !ok {
			return ErrNotifyFailed
		}
	}
	return nil
}

func statusMessage(e events.OrderEvent) (string, string) {
	ref := e.OrderNumber
	if ref == "" {
		ref = e.OrderID
	}

	switch domain.OrderStatus(e.Status) {
	case domain.OrderConfirmed:
		return "Order confirmed", fmt.Sprintf("Your order %s has been confirmed.", ref)
	case domain.OrderShipped:
		return "Order shipped", fmt.Sprintf("Your order %s has been shipped.", ref)
	case domain.OrderOutForDelivery:
		return "Out for delivery", fmt.Sprintf("Your order %s is out for delivery.", ref)
	case domain.OrderDelivered:
		return "Order delivered", fmt.Sprintf("Your order %s has been delivered.", ref)
	case domain.OrderFailed:
		return "Delivery failed", fmt.Sprintf("Delivery of order %s failed.", ref)
	case domain.OrderCancelled:
		return "Order cancelled", fmt.Sprintf("Your order %s has been cancelled.", ref)
	default:
		return "Order updated", fmt.Sprintf("Your order %s is now %s.", ref, e.Status)
	}
}
