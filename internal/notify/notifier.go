// Package notify holds the notification service's queue handlers. It
// stores the notifications other services ask for and keeps an audit
// trail of account and order activity.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/internal/events"
	"github.com/swiftlogistics/platform/internal/store"
	"github.com/swiftlogistics/platform/internal/worker"
	"github.com/swiftlogistics/platform/pkg/broker"
	"github.com/swiftlogistics/platform/pkg/idx"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

type Notifier struct {
	Notifications store.Notifications

	// Audit receives one record per activity event. Defaults to Logger.
	Audit  *slog.Logger
	Logger *slog.Logger
	Now    func() time.Time
}

func (n *Notifier) now() time.Time {
	if n.Now != nil {
		return n.Now().UTC()
	}
	return time.Now().UTC()
}

func (n *Notifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

// Consumers binds the handlers to the notification service queues.
func (n *Notifier) Consumers(opts broker.ConsumeOptions) []worker.Consumer {
	return []worker.Consumer{
		{Queue: events.QueueNotifications, Handler: n.logged(broker.Typed(n.HandleNotification)), Options: opts},
		{Queue: events.QueueActivity, Handler: n.logged(n.HandleActivity), Options: opts},
	}
}

func (n *Notifier) logged(h broker.Handler) broker.Handler {
	return func(ctx context.Context, msg broker.Message) error {
		log := n.logger().With(
			slog.String("routing_key", msg.RoutingKey),
			slog.String("message_id", msg.ID),
		)
		return h(slogx.WithContext(ctx, log), msg)
	}
}

// HandleNotification stores a requested notification. The message id
// doubles as the notification id, so a redelivered message is stored once.
func (n *Notifier) HandleNotification(ctx context.Context, e events.NotificationEvent, msg broker.Message) error {
	if e.UserID == "" {
		slogx.FromContext(ctx).Warn("notification without recipient, dropping")
		return nil
	}

	typ := domain.NotificationType(e.Type)
	if typ == "" {
		typ = typeForKey(msg.RoutingKey)
	}

	return n.save(ctx, msg, domain.Notification{
		UserID:    e.UserID,
		Type:      typ,
		Title:     e.Title,
		Message:   e.Message,
		Data:      e.Data,
		CreatedAt: e.Timestamp,
	})
}

// HandleActivity writes an audit record for every user and order event
// and greets newly registered and signed in users.
func (n *Notifier) HandleActivity(ctx context.Context, msg broker.Message) error {
	switch {
	case strings.HasPrefix(msg.RoutingKey, "user."):
		var e events.AuthEvent
		if err := broker.Decode(msg, &e); err != nil {
			return err
		}
		return n.userActivity(ctx, msg, e)

	case strings.HasPrefix(msg.RoutingKey, "order."):
		var e events.OrderEvent
		if err := broker.Decode(msg, &e); err != nil {
			return err
		}
		n.audit(ctx, msg,
			slog.String("order_id", e.OrderID),
			slog.String("client_id", e.ClientID),
			slog.String("status", e.Status),
			slog.String("previous_status", e.PreviousStatus),
		)
		return nil

	default:
		slogx.FromContext(ctx).Warn("unexpected activity event, dropping")
		return nil
	}
}

func (n *Notifier) userActivity(ctx context.Context, msg broker.Message, e events.AuthEvent) error {
	n.audit(ctx, msg,
		slog.String("user_id", e.UserID),
		slog.String("user_type", e.UserType),
		slog.String("ip", e.IP),
	)

	var title, message string
	switch msg.RoutingKey {
	case events.UserRegister:
		title, message = "Welcome to SwiftLogistics", "Your account has been created."
	case events.UserLogin:
		title, message = "New sign-in", "Your account was signed in."
		if e.IP != "" {
			message = fmt.Sprintf("Your account was signed in from %s.", e.IP)
		}
	default:
		return nil
	}
	if e.UserID == "" {
		return nil
	}

	data := map[string]string{"event": msg.RoutingKey}
	if e.IP != "" {
		data["ip"] = e.IP
	}
	return n.save(ctx, msg, domain.Notification{
		UserID:    e.UserID,
		Type:      domain.NotificationAccount,
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: e.Timestamp,
	})
}

func (n *Notifier) audit(ctx context.Context, msg broker.Message, attrs ...slog.Attr) {
	log := n.Audit
	if log == nil {
		log = slogx.FromContext(ctx)
	}
	attrs = append([]slog.Attr{
		slog.String("event", msg.RoutingKey),
		slog.String("exchange", msg.Exchange),
		slog.String("message_id", msg.ID),
	}, attrs...)
	log.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}

func (n *Notifier) save(ctx context.Context, msg broker.Message, nt domain.Notification) error {
	nt.ID = msg.ID
	if nt.ID == "" {
		nt.ID = idx.New().String()
	}
	if nt.CreatedAt.IsZero() {
		nt.CreatedAt = n.now()
	}

	err := n.Notifications.CreateNotification(ctx, nt)
	switch {
	case err == nil:
		slogx.FromContext(ctx).Debug("notification stored",
			slog.String("notification_id", nt.ID),
			slog.String("user_id", nt.UserID),
		)
		return nil
	case errors.Is(err, store.ErrAlreadyExists):
		return nil
	default:
		return fmt.Errorf("store notification: %w", err)
	}
}

func typeForKey(routingKey string) domain.NotificationType {
	switch routingKey {
	case events.NotificationOrder:
		return domain.NotificationOrderUpdate
	case events.NotificationAccount:
		return domain.NotificationAccount
	default:
		return domain.NotificationSystemAlert
	}
}
