package notify_test

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/internal/events"
	"github.com/swiftlogistics/platform/internal/events/eventstest"
	"github.com/swiftlogistics/platform/internal/notify"
	"github.com/swiftlogistics/platform/internal/store/drivers/sqlite"
	"github.com/swiftlogistics/platform/internal/worker"
	"github.com/swiftlogistics/platform/pkg/broker"
	"github.com/swiftlogistics/platform/pkg/idx"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "notify.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

func message(t *testing.T, exchange, key string, payload any) broker.Message {
	t.Helper()
	body, contentType, err := broker.Encode(payload, broker.ContentTypeJSON)
	require.NoError(t, err)
	return broker.Message{
		ID:          idx.New().String(),
		Exchange:    exchange,
		RoutingKey:  key,
		ContentType: contentType,
		Body:        body,
	}
}

func TestHandleNotification(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("stores notification once per message", func(t *testing.T) {
		st := newStore(t)
		n := &notify.Notifier{Notifications: st.Notifications(), Logger: slogx.Discard()}

		e := events.NotificationEvent{
			UserID:    "user-1",
			Type:      string(domain.NotificationOrderUpdate),
			Title:     "Order confirmed",
			Message:   "Your order ORD-1 has been confirmed.",
			Data:      map[string]string{"orderId": "o1"},
			Timestamp: at,
		}
		msg := message(t, events.ExchangeNotifications, events.NotificationOrder, e)

		require.NoError(t, n.HandleNotification(ctx, e, msg))
		require.NoError(t, n.HandleNotification(ctx, e, msg))

		list, err := st.Notifications().ListNotifications(ctx, "user-1", 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, msg.ID, list[0].ID)
		require.Equal(t, domain.NotificationOrderUpdate, list[0].Type)
		require.Equal(t, "o1", list[0].Data["orderId"])
		require.True(t, at.Equal(list[0].CreatedAt))
	})

	t.Run("infers type from routing key", func(t *testing.T) {
		st := newStore(t)
		now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
		n := &notify.Notifier{
			Notifications: st.Notifications(),
			Logger:        slogx.Discard(),
			Now:           func() time.Time { return now },
		}

		tests := []struct {
			key  string
			want domain.NotificationType
		}{
			{events.NotificationOrder, domain.NotificationOrderUpdate},
			{events.NotificationAccount, domain.NotificationAccount},
			{events.NotificationSystem, domain.NotificationSystemAlert},
		}
		for _, tt := range tests {
			e := events.NotificationEvent{UserID: "user-" + tt.key, Title: "t", Message: "m"}
			require.NoError(t, n.HandleNotification(ctx, e, message(t, events.ExchangeNotifications, tt.key, e)))

			list, err := st.Notifications().ListNotifications(ctx, e.UserID, 10)
			require.NoError(t, err)
			require.Len(t, list, 1)
			require.Equal(t, tt.want, list[0].Type, tt.key)
			require.True(t, now.Equal(list[0].CreatedAt))
		}
	})

	t.Run("drops notification without recipient", func(t *testing.T) {
		st := newStore(t)
		n := &notify.Notifier{Notifications: st.Notifications(), Logger: slogx.Discard()}

		e := events.NotificationEvent{Title: "orphan"}
		require.NoError(t, n.HandleNotification(ctx, e, message(t, events.ExchangeNotifications, events.NotificationSystem, e)))
	})
}

func TestHandleActivity(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		exchange  string
		key       string
		payload   any
		wantTitle string
	}{
		{
			name:      "welcomes registered user",
			exchange:  events.ExchangeEvents,
			key:       events.UserRegister,
			payload:   events.AuthEvent{UserID: "u1", UserType: "client", Email: "a@swift.test"},
			wantTitle: "Welcome to SwiftLogistics",
		},
		{
			name:      "reports sign in",
			exchange:  events.ExchangeEvents,
			key:       events.UserLogin,
			payload:   events.AuthEvent{UserID: "u1", UserType: "client", IP: "10.0.0.1"},
			wantTitle: "New sign-in",
		},
		{
			name:     "audits logout only",
			exchange: events.ExchangeEvents,
			key:      events.UserLogout,
			payload:  events.AuthEvent{UserID: "u1"},
		},
		{
			name:     "audits order event only",
			exchange: events.ExchangeOrders,
			key:      events.OrderUpdated,
			payload:  events.OrderEvent{OrderID: "o1", ClientID: "u1", Status: "Shipped", PreviousStatus: "Processing"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newStore(t)
			var audit bytes.Buffer
			n := &notify.Notifier{
				Notifications: st.Notifications(),
				Audit:         slog.New(slog.NewJSONHandler(&audit, nil)),
				Logger:        slogx.Discard(),
			}

			require.NoError(t, n.HandleActivity(ctx, message(t, tt.exchange, tt.key, tt.payload)))
			require.Contains(t, audit.String(), `"msg":"audit"`)
			require.Contains(t, audit.String(), `"event":"`+tt.key+`"`)

			list, err := st.Notifications().ListNotifications(ctx, "u1", 10)
			require.NoError(t, err)
			if tt.wantTitle == "" {
				require.Empty(t, list)
				return
			}
			require.Len(t, list, 1)
			require.Equal(t, domain.NotificationAccount, list[0].Type)
			require.Equal(t, tt.wantTitle, list[0].Title)
			require.Equal(t, tt.key, list[0].Data["event"])
		})
	}

	t.Run("includes sign in address", func(t *testing.T) {
		st := newStore(t)
		n := &notify.Notifier{Notifications: st.Notifications(), Logger: slogx.Discard()}

		msg := message(t, events.ExchangeEvents, events.UserLogin, events.AuthEvent{UserID: "u2", IP: "192.0.2.7"})
		require.NoError(t, n.HandleActivity(ctx, msg))

		list, err := st.Notifications().ListNotifications(ctx, "u2", 10)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Contains(t, list[0].Message, "192.0.2.7")
		require.Equal(t, "192.0.2.7", list[0].Data["ip"])
	})

	t.Run("fails on undecodable payload", func(t *testing.T) {
		st := newStore(t)
		n := &notify.Notifier{Notifications: st.Notifications(), Logger: slogx.Discard()}

		msg := broker.Message{RoutingKey: events.UserLogin, ContentType: broker.ContentTypeJSON, Body: []byte("{")}
		require.Error(t, n.HandleActivity(ctx, msg))
	})

	t.Run("drops unexpected routing key", func(t *testing.T) {
		st := newStore(t)
		n := &notify.Notifier{Notifications: st.Notifications(), Logger: slogx.Discard()}

		require.NoError(t, n.HandleActivity(ctx, message(t, events.ExchangeEvents, "session.expired", map[string]string{})))
	})
}

func TestNotifierThroughWorker(t *testing.T) {
	for _, contentType := range []string{broker.ContentTypeJSON, broker.ContentTypeCBOR} {
		t.Run(contentType, func(t *testing.T) {
			st := newStore(t)
			b := eventstest.NewBroker(t, events.GatewayTopology(), events.NotifierTopology())
			pub := &events.Publisher{Broker: b, Logger: slogx.Discard(), ContentType: contentType}

			n := &notify.Notifier{Notifications: st.Notifications(), Logger: slogx.Discard()}
			w := worker.New(b, worker.Options{
				Name:      "notification-service",
				Topology:  events.NotifierTopology(),
				Consumers: n.Consumers(broker.ConsumeOptions{Prefetch: 5}),
				Logger:    slogx.Discard(),
			})
			require.NoError(t, w.Start(context.Background()))
			t.Cleanup(func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = w.Stop(ctx)
			})

			ctx := context.Background()
			require.True(t, pub.UserRegistered(ctx, events.AuthEvent{UserID: "u9", UserType: "client", Timestamp: time.Now().UTC()}))
			require.True(t, pub.Notify(ctx, events.NotificationSystem, events.NotificationEvent{
				UserID:    "u9",
				Title:     "Maintenance",
				Message:   "Scheduled maintenance tonight.",
				Data:      map[string]string{"window": "02:00-04:00"},
				Timestamp: time.Now().UTC(),
			}))

			require.Eventually(t, func() bool {
				list, err := st.Notifications().ListNotifications(ctx, "u9", 10)
				return err == nil && len(list) == 2
			}, 2*time.Second, 10*time.Millisecond)

			list, err := st.Notifications().ListNotifications(ctx, "u9", 10)
			require.NoError(t, err)
			byType := map[domain.NotificationType]domain.Notification{}
			for _, nt := range list {
				byType[nt.Type] = nt
			}
			require.Contains(t, byType, domain.NotificationAccount)
			require.Equal(t, "Maintenance", byType[domain.NotificationSystemAlert].Title)
			require.Equal(t, "02:00-04:00", byType[domain.NotificationSystemAlert].Data["window"])
		})
	}
}
