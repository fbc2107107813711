package orders_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/internal/auth/service"
	"github.com/swiftlogistics/platform/internal/events"
	"github.com/swiftlogistics/platform/internal/events/eventstest"
	"github.com/swiftlogistics/platform/internal/orders"
	"github.com/swiftlogistics/platform/internal/store/drivers/sqlite"
	"github.com/swiftlogistics/platform/internal/worker"
	"github.com/swiftlogistics/platform/pkg/broker"
	"github.com/swiftlogistics/platform/pkg/broker/memory"
	"github.com/swiftlogistics/platform/pkg/idx"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

type fixture struct {
	store     *sqlite.Store
	broker    *memory.Broker
	orders    *service.OrderService
	processor *orders.Processor
	client    domain.Account
	driver    domain.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	b := eventstest.NewBroker(t,
		events.GatewayTopology(),
		events.OrderWorkerTopology(),
		events.NotifierTopology(),
	)
	pub := events.NewPublisher(b, slogx.Discard())
	svc := &service.OrderService{Store: st, Events: pub}

	f := &fixture{
		store:  st,
		broker: b,
		orders: svc,
		processor: &orders.Processor{
			Orders:   svc,
			Accounts: st.Accounts(),
			Events:   pub,
			Logger:   slogx.Discard(),
		},
		client: newAccount(t, st, "client@swift.test", domain.RoleClient),
		driver: newAccount(t, st, "driver@swift.test", domain.RoleDriver),
	}
	return f
}

func newAccount(t *testing.T, st *sqlite.Store, email string, role domain.Role) domain.Account {
	t.Helper()
	now := time.Now().UTC()
	a := domain.Account{
		ID:           idx.New().String(),
		Name:         "Test",
		Email:        email,
		PasswordHash: "x",
		Role:         role,
		RoleID:       role.NewRoleID(),
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.Accounts().CreateAccount(context.Background(), a))
	return a
}

func (f *fixture) createOrder(t *testing.T) domain.Order {
	t.Helper()
	o, err := f.orders.Create(context.Background(), service.CreateOrderInput{
		ClientID:        f.client.RoleID,
		Items:           []domain.OrderItem{{ProductID: "P1", ProductName: "Parcel", Quantity: 2, UnitPrice: 10}},
		DeliveryAddress: domain.Address{Street: "1 Main St", City: "Colombo", PostalCode: "00100"},
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) status(t *testing.T, id string) domain.OrderStatus {
	t.Helper()
	o, err := f.orders.Get(context.Background(), id)
	require.NoError(t, err)
	return o.Status
}

func TestHandleOrderCreated(t *testing.T) {
	ctx := context.Background()

	t.Run("confirms pending order and publishes update", func(t *testing.T) {
		f := newFixture(t)
		order := f.createOrder(t)
		capture := eventstest.Listen(t, f.broker, events.ExchangeOrders)

		require.NoError(t, f.processor.HandleOrderCreated(ctx, service.OrderEventFor(order, ""), broker.Message{}))
		require.Equal(t, domain.OrderConfirmed, f.status(t, order.ID))

		var e events.OrderEvent
		capture.Expect(t, events.OrderUpdated, &e)
		require.Equal(t, order.ID, e.OrderID)
		require.Equal(t, string(domain.OrderConfirmed), e.Status)
		require.Equal(t, string(domain.OrderPending), e.PreviousStatus)

		// A redelivery finds the order confirmed and does nothing.
		require.NoError(t, f.processor.HandleOrderCreated(ctx, service.OrderEventFor(order, ""), broker.Message{}))
		capture.None(t)
	})

	t.Run("leaves cancelled order alone", func(t *testing.T) {
		f := newFixture(t)
		order := f.createOrder(t)
		_, err := f.orders.UpdateStatus(ctx, order.ID, domain.OrderCancelled)
		require.NoError(t, err)

		require.NoError(t, f.processor.HandleOrderCreated(ctx, service.OrderEventFor(order, ""), broker.Message{}))
		require.Equal(t, domain.OrderCancelled, f.status(t, order.ID))
	})

	t.Run("drops unknown order", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.processor.HandleOrderCreated(ctx, events.OrderEvent{OrderID: "missing"}, broker.Message{}))
	})
}

func TestHandleWorkflowEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.createOrder(t)

	tests := []struct {
		name   string
		status domain.OrderStatus
		want   domain.OrderStatus
	}{
		{"applies allowed step", domain.OrderConfirmed, domain.OrderConfirmed},
		{"acknowledges repeated step", domain.OrderConfirmed, domain.OrderConfirmed},
		{"drops disallowed step", domain.OrderDelivered, domain.OrderConfirmed},
		{"drops unknown status", "Teleported", domain.OrderConfirmed},
		{"moves on", domain.OrderProcessing, domain.OrderProcessing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.processor.HandleWorkflowEvent(ctx, events.WorkflowEvent{
				OrderID: order.ID,
				Step:    "test",
				Status:  string(tt.status),
			}, broker.Message{})
			require.NoError(t, err)
			require.Equal(t, tt.want, f.status(t, order.ID))
		})
	}
}

func TestHandleOrderUpdated(t *testing.T) {
	ctx := context.Background()

	t.Run("notifies client and driver", func(t *testing.T) {
		f := newFixture(t)
		capture := eventstest.Listen(t, f.broker, events.ExchangeNotifications)

		err := f.processor.HandleOrderUpdated(ctx, events.OrderEvent{
			OrderID:        "01ORDER",
			OrderNumber:    "ORD-1",
			ClientID:       f.client.RoleID,
			DriverID:       f.driver.RoleID,
			Status:         string(domain.OrderOutForDelivery),
			PreviousStatus: string(domain.OrderShipped),
			Timestamp:      time.Now().UTC(),
		}, broker.Message{})
		require.NoError(t, err)

		var n events.NotificationEvent
		capture.Expect(t, events.NotificationOrder, &n)
		require.Equal(t, f.client.ID, n.UserID)
		require.Equal(t, string(domain.NotificationOrderUpdate), n.Type)
		require.Equal(t, "Out for delivery", n.Title)
		require.Contains(t, n.Message, "ORD-1")
		require.Equal(t, "Shipped", n.Data["previousStatus"])

		capture.Expect(t, events.NotificationOrder, &n)
		require.Equal(t, f.driver.ID, n.UserID)
	})

	t.Run("skips parties without an account", func(t *testing.T) {
		f := newFixture(t)
		capture := eventstest.Listen(t, f.broker, events.ExchangeNotifications)

		err := f.processor.HandleOrderUpdated(ctx, events.OrderEvent{
			OrderID:  "01ORDER",
			ClientID: "CLunknown",
			Status:   string(domain.OrderConfirmed),
		}, broker.Message{})
		require.NoError(t, err)
		capture.None(t)
	})

	t.Run("retries when the notification is not accepted", func(t *testing.T) {
		f := newFixture(t)
		f.broker.RejectPublishes(true)

		err := f.processor.HandleOrderUpdated(ctx, events.OrderEvent{
			OrderID:  "01ORDER",
			ClientID: f.client.RoleID,
			Status:   string(domain.OrderConfirmed),
		}, broker.Message{})
		require.ErrorIs(t, err, orders.ErrNotifyFailed)
	})
}

func TestProcessorThroughWorker(t *testing.T) {
	f := newFixture(t)
	capture := eventstest.Listen(t, f.broker, events.ExchangeNotifications)

	w := worker.New(f.broker, worker.Options{
		Name:      "order-worker",
		Topology:  events.OrderWorkerTopology(),
		Consumers: f.processor.Consumers(broker.ConsumeOptions{Prefetch: 5}),
		Logger:    slogx.Discard(),
	})
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = w.Stop(ctx)
	})

	order := f.createOrder(t)

	require.Eventually(t, func() bool {
		o, err := f.orders.Get(context.Background(), order.ID)
		return err == nil && o.Status == domain.OrderConfirmed
	}, 2*time.Second, 10*time.Millisecond)

	var n events.NotificationEvent
	capture.Expect(t, events.NotificationOrder, &n)
	require.Equal(t, f.client.ID, n.UserID)
	require.Equal(t, order.ID, n.Data["orderId"])
	require.Equal(t, "Confirmed", n.Data["status"])
}
