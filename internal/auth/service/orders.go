package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/internal/events"
	"github.com/swiftlogistics/platform/internal/store"
	"github.com/swiftlogistics/platform/pkg/idx"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// CreateOrderInput is a new order placed by a client.
type CreateOrderInput struct {
	ClientID        string
	Items           []domain.OrderItem
	DeliveryAddress domain.Address
	Priority        domain.OrderPriority
}

// OrderService is the order collaborator: plain document-store CRUD that
// publishes an event after every successful mutation.
type OrderService struct {
	Store  store.Store
	Events *events.Publisher
	Now    func() time.Time
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// OrderNumber formats the human facing order number from its id and
// creation date.
func OrderNumber(id string, created time.Time) string {
	suffix := id
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return "ORD-" + created.Format("20060102") + "-" + suffix
}

func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if strings.TrimSpace(in.ClientID) == "" {
		return domain.Order{}, fmt.Errorf("%w: client id is required", ErrInvalidOrder)
	}
	if len(in.Items) == 0 {
		return domain.Order{}, fmt.Errorf("%w: at least one item is required", ErrInvalidOrder)
	}

	items := make([]domain.OrderItem, len(in.Items))
	for i, it := range in.Items {
		if it.Quantity <= 0 || it.UnitPrice < 0 {
			return domain.Order{}, fmt.Errorf("%w: item %d has invalid quantity or price", ErrInvalidOrder, i)
		}
		if it.TotalPrice == 0 {
			it.TotalPrice = math.Round(float64(it.Quantity)*it.UnitPrice*100) / 100
		}
		items[i] = it
	}

	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}

	now := s.now()
	id := idx.NewAt(now).String()
	order := domain.Order{
		ID:              id,
		OrderNumber:     OrderNumber(id, now),
		ClientID:        in.ClientID,
		Items:           items,
		DeliveryAddress: in.DeliveryAddress,
		TotalAmount:     domain.Total(items),
		Status:          domain.OrderPending,
		Priority:        priority,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.Store.Orders().CreateOrder(ctx, order); err != nil {
		return domain.Order{}, err
	}

	slogx.FromContext(ctx).Info("order created",
		slog.String("order_id", order.ID),
		slog.String("client_id", order.ClientID),
	)
	s.Events.OrderCreated(ctx, OrderEventFor(order, ""))
	return order, nil
}

func (s *OrderService) Get(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.Store.Orders().GetOrderByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Order{}, ErrOrderNotFound
	}
	return order, err
}

func (s *OrderService) List(ctx context.Context, f store.OrderFilter) ([]domain.Order, error) {
	return s.Store.Orders().ListOrders(ctx, f)
}

// UpdateStatus moves an order to next if the lifecycle allows it. The
// change is conditional on the status read here, so a concurrent update
// surfaces as store.ErrConflict rather than being overwritten.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, next domain.OrderStatus) (domain.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !order.Status.CanTransition(next) {
		return domain.Order{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, order.Status, next)
	}

	now := s.now()
	if err := s.Store.Orders().UpdateOrderStatus(ctx, id, order.Status, next, now); err != nil {
		return domain.Order{}, err
	}

	previous := order.Status
	order.Status = next
	order.UpdatedAt = now

	slogx.FromContext(ctx).Info("order status updated",
		slog.String("order_id", order.ID),
		slog.String("from", string(previous)),
		slog.String("to", string(next)),
	)
	s.Events.OrderUpdated(ctx, OrderEventFor(order, previous))
	return order, nil
}

// OrderEventFor builds the event record for order.
func OrderEventFor(o domain.Order, previous domain.OrderStatus) events.OrderEvent {
	return events.OrderEvent{
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		ClientID:       o.ClientID,
		DriverID:       o.DriverID,
		Status:         string(o.Status),
		PreviousStatus: string(previous),
		TotalAmount:    o.TotalAmount,
		Timestamp:      o.UpdatedAt,
	}
}
