// Package storetest holds behaviour tests every store driver must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/internal/store"
	"github.com/swiftlogistics/platform/pkg/idx"
)

// Run exercises a store driver. newStore must return an empty, migrated
// store for every call.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("accounts", func(t *testing.T) { testAccounts(t, newStore(t)) })
	t.Run("orders", func(t *testing.T) { testOrders(t, newStore(t)) })
	t.Run("notifications", func(t *testing.T) { testNotifications(t, newStore(t)) })
}

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func account(email string, role domain.Role) domain.Account {
	return domain.Account{
		ID:           idx.New().String(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: "$2a$12$hash",
		Role:         role,
		RoleID:       role.NewRoleID(),
		Phone:        "+94 77 000 0000",
		Address:      "1 Main St",
		Status:       domain.StatusActive,
		CreatedAt:    base,
		UpdatedAt:    base,
	}
}

func testAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.Accounts()

	c := account("c@x.com", domain.RoleClient)
	require.NoError(t, repo.CreateAccount(ctx, c))

	got, err := repo.GetAccountByEmail(ctx, "c@x.com")
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ID)
	require.Equal(t, domain.RoleClient, got.Role)
	require.Equal(t, c.RoleID, got.RoleID)
	require.Equal(t, c.ClientID(), got.ClientID())
	require.True(t, got.CreatedAt.Equal(base))

	got, err = repo.GetAccountByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "c@x.com", got.Email)

	got, err = repo.GetAccountByRoleID(ctx, c.RoleID)
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ID)
	_, err = repo.GetAccountByRoleID(ctx, "CLmissing")
	require.ErrorIs(t, err, store.ErrNotFound)

	dup := account("c@x.com", domain.RoleDriver)
	require.ErrorIs(t, repo.CreateAccount(ctx, dup), store.ErrAlreadyExists)

	_, err = repo.GetAccountByEmail(ctx, "nobody@x.com")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.GetAccountByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	admin := account("admin@x.com", domain.RoleAdmin)
	require.Empty(t, admin.RoleID)
	require.NoError(t, repo.CreateAccount(ctx, admin))
	require.NoError(t, repo.CreateAccount(ctx, account("admin2@x.com", domain.RoleAdmin)),
		"accounts without a role id do not collide")

	n, err := repo.CountAccountsByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = repo.CountAccountsByRole(ctx, domain.RoleDriver)
	require.NoError(t, err)
	require.Zero(t, n)
}

func order(clientID string, at time.Time) domain.Order {
	items := []domain.OrderItem{
		{ProductID: "p1", ProductName: "Parcel", Quantity: 2, UnitPrice: 10, TotalPrice: 20},
		{ProductID: "p2", ProductName: "Box", Quantity: 1, UnitPrice: 5.5, TotalPrice: 5.5},
	}
	return domain.Order{
		ID:              idx.NewAt(at).String(),
		OrderNumber:     "ORD-" + at.Format("150405"),
		ClientID:        clientID,
		Items:           items,
		DeliveryAddress: domain.Address{Street: "1 Main St", City: "Colombo", PostalCode: "00100"},
		TotalAmount:     domain.Total(items),
		Status:          domain.OrderPending,
		Priority:        domain.PriorityNormal,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
}

func testOrders(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.Orders()

	first := order("CL1", base)
	second := order("CL1", base.Add(time.Minute))
	other := order("CL2", base.Add(2*time.Minute))
	for _, o := range []domain.Order{first, second, other} {
		require.NoError(t, repo.CreateOrder(ctx, o))
	}
	require.ErrorIs(t, repo.CreateOrder(ctx, first), store.ErrAlreadyExists)

	got, err := repo.GetOrderByID(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, first.Items, got.Items)
	require.Equal(t, first.DeliveryAddress, got.DeliveryAddress)
	require.InDelta(t, 25.5, got.TotalAmount, 0.001)
	require.Equal(t, domain.OrderPending, got.Status)
	require.Empty(t, got.DriverID)

	_, err = repo.GetOrderByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	t.Run("list newest first", func(t *testing.T) {
		list, err := repo.ListOrders(ctx, store.OrderFilter{})
		require.NoError(t, err)
		require.Len(t, list, 3)
		require.Equal(t, other.ID, list[0].ID)
		require.Equal(t, first.ID, list[2].ID)
	})

	t.Run("list by client", func(t *testing.T) {
		list, err := repo.ListOrders(ctx, store.OrderFilter{ClientID: "CL1"})
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, second.ID, list[0].ID)
	})

	t.Run("list with limit and offset", func(t *testing.T) {
		list, err := repo.ListOrders(ctx, store.OrderFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, second.ID, list[0].ID)
	})

	t.Run("conditional status update", func(t *testing.T) {
		at := base.Add(time.Hour)
		require.NoError(t, repo.UpdateOrderStatus(ctx, first.ID, domain.OrderPending, domain.OrderConfirmed, at))

		got, err := repo.GetOrderByID(ctx, first.ID)
		require.NoError(t, err)
		require.Equal(t, domain.OrderConfirmed, got.Status)
		require.True(t, got.UpdatedAt.Equal(at))

		err = repo.UpdateOrderStatus(ctx, first.ID, domain.OrderPending, domain.OrderConfirmed, at)
		require.ErrorIs(t, err, store.ErrConflict, "a repeated update must not apply twice")

		err = repo.UpdateOrderStatus(ctx, "missing", domain.OrderPending, domain.OrderConfirmed, at)
		require.ErrorIs(t, err, store.ErrNotFound)

		list, err := repo.ListOrders(ctx, store.OrderFilter{Status: domain.OrderConfirmed})
		require.NoError(t, err)
		require.Len(t, list, 1)
	})
}

func testNotifications(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.Notifications()

	for i := range 3 {
		require.NoError(t, repo.CreateNotification(ctx, domain.Notification{
			ID:        idx.New().String(),
			UserID:    "u1",
			Type:      domain.NotificationOrderUpdate,
			Title:     "Order update",
			Message:   "Your order moved",
			Data:      map[string]string{"seq": string(rune('a' + i))},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	list, err := repo.ListNotifications(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "c", list[0].Data["seq"])
	require.Equal(t, domain.NotificationOrderUpdate, list[0].Type)

	list, err = repo.ListNotifications(ctx, "someone-else", 0)
	require.NoError(t, err)
	require.Empty(t, list)
}
