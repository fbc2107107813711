package store

import (
	"context"
	"errors"
	"time"

	"github.com/swiftlogistics/platform/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict is returned when a conditional update finds the record
	// in a different state than expected.
	ErrConflict = errors.New("store: conflict")
)

// Store is the root data access interface shared by the gateway and the
// workers. Drivers (sqlite, mongo) implement it and expose one
// sub-repository per collection.
type Store interface {
	Accounts() Accounts
	Orders() Orders
	Notifications() Notifications

	// ApplyMigrations brings the schema (tables or indexes) up to date.
	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Accounts interface {
	// CreateAccount inserts a new account. Emails are unique; a duplicate
	// yields ErrAlreadyExists.
	CreateAccount(ctx context.Context, a domain.Account) error

	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByEmail is used during login.
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	// GetAccountByRoleID finds the account holding a clientId or driverId.
	GetAccountByRoleID(ctx context.Context, roleID string) (domain.Account, error)

	// CountAccountsByRole is used by bootstrap to detect an existing admin.
	CountAccountsByRole(ctx context.Context, role domain.Role) (int, error)
}

// OrderFilter narrows ListOrders. Zero fields match everything.
type OrderFilter struct {
	ClientID string
	DriverID string
	Status   domain.OrderStatus
	Limit    int
	Offset   int
}

type Orders interface {
	CreateOrder(ctx context.Context, o domain.Order) error
	GetOrderByID(ctx context.Context, id string) (domain.Order, error)

	// ListOrders returns orders newest first.
	ListOrders(ctx context.Context, f OrderFilter) ([]domain.Order, error)

	// UpdateOrderStatus moves an order from one status to another. It
	// returns ErrConflict when the order is no longer in status from, so
	// concurrent or repeated updates never apply twice.
	UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) error
}

type Notifications interface {
	CreateNotification(ctx context.Context, n domain.Notification) error

	// ListNotifications returns a user's notifications newest first.
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
}

// DefaultListLimit applies when a caller passes no limit.
const DefaultListLimit = 50

// NormalizeLimit clamps list limits to [1, 500].
func NormalizeLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultListLimit
	case n > 500:
		return 500
	default:
		return n
	}
}
