package mongo

import (
	"time"

	"github.com/swiftlogistics/platform/internal/auth/domain"
)

type accountDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	Role         string    `bson:"role"`
	RoleID       *string   `bson:"role_id,omitempty"`
	Phone        string    `bson:"phone"`
	Address      string    `bson:"address"`
	Status       string    `bson:"status"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func toAccountDoc(a domain.Account) accountDoc {
	d := accountDoc{
		ID:           a.ID,
		Name:         a.Name,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Role:         string(a.Role),
		Phone:        a.Phone,
		Address:      a.Address,
		Status:       string(a.Status),
		CreatedAt:    a.CreatedAt.UTC(),
		UpdatedAt:    a.UpdatedAt.UTC(),
	}
	if a.RoleID != "" {
		roleID := a.RoleID
		d.RoleID = &roleID
	}
	return d
}

func (d accountDoc) domain() domain.Account {
	a := domain.Account{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         domain.Role(d.Role),
		Phone:        d.Phone,
		Address:      d.Address,
		Status:       domain.AccountStatus(d.Status),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.RoleID != nil {
		a.RoleID = *d.RoleID
	}
	return a
}

type orderDoc struct {
	ID              string             `bson:"_id"`
	OrderNumber     string             `bson:"order_number"`
	ClientID        string             `bson:"client_id"`
	DriverID        string             `bson:"driver_id,omitempty"`
	Items           []domain.OrderItem `bson:"items"`
	DeliveryAddress domain.Address     `bson:"delivery_address"`
	TotalAmount     float64            `bson:"total_amount"`
	Status          string             `bson:"status"`
	Priority        string             `bson:"priority"`
	CreatedAt       time.Time          `bson:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at"`
}

func toOrderDoc(o domain.Order) orderDoc {
	return orderDoc{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		ClientID:        o.ClientID,
		DriverID:        o.DriverID,
		Items:           o.Items,
		DeliveryAddress: o.DeliveryAddress,
		TotalAmount:     o.TotalAmount,
		Status:          string(o.Status),
		Priority:        string(o.Priority),
		CreatedAt:       o.CreatedAt.UTC(),
		UpdatedAt:       o.UpdatedAt.UTC(),
	}
}

func (d orderDoc) domain() domain.Order {
	return domain.Order{
		ID:              d.ID,
		OrderNumber:     d.OrderNumber,
		ClientID:        d.ClientID,
		DriverID:        d.DriverID,
		Items:           d.Items,
		DeliveryAddress: d.DeliveryAddress,
		TotalAmount:     d.TotalAmount,
		Status:          domain.OrderStatus(d.Status),
		Priority:        domain.OrderPriority(d.Priority),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type notificationDoc struct {
	ID        string            `bson:"_id"`
	UserID    string            `bson:"user_id"`
	Type      string            `bson:"type"`
	Title     string            `bson:"title"`
	Message   string            `bson:"message"`
	Data      map[string]string `bson:"data,omitempty"`
	CreatedAt time.Time         `bson:"created_at"`
}

func (d notificationDoc) domain() domain.Notification {
	return domain.Notification{
		ID:        d.ID,
		UserID:    d.UserID,
		Type:      domain.NotificationType(d.Type),
		Title:     d.Title,
		Message:   d.Message,
		Data:      d.Data,
		CreatedAt: d.CreatedAt,
	}
}
