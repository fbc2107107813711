package gatewaysdk

import "time"

// ============================================================================
// Auth Types
// ============================================================================

// RegisterRequest is a self-service signup for a client or driver account.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	Role     string `json:"role" validate:"required,oneof=client driver"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Address  string `json:"address" validate:"required,max=500"`

	// ClientID or DriverID pins the role id; one is generated when empty.
	ClientID string `json:"clientId,omitempty" validate:"omitempty,max=64"`
	DriverID string `json:"driverId,omitempty" validate:"omitempty,max=64"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserInfo is the public view of an account.
type UserInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	ClientID  string     `json:"clientId,omitempty"`
	DriverID  string     `json:"driverId,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Status    string     `json:"status,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type AuthData struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Message string   `json:"message"`
	Code    string   `json:"code"`
	Data    AuthData `json:"data"`
}

type TokenData struct {
	Token string `json:"token"`
}

type RefreshResponse struct {
	Message string    `json:"message"`
	Code    string    `json:"code"`
	Data    TokenData `json:"data"`
}

type ProfileData struct {
	User UserInfo `json:"user"`
}

type ProfileResponse struct {
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Data    ProfileData `json:"data"`
}

// MessageResponse is the body of operations that return no data.
type MessageResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ============================================================================
// Order Types
// ============================================================================

type OrderItem struct {
	ProductID   string  `json:"productId,omitempty" validate:"omitempty,max=64"`
	ProductName string  `json:"productName" validate:"required,max=200"`
	Quantity    int     `json:"quantity" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
	TotalPrice  float64 `json:"totalPrice,omitempty" validate:"gte=0"`
}

type Address struct {
	Street     string `json:"street" validate:"required,max=200"`
	City       string `json:"city" validate:"required,max=100"`
	PostalCode string `json:"postalCode,omitempty" validate:"omitempty,max=20"`
}

// CreateOrderRequest places an order for the calling client.
type CreateOrderRequest struct {
	Items           []OrderItem `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress Address     `json:"deliveryAddress"`
	Priority        string      `json:"priority,omitempty" validate:"omitempty,oneof=Low Normal High Urgent"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Pending Confirmed Processing Shipped OutForDelivery Delivered Failed Cancelled"`
}

type OrderInfo struct {
	ID              string      `json:"id"`
	OrderNumber     string      `json:"orderNumber"`
	ClientID        string      `json:"clientId"`
	DriverID        string      `json:"driverId,omitempty"`
	Items           []OrderItem `json:"items"`
	DeliveryAddress Address     `json:"deliveryAddress"`
	TotalAmount     float64     `json:"totalAmount"`
	Status          string      `json:"status"`
	Priority        string      `json:"priority"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

type OrderData struct {
	Order OrderInfo `json:"order"`
}

type OrderResponse struct {
	Message string    `json:"message"`
	Code    string    `json:"code"`
	Data    OrderData `json:"data"`
}

type OrderListData struct {
	Orders []OrderInfo `json:"orders"`
	Count  int         `json:"count"`
}

type OrderListResponse struct {
	Message string        `json:"message"`
	Code    string        `json:"code"`
	Data    OrderListData `json:"data"`
}

// OrderTracking is the public status view of an order. Owners and admins
// also see the order number and totals.
type OrderTracking struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updatedAt"`
	OrderNumber string    `json:"orderNumber,omitempty"`
	TotalAmount *float64  `json:"totalAmount,omitempty"`
}

type OrderTrackingResponse struct {
	Message string        `json:"message"`
	Code    string        `json:"code"`
	Data    OrderTracking `json:"data"`
}

// ============================================================================
// Notification Types
// ============================================================================

type NotificationInfo struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

type NotificationListData struct {
	Notifications []NotificationInfo `json:"notifications"`
	Count         int                `json:"count"`
}

type NotificationListResponse struct {
	Message string               `json:"message"`
	Code    string               `json:"code"`
	Data    NotificationListData `json:"data"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez (liveness) and /readyz (readiness) endpoints.
type HealthResponse struct {
	// Status indicates overall health: "ok" or "degraded"
	Status string `json:"status"`

	// Uptime is the duration since the service started, formatted as a string
	Uptime string `json:"uptime"`

	// Version is the build version of the service
	Version string `json:"version"`

	// Checks contains individual dependency health checks (only present in readiness probe)
	Checks *HealthChecks `json:"checks,omitempty"`

	// Connections reports broker and session store state (only present in liveness probe)
	Connections *Connections `json:"connections,omitempty"`
}

// Connections is the liveness view of the gateway's long-lived clients.
// Broker holds the client state ("connected", "connecting", "disconnected");
// Sessions is "ok" or "unreachable".
type Connections struct {
	Broker   string `json:"broker"`
	Sessions string `json:"sessions"`
}

// HealthChecks represents the status of critical service dependencies.
// Each field is "ok", "error" or "disconnected".
type HealthChecks struct {
	Database string `json:"database"`
	Sessions string `json:"sessions"`
	Broker   string `json:"broker"`
}

// ============================================================================
// Error Types
// ============================================================================

// ErrorResponse is the JSON shape of every gateway error.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}
