// Package events names the exchanges, queues and routing keys the services
// share, defines the event records carried over them and publishes those
// records on the request path.
package events

import "time"

// Exchanges. All are durable topic exchanges.
const (
	ExchangeEvents        = "swiftlogistics.events"
	ExchangeCommands      = "swiftlogistics.commands"
	ExchangeOrders        = "swiftlogistics.orders"
	ExchangeWorkflow      = "swiftlogistics.workflow"
	ExchangeNotifications = "notification-events"
	ExchangeDeadLetter    = "swiftlogistics.dead-letter"
)

// Routing keys.
const (
	UserLogin    = "user.login"
	UserRegister = "user.register"
	UserLogout   = "user.logout"

	OrderCreated = "order.created"
	OrderUpdated = "order.updated"

	NotificationOrder   = "notification.order"
	NotificationAccount = "notification.account"
	NotificationSystem  = "notification.system"
)

// Queues.
const (
	QueueGatewayNotifications = "api-gateway.notifications"
	QueueGatewayAudit         = "api-gateway.audit"

	QueueNewOrders      = "order-service.new-orders"
	QueueOrderUpdates   = "order-service.order-updates"
	QueueWorkflowEvents = "order-service.workflow-events"

	QueueNotifications = "notifications"
	QueueActivity      = "notification-service.activity"

	QueueDeadLetter = "swiftlogistics.dead-letter"
)

// AuthEvent is published on login, registration and logout. Logout events
// carry only the user id and timestamp.
type AuthEvent struct {
	UserID    string    `json:"userId" cbor:"userId"`
	UserType  string    `json:"userType,omitempty" cbor:"userType,omitempty"`
	Email     string    `json:"email,omitempty" cbor:"email,omitempty"`
	Timestamp time.Time `json:"timestamp" cbor:"timestamp"`
	IP        string    `json:"ip,omitempty" cbor:"ip,omitempty"`
}

// OrderEvent is published after an order is created or changes status.
type OrderEvent struct {
	OrderID        string    `json:"orderId" cbor:"orderId"`
	OrderNumber    string    `json:"orderNumber,omitempty" cbor:"orderNumber,omitempty"`
	ClientID       string    `json:"clientId" cbor:"clientId"`
	DriverID       string    `json:"driverId,omitempty" cbor:"driverId,omitempty"`
	Status         string    `json:"status" cbor:"status"`
	PreviousStatus string    `json:"previousStatus,omitempty" cbor:"previousStatus,omitempty"`
	TotalAmount    float64   `json:"totalAmount" cbor:"totalAmount"`
	Timestamp      time.Time `json:"timestamp" cbor:"timestamp"`
}

// NotificationEvent asks the notifier to store a message for a user.
type NotificationEvent struct {
	UserID    string            `json:"userId" cbor:"userId"`
	Type      string            `json:"type" cbor:"type"`
	Title     string            `json:"title" cbor:"title"`
	Message   string            `json:"message" cbor:"message"`
	Data      map[string]string `json:"data,omitempty" cbor:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp" cbor:"timestamp"`
}

// WorkflowEvent moves an order through a workflow step. It is published
// on the workflow exchange under "workflow.<step>".
type WorkflowEvent struct {
	OrderID   string    `json:"orderId" cbor:"orderId"`
	Step      string    `json:"step" cbor:"step"`
	Status    string    `json:"status" cbor:"status"`
	Reason    string    `json:"reason,omitempty" cbor:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp" cbor:"timestamp"`
}

// WorkflowKey is the routing key of a workflow step.
func WorkflowKey(step string) string { return "workflow." + step }
