package domain

import (
	"slices"
	"time"
)

type OrderStatus string

const (
	OrderPending        OrderStatus = "Pending"
	OrderConfirmed      OrderStatus = "Confirmed"
	OrderProcessing     OrderStatus = "Processing"
	OrderShipped        OrderStatus = "Shipped"
	OrderOutForDelivery OrderStatus = "OutForDelivery"
	OrderDelivered      OrderStatus = "Delivered"
	OrderFailed         OrderStatus = "Failed"
	OrderCancelled      OrderStatus = "Cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:        {OrderConfirmed, OrderCancelled, OrderFailed},
	OrderConfirmed:      {OrderProcessing, OrderCancelled, OrderFailed},
	OrderProcessing:     {OrderShipped, OrderCancelled, OrderFailed},
	OrderShipped:        {OrderOutForDelivery, OrderFailed},
	OrderOutForDelivery: {OrderDelivered, OrderFailed},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderProcessing, OrderShipped,
		OrderOutForDelivery, OrderDelivered, OrderFailed, OrderCancelled:
		return true
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderFailed || s == OrderCancelled
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return slices.Contains(orderTransitions[s], next)
}

type OrderPriority string

const (
	PriorityLow    OrderPriority = "Low"
	PriorityNormal OrderPriority = "Normal"
	PriorityHigh   OrderPriority = "High"
	PriorityUrgent OrderPriority = "Urgent"
)

type OrderItem struct {
	ProductID   string  `json:"productId" bson:"productId"`
	ProductName string  `json:"productName" bson:"productName"`
	Quantity    int     `json:"quantity" bson:"quantity"`
	UnitPrice   float64 `json:"unitPrice" bson:"unitPrice"`
	TotalPrice  float64 `json:"totalPrice" bson:"totalPrice"`
}

type Address struct {
	Street     string `json:"street" bson:"street"`
	City       string `json:"city" bson:"city"`
	PostalCode string `json:"postalCode" bson:"postalCode"`
}

type Order struct {
	ID              string
	OrderNumber     string
	ClientID        string
	DriverID        string
	Items           []OrderItem
	DeliveryAddress Address
	TotalAmount     float64
	Status          OrderStatus
	Priority        OrderPriority
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Total sums the item totals.
func Total(items []OrderItem) float64 {
	var sum float64
	for _, it := range items {
		sum += it.TotalPrice
	}
	return sum
}
