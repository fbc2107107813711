package domain

import "time"

type NotificationType string

const (
	NotificationOrderUpdate NotificationType = "OrderUpdate"
	NotificationAccount     NotificationType = "AccountActivity"
	NotificationSystemAlert NotificationType = "SystemAlert"
)

type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Title     string
	Message   string
	Data      map[string]string
	CreatedAt time.Time
}
