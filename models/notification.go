package models

import (
	"time"
)

type NotificationType string

const (
	NotificationStatusUpdate     NotificationType = "status_update"
	NotificationOrderConfirmed   NotificationType = "order_confirmed"
	NotificationDeliveryAssigned NotificationType = "delivery_assigned"
)

// Notification is the durable per-recipient record of an order event.
// ID is derived from IdempotencyKey so a live push and its row share the same id.
type Notification struct {
	ID             string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	IdempotencyKey string           `gorm:"type:varchar(191);uniqueIndex;not null" json:"-"`
	RecipientID    uint             `gorm:"not null;index:idx_recipient_created,priority:1" json:"-"`
	Type           NotificationType `gorm:"type:varchar(30);not null" json:"type"`
	OrderID        uint             `gorm:"not null;index" json:"orderId"`
	Message        string           `gorm:"type:text;not null" json:"message"`
	OldStatus      *OrderStatus     `gorm:"type:varchar(20)" json:"oldStatus,omitempty"`
	NewStatus      *OrderStatus     `gorm:"type:varchar(20)" json:"newStatus,omitempty"`
	Timestamp      time.Time        `gorm:"column:sent_at;not null;index:idx_recipient_created,priority:2" json:"timestamp"`
	Read           bool             `gorm:"column:is_read;not null;default:false;index" json:"read"`
}
