package models

import "time"

// OrderStatusLog is the audit trail of applied transitions and claims.
type OrderStatusLog struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	OrderID    uint        `gorm:"not null;index" json:"order_id"`
	FromStatus OrderStatus `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus   OrderStatus `gorm:"type:varchar(20);not null" json:"to_status"`
	ActorID    uint        `gorm:"not null" json:"actor_id"`
	ActorRole  Role        `gorm:"type:varchar(20);not null" json:"actor_role"`
	Note       string      `gorm:"type:varchar(255)" json:"note"`
	CreatedAt  time.Time   `gorm:"not null" json:"created_at"`
}
