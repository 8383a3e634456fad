package models

import (
	"time"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusPrepared   OrderStatus = "prepared"
	StatusDelivering OrderStatus = "delivering"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// AllStatuses lists every order status in lifecycle order.
var AllStatuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusPrepared,
	StatusDelivering,
	StatusDelivered,
	StatusCancelled,
}

// ParseOrderStatus returns false for anything outside the closed set.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// IsClaimable reports whether a delivery partner may pick the order up.
func (s OrderStatus) IsClaimable() bool {
	return s == StatusConfirmed || s == StatusPrepared
}

type Order struct {
	ID                uint        `gorm:"primaryKey" json:"id"`
	ClientID          uint        `gorm:"not null;index" json:"client_id"`
	RestaurantID      uint        `gorm:"not null;index" json:"restaurant_id"`
	Restaurant        Restaurant  `gorm:"foreignKey:RestaurantID" json:"-"`
	Status            OrderStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	TotalAmount       float64     `gorm:"type:decimal(10,2);not null;default:0.00" json:"total_amount"`
	DeliveryAddress   string      `gorm:"type:text;not null" json:"delivery_address"`
	DeliveryPartnerID *uint       `gorm:"index" json:"delivery_partner_id,omitempty"`
	AssignedAt        *time.Time  `json:"assigned_at,omitempty"`
	OrderItems        []OrderItem `gorm:"foreignKey:OrderID" json:"order_items"`
	CreatedAt         time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time   `gorm:"not null" json:"updated_at"`
}

// ComputeTotal sums line-item subtotals. Only called at checkout; items are immutable afterwards.
func (o *Order) ComputeTotal() float64 {
	var total float64
	for _, item := range o.OrderItems {
		total += item.Subtotal()
	}
	return total
}
