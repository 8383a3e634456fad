package models

import (
	"time"
)

type OrderItem struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	OrderID uint `gorm:"not null;index" json:"order_id"`
	MenuID  uint `gorm:"not null" json:"menu_id"`
	// Name and Price are snapshots taken at checkout.
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	Price     float64   `gorm:"type:decimal(10,2);not null" json:"price"`
	Notes     string    `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (i OrderItem) Subtotal() float64 {
	return float64(i.Quantity) * i.Price
}
