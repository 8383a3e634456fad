package models

import "time"

type Menu struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RestaurantID uint      `gorm:"not null;index" json:"restaurant_id"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Price        float64   `gorm:"type:decimal(10,2);not null" json:"price"`
	Available    bool      `gorm:"not null" json:"available"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}
