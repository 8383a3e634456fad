package models

import "time"

// ActiveSession holds the single usable token id per user for the SQL credential store.
type ActiveSession struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false"`
	TokenID   string    `gorm:"type:varchar(64);not null"`
	IssuedAt  time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

type RevokedToken struct {
	TokenID   string    `gorm:"type:varchar(64);primaryKey"`
	UserID    uint      `gorm:"not null;index"`
	RevokedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// All returns every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Restaurant{},
		&Menu{},
		&Order{},
		&OrderItem{},
		&OrderStatusLog{},
		&Notification{},
		&ActiveSession{},
		&RevokedToken{},
	}
}
