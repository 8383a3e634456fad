package models

import "time"

type Role string

const (
	RoleClient     Role = "client"
	RoleRestaurant Role = "restaurant"
	RoleDelivery   Role = "delivery"
	RoleAdmin      Role = "admin"
)

var AllRoles = []Role{RoleClient, RoleRestaurant, RoleDelivery, RoleAdmin}

func ParseRole(s string) (Role, bool) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"type:varchar(255);unique;not null" json:"email"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	Role      Role      `gorm:"type:varchar(20);not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
