package models

import "time"

// Plan is a catalog row shown on the pricing page.
type Plan struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PlanType    string    `gorm:"type:varchar(20);not null;uniqueIndex" json:"planType"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Price       *string   `gorm:"type:varchar(50)" json:"price"`
	Period      string    `gorm:"type:varchar(50)" json:"period"`
	Description string    `gorm:"type:text" json:"description"`
	Features    []string  `gorm:"type:text;serializer:json" json:"features"`
	ButtonText  string    `gorm:"type:varchar(100)" json:"buttonText"`
	Popular     bool      `gorm:"not null;default:false" json:"popular"`
	Color       string    `gorm:"type:varchar(100)" json:"color"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}
