package model

import (
	"time"
)

// CartSnapshot is the persisted JSON array of one cart's line items.
type CartSnapshot struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CartKey   string    `gorm:"column:cart_key;size:255;not null;uniqueIndex" json:"cart_key"`
	Items     string    `gorm:"type:text;not null" json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CartSnapshot) TableName() string {
	return "cart_snapshots"
}
