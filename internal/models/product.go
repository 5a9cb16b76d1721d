package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a phone in the catalog.
type Product struct {
	ID             string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name           string          `json:"name" gorm:"type:varchar(255);not null" validate:"required,min=1,max=255"`
	ImageURL       string          `json:"image_url" gorm:"type:text"`
	RetailPrice    decimal.Decimal `json:"retail_price" gorm:"type:decimal(10,2);not null"`
	WholesalePrice decimal.Decimal `json:"wholesale_price" gorm:"type:decimal(10,2);not null"`
	Stock          int             `json:"stock" gorm:"not null;default:0" validate:"gte=0"`
	Description    string          `json:"description" gorm:"type:text"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
