package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product carries only the catalog surface this core consumes: a selling
// price and an atomic stock counter. Catalog management lives elsewhere.
type Product struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name         string    `gorm:"column:name;not null"`
	SellingPrice int64     `gorm:"column:selling_price;not null"`
	CurrentStock int       `gorm:"column:current_stock;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key for cross-dialect inserts.
func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
