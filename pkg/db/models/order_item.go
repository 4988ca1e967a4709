package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderItem is a price-snapshot line. UnitPrice is captured at order time and
// never re-joined against the catalog.
type OrderItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_order_items_order_product"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_order_items_order_product"`

	Quantity        int   `gorm:"column:quantity;not null"`
	UnitPrice       int64 `gorm:"column:unit_price;not null"`
	DiscountPercent int   `gorm:"column:discount_percent;not null;default:0"`
	Subtotal        int64 `gorm:"column:subtotal;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate assigns the primary key for cross-dialect inserts.
func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// LineTotal computes quantity x unit price with the discount applied.
func LineTotal(unitPrice int64, quantity, discountPercent int) int64 {
	gross := unitPrice * int64(quantity)
	if discountPercent <= 0 {
		return gross
	}
	return gross * int64(100-discountPercent) / 100
}
