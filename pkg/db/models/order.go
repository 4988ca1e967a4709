package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshcart-vn/freshcart-backend/pkg/enums"
)

// Order is the customer order aggregate. total_amount is a snapshot computed
// from server-side prices at creation time and is never recalculated.
type Order struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID *uuid.UUID `gorm:"column:customer_id;type:uuid;index"`

	TotalAmount   int64               `gorm:"column:total_amount;not null"`
	OrderStatus   enums.OrderStatus   `gorm:"column:order_status;type:text;not null;default:'pending';index"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending';index"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`

	// TxnRef correlates the order with the gateway payment session. It is
	// regenerated on every retry, so only the latest value is live.
	TxnRef               *string    `gorm:"column:txn_ref;uniqueIndex:ux_orders_txn_ref"`
	GatewayResponseCode  *string    `gorm:"column:gateway_response_code"`
	GatewayTransactionNo *string    `gorm:"column:gateway_transaction_no"`
	PaidAt               *time.Time `gorm:"column:paid_at"`

	// StockDeducted flips false->true exactly once, guarded by a conditional
	// update rather than a read-then-write.
	StockDeducted bool `gorm:"column:stock_deducted;not null;default:false"`

	PaymentAttempts     int        `gorm:"column:payment_attempts;not null;default:0"`
	PaymentURLCreatedAt *time.Time `gorm:"column:payment_url_created_at"`
	PaymentExpiresAt    *time.Time `gorm:"column:payment_expires_at"`

	ShippingName    string `gorm:"column:shipping_name;not null"`
	ShippingPhone   string `gorm:"column:shipping_phone;not null"`
	ShippingAddress string `gorm:"column:shipping_address;not null"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key so the model works on both the
// Postgres and SQLite dialects.
func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
