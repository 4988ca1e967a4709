package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freshcart-vn/freshcart-backend/pkg/enums"
)

// Transaction is an append-only financial ledger entry. System-generated
// entries are immutable; manual entries may be soft deleted.
//
// The partial unique index on (ref_type, ref_id, category) where the row is
// not deleted is the idempotency contract that makes duplicate payment
// reconciliation a no-op. Rows without a reference (both columns NULL) are
// exempt by SQL NULL semantics.
type Transaction struct {
	ID   uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Date time.Time `gorm:"column:date;not null;index"`

	Type     enums.TransactionType     `gorm:"column:type;type:text;not null;index"`
	Category enums.TransactionCategory `gorm:"column:category;type:text;not null;uniqueIndex:ux_transactions_ref,where:is_deleted = false,priority:3"`
	Amount   decimal.Decimal           `gorm:"column:amount;type:decimal(20,4);not null"`
	Method   enums.TransactionMethod   `gorm:"column:method;type:text;not null"`

	RefType *enums.TransactionRefType `gorm:"column:ref_type;type:text;uniqueIndex:ux_transactions_ref,priority:1"`
	RefID   *uuid.UUID                `gorm:"column:ref_id;type:uuid;uniqueIndex:ux_transactions_ref,priority:2"`

	Description     string `gorm:"column:description;not null;default:''"`
	IsAutoGenerated bool   `gorm:"column:is_auto_generated;not null;default:false"`

	IsDeleted bool       `gorm:"column:is_deleted;not null;default:false"`
	DeletedAt *time.Time `gorm:"column:deleted_at"`
	DeletedBy *uuid.UUID `gorm:"column:deleted_by;type:uuid"`

	CreatedBy *uuid.UUID `gorm:"column:created_by;type:uuid"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key for cross-dialect inserts.
func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Ref is the tagged reference to the source business object.
type Ref struct {
	Type enums.TransactionRefType
	ID   uuid.UUID
}

// OrderRef builds a ledger reference pointing at a customer order.
func OrderRef(orderID uuid.UUID) *Ref {
	return &Ref{Type: enums.TransactionRefOrder, ID: orderID}
}

// SupplyOrderRef builds a ledger reference pointing at a supply order.
func SupplyOrderRef(supplyOrderID uuid.UUID) *Ref {
	return &Ref{Type: enums.TransactionRefSupplyOrder, ID: supplyOrderID}
}
