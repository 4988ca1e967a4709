package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshcart-vn/freshcart-backend/pkg/db/models"
	pkgerrors "github.com/freshcart-vn/freshcart-backend/pkg/errors"
)

// StockLedger is the only writer of product stock counts. Every adjustment is
// a single conditional UPDATE with a floor check at zero, so concurrent
// decrements can never oversell regardless of interleaving.
type StockLedger interface {
	WithTx(tx *gorm.DB) StockLedger
	// Adjust applies delta to the product's available stock. A decrement
	// that would push the count below zero fails with CodeInsufficient and
	// leaves the row untouched.
	Adjust(ctx context.Context, productID uuid.UUID, delta int) error
}

type stockLedger struct {
	db *gorm.DB
}

// NewStockLedger returns a stock ledger bound to the provided database.
func NewStockLedger(db *gorm.DB) StockLedger {
	return &stockLedger{db: db}
}

func (s *stockLedger) WithTx(tx *gorm.DB) StockLedger {
	if tx == nil {
		return s
	}
	return &stockLedger{db: tx}
}

func (s *stockLedger) Adjust(ctx context.Context, productID uuid.UUID, delta int) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if delta == 0 {
		return nil
	}

	result := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND current_stock + ? >= 0", productID, delta).
		Update("current_stock", gorm.Expr("current_stock + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Zero rows: either the product vanished or the floor check failed.
	var product models.Product
	err := s.db.WithContext(ctx).Select("id", "current_stock").First(&product, "id = ?", productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": productID.String()})
		}
		return err
	}
	return pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient stock").
		WithDetails(map[string]any{
			"product_id": productID.String(),
			"available":  product.CurrentStock,
			"requested":  -delta,
		})
}
