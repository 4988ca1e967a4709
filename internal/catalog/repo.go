package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshcart-vn/freshcart-backend/pkg/db/models"
	pkgerrors "github.com/freshcart-vn/freshcart-backend/pkg/errors"
)

// Repository is the read surface of the product catalog this core consumes.
// All stock mutation goes through the stock ledger, never through here.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetPrice(ctx context.Context, id uuid.UUID) (int64, error)
	GetStock(ctx context.Context, id uuid.UUID) (int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": id.String()})
		}
		return nil, err
	}
	return &product, nil
}

func (r *repository) GetPrice(ctx context.Context, id uuid.UUID) (int64, error) {
	product, err := r.FindByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return product.SellingPrice, nil
}

func (r *repository) GetStock(ctx context.Context, id uuid.UUID) (int, error) {
	product, err := r.FindByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return product.CurrentStock, nil
}
