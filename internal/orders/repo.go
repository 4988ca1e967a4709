package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshcart-vn/freshcart-backend/pkg/db/models"
	"github.com/freshcart-vn/freshcart-backend/pkg/enums"
	pkgerrors "github.com/freshcart-vn/freshcart-backend/pkg/errors"
	"github.com/freshcart-vn/freshcart-backend/pkg/pagination"
)

// Filters narrow admin order listings and exports.
type Filters struct {
	CustomerID    *uuid.UUID
	OrderStatus   *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	DateFrom      *time.Time
	DateTo        *time.Time
}

// Page wraps a paginated slice of orders.
type Page struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// PaidUpdate carries the gateway fields recorded on a successful payment.
type PaidUpdate struct {
	ResponseCode  string
	TransactionNo string
	PaidAt        time.Time
}

// Repository manages order persistence. Every status/flag mutation is a
// conditional UPDATE whose predicate encodes the allowed prior state; callers
// branch on the reported row count instead of reading first.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByTxnRef(ctx context.Context, txnRef string) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters Filters) (*Page, error)
	ListForExport(ctx context.Context, filters Filters) ([]models.Order, error)

	// MarkPaid flips payment_status pending->paid and records the gateway
	// outcome. Zero rows means the order was already paid, cancelled, or gone.
	MarkPaid(ctx context.Context, id uuid.UUID, update PaidUpdate) (int64, error)
	// MarkStockDeducted flips stock_deducted false->true.
	MarkStockDeducted(ctx context.Context, id uuid.UUID) (int64, error)
	// ClearStockDeducted flips stock_deducted true->false; cancellation only.
	ClearStockDeducted(ctx context.Context, id uuid.UUID) (int64, error)
	// Cancel moves a pending/confirmed order to cancelled and maps
	// payment_status paid->refunded, pending->failed in the same statement.
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)
	// UpdateStatus moves order_status from->to.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (int64, error)
	// SetPaymentSession stamps a fresh gateway correlation reference and
	// expiry, bumping the attempt counter. Refused once paid or cancelled.
	SetPaymentSession(ctx context.Context, id uuid.UUID, txnRef string, createdAt, expiresAt time.Time) (int64, error)
	// FindExpiredPaymentIDs returns gateway orders still pending payment whose
	// session expired before cutoff.
	FindExpiredPaymentIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	// MarkPaymentFailed flips payment_status pending->failed.
	MarkPaymentFailed(ctx context.Context, id uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(gdb *gorm.DB) Repository {
	return &repository{db: gdb}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByTxnRef(ctx context.Context, txnRef string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&order, "txn_ref = ?", txnRef).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters Filters) (*Page, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := applyFilters(r.db.WithContext(ctx).Model(&models.Order{}), filters)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var entries []models.Order
	if err := query.
		Preload("Items").
		Order("created_at DESC, id DESC").
		Limit(limit + 1).
		Find(&entries).Error; err != nil {
		return nil, err
	}

	page := &Page{}
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	page.Orders = entries
	return page, nil
}

func (r *repository) ListForExport(ctx context.Context, filters Filters) ([]models.Order, error) {
	var entries []models.Order
	err := applyFilters(r.db.WithContext(ctx).Model(&models.Order{}), filters).
		Preload("Items").
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func applyFilters(query *gorm.DB, filters Filters) *gorm.DB {
	if filters.CustomerID != nil {
		query = query.Where("customer_id = ?", *filters.CustomerID)
	}
	if filters.OrderStatus != nil {
		query = query.Where("order_status = ?", *filters.OrderStatus)
	}
	if filters.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filters.PaymentStatus)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at < ?", *filters.DateTo)
	}
	return query
}

func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, update PaidUpdate) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ? AND order_status <> ?",
			id, enums.PaymentStatusPending, enums.OrderStatusCancelled).
		Updates(map[string]any{
			"payment_status":         enums.PaymentStatusPaid,
			"gateway_response_code":  update.ResponseCode,
			"gateway_transaction_no": update.TransactionNo,
			"paid_at":                update.PaidAt,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) MarkStockDeducted(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND stock_deducted = ?", id, false).
		Update("stock_deducted", true)
	return result.RowsAffected, result.Error
}

func (r *repository) ClearStockDeducted(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND stock_deducted = ?", id, true).
		Update("stock_deducted", false)
	return result.RowsAffected, result.Error
}

func (r *repository) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND order_status IN ?", id,
			[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusConfirmed}).
		Updates(map[string]any{
			"order_status": enums.OrderStatusCancelled,
			"cancelled_at": at,
			"payment_status": gorm.Expr(
				"CASE payment_status WHEN ? THEN ? WHEN ? THEN ? ELSE payment_status END",
				enums.PaymentStatusPaid, enums.PaymentStatusRefunded,
				enums.PaymentStatusPending, enums.PaymentStatusFailed,
			),
		})
	return result.RowsAffected, result.Error
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND order_status = ?", id, from).
		Update("order_status", to)
	return result.RowsAffected, result.Error
}

func (r *repository) SetPaymentSession(ctx context.Context, id uuid.UUID, txnRef string, createdAt, expiresAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status <> ? AND order_status <> ?",
			id, enums.PaymentStatusPaid, enums.OrderStatusCancelled).
		Updates(map[string]any{
			"txn_ref":                txnRef,
			"payment_url_created_at": createdAt,
			"payment_expires_at":     expiresAt,
			"payment_attempts":       gorm.Expr("payment_attempts + 1"),
		})
	return result.RowsAffected, result.Error
}

func (r *repository) FindExpiredPaymentIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("payment_method = ? AND payment_status = ? AND payment_expires_at IS NOT NULL AND payment_expires_at < ?",
			enums.PaymentMethodVNPay, enums.PaymentStatusPending, cutoff).
		Order("payment_expires_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) MarkPaymentFailed(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, enums.PaymentStatusPending).
		Update("payment_status", enums.PaymentStatusFailed)
	return result.RowsAffected, result.Error
}
