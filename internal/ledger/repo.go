package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freshcart-vn/freshcart-backend/pkg/db"
	"github.com/freshcart-vn/freshcart-backend/pkg/db/models"
	"github.com/freshcart-vn/freshcart-backend/pkg/enums"
	pkgerrors "github.com/freshcart-vn/freshcart-backend/pkg/errors"
	"github.com/freshcart-vn/freshcart-backend/pkg/pagination"
)

// uniqueRefConstraint matches the partial unique index guarding the
// (ref_type, ref_id, category) idempotency contract.
const uniqueRefConstraint = "ux_transactions_ref"

// Filters describe the admin ledger listing inputs.
type Filters struct {
	Type     *enums.TransactionType
	Category *enums.TransactionCategory
	DateFrom *time.Time
	DateTo   *time.Time
}

// Page wraps a paginated slice of ledger entries.
type Page struct {
	Transactions []models.Transaction `json:"transactions"`
	NextCursor   string               `json:"next_cursor,omitempty"`
}

// Totals is the aggregate over non-deleted entries in a date range.
type Totals struct {
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
}

// ErrDuplicateRef signals that a live entry already exists for the reference.
var ErrDuplicateRef = errors.New("ledger: duplicate reference entry")

// Repository manages persistence for ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Create inserts the entry. ErrDuplicateRef is returned when the
	// idempotency index rejects a second live entry for the same reference.
	Create(ctx context.Context, entry *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByRef(ctx context.Context, ref models.Ref, category enums.TransactionCategory) (*models.Transaction, error)
	List(ctx context.Context, params pagination.Params, filters Filters) (*Page, error)
	// SumInRange aggregates non-deleted entries with date in [from, to).
	SumInRange(ctx context.Context, from, to time.Time) (Totals, error)
	// ListInRange returns non-deleted entries with date in [from, to),
	// oldest first; used for chart bucketing.
	ListInRange(ctx context.Context, from, to time.Time) ([]models.Transaction, error)
	// MarkDeleted flips the soft-delete flag iff the row is live and not
	// auto-generated. Returns the number of rows affected.
	MarkDeleted(ctx context.Context, id uuid.UUID, deletedBy uuid.UUID, at time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(gdb *gorm.DB) Repository {
	return &repository{db: gdb}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		if db.IsUniqueViolation(err, uniqueRefConstraint) {
			return ErrDuplicateRef
		}
		return err
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var entry models.Transaction
	err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindByRef(ctx context.Context, ref models.Ref, category enums.TransactionCategory) (*models.Transaction, error) {
	var entry models.Transaction
	err := r.db.WithContext(ctx).
		Where("ref_type = ? AND ref_id = ? AND category = ? AND is_deleted = ?", ref.Type, ref.ID, category, false).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters Filters) (*Page, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("is_deleted = ?", false)

	if filters.Type != nil {
		query = query.Where("type = ?", *filters.Type)
	}
	if filters.Category != nil {
		query = query.Where("category = ?", *filters.Category)
	}
	if filters.DateFrom != nil {
		query = query.Where("date >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("date < ?", *filters.DateTo)
	}

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

	var entries []models.Transaction
	if err := query.
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
	page.Transactions = entries
	return page, nil
}

func (r *repository) SumInRange(ctx context.Context, from, to time.Time) (Totals, error) {
	type row struct {
		Type  enums.TransactionType
		Total decimal.Decimal
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("type, COALESCE(SUM(amount), 0) AS total").
		Where("is_deleted = ? AND date >= ? AND date < ?", false, from, to).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return Totals{}, err
	}

	totals := Totals{Inflow: decimal.Zero, Outflow: decimal.Zero}
	for _, entry := range rows {
		switch entry.Type {
		case enums.TransactionTypeInflow:
			totals.Inflow = entry.Total
		case enums.TransactionTypeOutflow:
			totals.Outflow = entry.Total
		}
	}
	return totals, nil
}

func (r *repository) ListInRange(ctx context.Context, from, to time.Time) ([]models.Transaction, error) {
	var entries []models.Transaction
	err := r.db.WithContext(ctx).
		Where("is_deleted = ? AND date >= ? AND date < ?", false, from, to).
		Order("date ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) MarkDeleted(ctx context.Context, id uuid.UUID, deletedBy uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND is_deleted = ? AND is_auto_generated = ?", id, false, false).
		Updates(map[string]any{
			"is_deleted": true,
			"deleted_at": at,
			"deleted_by": deletedBy,
		})
	return result.RowsAffected, result.Error
}
