package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freshcart-vn/freshcart-backend/pkg/db/models"
	"github.com/freshcart-vn/freshcart-backend/pkg/enums"
	pkgerrors "github.com/freshcart-vn/freshcart-backend/pkg/errors"
	"github.com/freshcart-vn/freshcart-backend/pkg/pagination"
)

type cacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service defines the append-only ledger operations.
type Service interface {
	// Append records a system-generated entry. For referenced entries the
	// call is idempotent: a second append for the same (ref, category)
	// returns the existing live entry instead of inserting. When tx is
	// non-nil the entry joins the caller's transaction and the caller is
	// responsible for invalidating the summary cache after commit.
	Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.Transaction, error)
	CreateManual(ctx context.Context, input ManualInput) (*models.Transaction, error)
	SoftDelete(ctx context.Context, id, author uuid.UUID) error
	List(ctx context.Context, params pagination.Params, filters Filters) (*Page, error)
}

// AppendInput captures a system-generated ledger event.
type AppendInput struct {
	Date        time.Time
	Category    enums.TransactionCategory
	Amount      decimal.Decimal
	Method      enums.TransactionMethod
	Ref         *models.Ref
	Description string
}

// ManualInput captures an admin-authored ledger entry.
type ManualInput struct {
	Date        time.Time
	Type        enums.TransactionType
	Category    enums.TransactionCategory
	Amount      decimal.Decimal
	Method      enums.TransactionMethod
	Description string
	Author      uuid.UUID
}

type service struct {
	repo  Repository
	cache cacheInvalidator
}

// NewService wires a ledger service with the provided repository and cache.
func NewService(repo Repository, cache cacheInvalidator) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if cache == nil {
		return nil, fmt.Errorf("summary cache required")
	}
	return &service{repo: repo, cache: cache}, nil
}

func (s *service) Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.Transaction, error) {
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid category %q", input.Category))
	}
	txType, err := input.Category.Type()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "resolve category type")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid method %q", input.Method))
	}
	if input.Ref != nil && (!input.Ref.Type.IsValid() || input.Ref.ID == uuid.Nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid ledger reference")
	}

	repo := s.repo.WithTx(tx)

	date := input.Date
	if date.IsZero() {
		date = time.Now()
	}

	entry := &models.Transaction{
		Date:            date,
		Type:            txType,
		Category:        input.Category,
		Amount:          input.Amount,
		Method:          input.Method,
		Description:     input.Description,
		IsAutoGenerated: true,
	}
	if input.Ref != nil {
		refType := input.Ref.Type
		refID := input.Ref.ID
		entry.RefType = &refType
		entry.RefID = &refID
	}

	err = repo.Create(ctx, entry)
	switch {
	case err == nil:
		if tx == nil {
			s.invalidate(ctx)
		}
		return entry, nil
	case err == ErrDuplicateRef && input.Ref != nil:
		// The unique index already holds a live entry for this business
		// event; surface it so duplicate reconciliation is a no-op.
		return repo.FindByRef(ctx, *input.Ref, input.Category)
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger entry")
	}
}

func (s *service) CreateManual(ctx context.Context, input ManualInput) (*models.Transaction, error) {
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid category %q", input.Category))
	}
	if input.Category.IsSystemOnly() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("category %q is system generated", input.Category)).
			WithDetails(map[string]any{"category": input.Category.String()})
	}
	txType, err := input.Category.Type()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "resolve category type")
	}
	if input.Type != txType {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("category %q requires type %q", input.Category, txType))
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid method %q", input.Method))
	}
	if input.Author == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "author required")
	}

	date := input.Date
	if date.IsZero() {
		date = time.Now()
	}

	author := input.Author
	entry := &models.Transaction{
		Date:            date,
		Type:            txType,
		Category:        input.Category,
		Amount:          input.Amount,
		Method:          input.Method,
		Description:     input.Description,
		IsAutoGenerated: false,
		CreatedBy:       &author,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create manual entry")
	}
	s.invalidate(ctx)
	return entry, nil
}

func (s *service) SoftDelete(ctx context.Context, id, author uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	if author == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "author required")
	}

	affected, err := s.repo.MarkDeleted(ctx, id, author, time.Now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "soft delete entry")
	}
	if affected > 0 {
		s.invalidate(ctx)
		return nil
	}

	// The conditional update matched nothing; classify why without mutating.
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if entry.IsAutoGenerated {
		return pkgerrors.New(pkgerrors.CodeForbidden, "auto-generated entries cannot be deleted")
	}
	if entry.IsDeleted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction already deleted")
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "transaction not deletable")
}

func (s *service) List(ctx context.Context, params pagination.Params, filters Filters) (*Page, error) {
	return s.repo.List(ctx, params, filters)
}

func (s *service) invalidate(ctx context.Context) {
	// Invalidation failure must not fail the write; the cache heals at TTL.
	_ = s.cache.Invalidate(ctx)
}
