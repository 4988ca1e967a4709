package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freshcart-vn/freshcart-backend/internal/catalog"
	"github.com/freshcart-vn/freshcart-backend/internal/ledger"
	"github.com/freshcart-vn/freshcart-backend/pkg/config"
	"github.com/freshcart-vn/freshcart-backend/pkg/db"
	"github.com/freshcart-vn/freshcart-backend/pkg/db/models"
	"github.com/freshcart-vn/freshcart-backend/pkg/enums"
	pkgerrors "github.com/freshcart-vn/freshcart-backend/pkg/errors"
	"github.com/freshcart-vn/freshcart-backend/pkg/logger"
	"github.com/freshcart-vn/freshcart-backend/pkg/pagination"
)

type cacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service is the synchronous half of the order state machine: placement,
// cancellation, reads, and admin status updates. Payment-driven transitions
// live in the payments reconciler.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID, requester Requester) (*models.Order, error)
	// Cancel restores deducted stock, cancels the order, and maps the payment
	// status, all in one transaction. Cancelling a paid order also books the
	// refund in the ledger.
	Cancel(ctx context.Context, id uuid.UUID, requester Requester) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters Filters) (*Page, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to enums.OrderStatus) (*models.Order, error)
	ExportXLSX(ctx context.Context, filters Filters) ([]byte, error)
}

type service struct {
	db      *db.Client
	repo    Repository
	catalog catalog.Repository
	stock   catalog.StockLedger
	ledger  ledger.Service
	cache   cacheInvalidator
	cfg     config.OrdersConfig
	logg    *logger.Logger
}

// NewService wires the order lifecycle service.
func NewService(
	client *db.Client,
	repo Repository,
	catalogRepo catalog.Repository,
	stock catalog.StockLedger,
	ledgerSvc ledger.Service,
	cache cacheInvalidator,
	cfg config.OrdersConfig,
	logg *logger.Logger,
) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("transaction ledger required")
	}
	if cache == nil {
		return nil, fmt.Errorf("summary cache required")
	}
	return &service{
		db:      client,
		repo:    repo,
		catalog: catalogRepo,
		stock:   stock,
		ledger:  ledgerSvc,
		cache:   cache,
		cfg:     cfg,
		logg:    logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if err := s.validateCreate(input); err != nil {
		return nil, err
	}

	var created *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		catalogRepo := s.catalog.WithTx(tx)
		stock := s.stock.WithTx(tx)

		order := &models.Order{
			CustomerID:      input.CustomerID,
			OrderStatus:     enums.OrderStatusPending,
			PaymentStatus:   enums.PaymentStatusPending,
			PaymentMethod:   input.PaymentMethod,
			ShippingName:    input.Shipping.Name,
			ShippingPhone:   input.Shipping.Phone,
			ShippingAddress: input.Shipping.Address,
		}

		var total int64
		for _, line := range input.Items {
			product, err := catalogRepo.FindByID(ctx, line.ProductID)
			if err != nil {
				if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
					return pkgerrors.New(pkgerrors.CodeValidation, "invalid item").
						WithDetails(map[string]any{"product_id": line.ProductID.String()})
				}
				return err
			}
			// Gateway orders only get a read check here; the real deduction
			// waits for the payment notification.
			if input.PaymentMethod.IsGateway() && product.CurrentStock < line.Quantity {
				return pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient stock").
					WithDetails(map[string]any{
						"product_id": product.ID.String(),
						"available":  product.CurrentStock,
						"requested":  line.Quantity,
					})
			}

			subtotal := models.LineTotal(product.SellingPrice, line.Quantity, 0)
			total += subtotal
			order.Items = append(order.Items, models.OrderItem{
				ProductID: product.ID,
				Quantity:  line.Quantity,
				UnitPrice: product.SellingPrice,
				Subtotal:  subtotal,
			})
		}
		order.TotalAmount = total

		if !input.PaymentMethod.IsGateway() {
			for _, line := range input.Items {
				if err := stock.Adjust(ctx, line.ProductID, -line.Quantity); err != nil {
					return err
				}
			}
			order.StockDeducted = true
		}

		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, created.ID.String()), "order created")
	}
	return created, nil
}

func (s *service) validateCreate(input CreateInput) error {
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.PaymentMethod))
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order must have at least one item")
	}
	if max := s.cfg.MaxLineItems; max > 0 && len(input.Items) > max {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("order exceeds %d line items", max))
	}
	if input.Shipping.Name == "" || input.Shipping.Phone == "" || input.Shipping.Address == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping name, phone and address are required")
	}
	seen := make(map[uuid.UUID]bool, len(input.Items))
	for _, line := range input.Items {
		if line.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "item product id required")
		}
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive").
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}
		if seen[line.ProductID] {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate product line").
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}
		seen[line.ProductID] = true
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, requester Requester) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !requester.CanAccess(order.CustomerID) {
		// Hide existence from non-owners.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, requester Requester) (*models.Order, error) {
	var (
		cancelled      *models.Order
		refundRecorded bool
	)

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !requester.CanAccess(order.CustomerID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		rows, err := repo.Cancel(ctx, id, time.Now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled").
				WithDetails(map[string]any{"order_status": order.OrderStatus.String()})
		}

		refreshed, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}

		// Restore stock only if it was ever deducted; unpaid gateway orders
		// never held inventory. The flag flip is its own one-shot guard.
		if refreshed.StockDeducted {
			flipped, err := repo.ClearStockDeducted(ctx, id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock flag")
			}
			if flipped > 0 {
				stock := s.stock.WithTx(tx)
				for _, item := range refreshed.Items {
					// A vanished product aborts the whole cancellation.
					if err := stock.Adjust(ctx, item.ProductID, item.Quantity); err != nil {
						return err
					}
				}
			}
		}

		if refreshed.PaymentStatus == enums.PaymentStatusRefunded {
			if _, err := s.ledger.Append(ctx, tx, ledger.AppendInput{
				Category:    enums.TransactionCategoryRefund,
				Amount:      decimal.NewFromInt(refreshed.TotalAmount),
				Method:      paymentMethodToLedger(refreshed.PaymentMethod),
				Ref:         models.OrderRef(refreshed.ID),
				Description: fmt.Sprintf("refund for cancelled order %s", refreshed.ID),
			}); err != nil {
				return err
			}
			refundRecorded = true
		}

		refreshed.StockDeducted = false
		cancelled = refreshed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if refundRecorded {
		// The ledger append ran inside our transaction, so the cache is
		// invalidated here, after commit.
		_ = s.cache.Invalidate(ctx)
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, id.String()), "order cancelled")
	}
	return cancelled, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters Filters) (*Page, error) {
	return s.repo.List(ctx, params, filters)
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, to enums.OrderStatus) (*models.Order, error) {
	if !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", to))
	}
	if to == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "use the cancellation operation to cancel an order")
	}

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(order.OrderStatus, to) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", order.OrderStatus, to))
	}

	rows, err := s.repo.UpdateStatus(ctx, id, order.OrderStatus, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if rows == 0 {
		// The order moved underneath us; report the conflict rather than retry.
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
	}
	return s.repo.FindByID(ctx, id)
}

func paymentMethodToLedger(method enums.PaymentMethod) enums.TransactionMethod {
	if method.IsGateway() {
		return enums.TransactionMethodGateway
	}
	return enums.TransactionMethodCash
}
