package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freshcart-vn/freshcart-backend/internal/catalog"
	"github.com/freshcart-vn/freshcart-backend/internal/ledger"
	"github.com/freshcart-vn/freshcart-backend/internal/orders"
	"github.com/freshcart-vn/freshcart-backend/pkg/config"
	"github.com/freshcart-vn/freshcart-backend/pkg/db"
	"github.com/freshcart-vn/freshcart-backend/pkg/db/models"
	"github.com/freshcart-vn/freshcart-backend/pkg/enums"
	pkgerrors "github.com/freshcart-vn/freshcart-backend/pkg/errors"
	"github.com/freshcart-vn/freshcart-backend/pkg/logger"
	"github.com/freshcart-vn/freshcart-backend/pkg/metrics"
	"github.com/freshcart-vn/freshcart-backend/pkg/vnpay"
)

type cacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// errPaidTransitionLost signals the paid CAS matched no rows; the order was
// confirmed or cancelled by a racing caller.
var errPaidTransitionLost = errors.New("payments: paid transition lost")

// Session is a freshly created gateway payment session.
type Session struct {
	RedirectURL string    `json:"redirect_url"`
	TxnRef      string    `json:"txn_ref"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ReturnResult is the display payload for the browser-return path.
type ReturnResult struct {
	Verified      bool                 `json:"verified"`
	Success       bool                 `json:"success"`
	ResponseCode  string               `json:"response_code,omitempty"`
	OrderID       *uuid.UUID           `json:"order_id,omitempty"`
	OrderStatus   *enums.OrderStatus   `json:"order_status,omitempty"`
	PaymentStatus *enums.PaymentStatus `json:"payment_status,omitempty"`
}

// Service reconciles gateway payments against orders. HandleNotify is the
// only writer; HandleReturn re-verifies and reports but never mutates.
type Service interface {
	// HandleNotify processes one server-to-server notification and always
	// resolves to a terminal reply, never an error, so the gateway's retry
	// loop can settle.
	HandleNotify(ctx context.Context, params url.Values) NotifyReply
	// HandleReturn verifies the browser redirect and reports status. Pure.
	HandleReturn(ctx context.Context, params url.Values) ReturnResult
	// CreateSession opens a payment session for a gateway order.
	CreateSession(ctx context.Context, orderID uuid.UUID, requester orders.Requester, clientIP string) (*Session, error)
	// Retry opens a fresh session for an abandoned payment, re-validating
	// stock first since nothing was reserved.
	Retry(ctx context.Context, orderID uuid.UUID, requester orders.Requester, clientIP string) (*Session, error)
}

type service struct {
	db      *db.Client
	orders  orders.Repository
	catalog catalog.Repository
	stock   catalog.StockLedger
	ledger  ledger.Service
	cache   cacheInvalidator
	gateway Adapter
	metrics *metrics.PaymentMetrics
	cfg     config.VNPayConfig
	logg    *logger.Logger
}

// NewService wires the payment reconciler.
func NewService(
	client *db.Client,
	orderRepo orders.Repository,
	catalogRepo catalog.Repository,
	stock catalog.StockLedger,
	ledgerSvc ledger.Service,
	cache cacheInvalidator,
	gateway Adapter,
	paymentMetrics *metrics.PaymentMetrics,
	cfg config.VNPayConfig,
	logg *logger.Logger,
) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if orderRepo == nil {
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
	if gateway == nil {
		return nil, fmt.Errorf("gateway adapter required")
	}
	return &service{
		db:      client,
		orders:  orderRepo,
		catalog: catalogRepo,
		stock:   stock,
		ledger:  ledgerSvc,
		cache:   cache,
		gateway: gateway,
		metrics: paymentMetrics,
		cfg:     cfg,
		logg:    logg,
	}, nil
}

func (s *service) HandleNotify(ctx context.Context, params url.Values) NotifyReply {
	verification := s.gateway.VerifyInbound(params)
	if !verification.Verified {
		return s.reply(ctx, ReplyChecksumFailure)
	}
	ctx = s.withTxnRef(ctx, verification.TxnRef)
	if !verification.Success {
		return s.reply(ctx, ReplyUnknownError)
	}

	order, err := s.orders.FindByTxnRef(ctx, verification.TxnRef)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return s.reply(ctx, ReplyOrderNotFound)
		}
		return s.reply(ctx, ReplyUnknownError)
	}

	// Duplicate-delivery short circuit: checked before any mutation so that
	// a retried notification is a clean no-op.
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return s.reply(ctx, ReplyAlreadyConfirmed)
	}
	if verification.Amount != order.TotalAmount {
		return s.reply(ctx, ReplyInvalidAmount)
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)

		rows, err := repo.MarkPaid(ctx, order.ID, orders.PaidUpdate{
			ResponseCode:  verification.ResponseCode,
			TransactionNo: verification.TransactionNo,
			PaidAt:        time.Now(),
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return errPaidTransitionLost
		}

		// The flag flip and the decrements commit or roll back with the paid
		// transition, so two genuine racers cannot both deduct.
		flipped, err := repo.MarkStockDeducted(ctx, order.ID)
		if err != nil {
			return err
		}
		if flipped > 0 {
			stock := s.stock.WithTx(tx)
			for _, item := range order.Items {
				if err := stock.Adjust(ctx, item.ProductID, -item.Quantity); err != nil {
					return err
				}
			}
		}

		_, err = s.ledger.Append(ctx, tx, ledger.AppendInput{
			Category:    enums.TransactionCategoryCustomerPayment,
			Amount:      decimal.NewFromInt(order.TotalAmount),
			Method:      enums.TransactionMethodGateway,
			Ref:         models.OrderRef(order.ID),
			Description: fmt.Sprintf("gateway payment for order %s", order.ID),
		})
		return err
	})
	switch {
	case err == nil:
		_ = s.cache.Invalidate(ctx)
		if s.logg != nil {
			s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "payment reconciled")
		}
		return s.reply(ctx, ReplySuccess)
	case errors.Is(err, errPaidTransitionLost):
		// A racing notify or cancellation won; classify from current state.
		refreshed, readErr := s.orders.FindByID(ctx, order.ID)
		if readErr == nil && refreshed.PaymentStatus == enums.PaymentStatusPaid {
			return s.reply(ctx, ReplyAlreadyConfirmed)
		}
		return s.reply(ctx, ReplyUnknownError)
	default:
		if s.logg != nil {
			s.logg.Error(ctx, "payment reconciliation failed", err)
		}
		return s.reply(ctx, ReplyUnknownError)
	}
}

func (s *service) HandleReturn(ctx context.Context, params url.Values) ReturnResult {
	verification := s.gateway.VerifyReturn(params)
	result := ReturnResult{
		Verified:     verification.Verified,
		Success:      verification.Verified && verification.Success,
		ResponseCode: verification.ResponseCode,
	}
	if !verification.Verified {
		s.metrics.IncReturnResult("unverified")
		return result
	}

	order, err := s.orders.FindByTxnRef(ctx, verification.TxnRef)
	if err != nil {
		s.metrics.IncReturnResult("order_missing")
		return result
	}

	orderStatus := order.OrderStatus
	paymentStatus := order.PaymentStatus
	result.OrderID = &order.ID
	result.OrderStatus = &orderStatus
	result.PaymentStatus = &paymentStatus
	s.metrics.IncReturnResult(verification.ResponseCode)
	return result
}

func (s *service) CreateSession(ctx context.Context, orderID uuid.UUID, requester orders.Requester, clientIP string) (*Session, error) {
	order, err := s.sessionEligibleOrder(ctx, orderID, requester)
	if err != nil {
		return nil, err
	}
	return s.openSession(ctx, order, clientIP)
}

func (s *service) Retry(ctx context.Context, orderID uuid.UUID, requester orders.Requester, clientIP string) (*Session, error) {
	order, err := s.sessionEligibleOrder(ctx, orderID, requester)
	if err != nil {
		return nil, err
	}

	// Nothing was reserved at order creation, so the stock may have been
	// sold out from under an abandoned session.
	for _, item := range order.Items {
		available, err := s.catalog.GetStock(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if available < item.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient stock").
				WithDetails(map[string]any{
					"product_id": item.ProductID.String(),
					"available":  available,
					"requested":  item.Quantity,
				})
		}
	}

	return s.openSession(ctx, order, clientIP)
}

func (s *service) sessionEligibleOrder(ctx context.Context, orderID uuid.UUID, requester orders.Requester) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !requester.CanAccess(order.CustomerID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !order.PaymentMethod.IsGateway() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not paid through the gateway")
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid")
	}
	if order.OrderStatus == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled")
	}
	return order, nil
}

func (s *service) openSession(ctx context.Context, order *models.Order, clientIP string) (*Session, error) {
	txnRef := newTxnRef()
	now := time.Now()
	expiresAt := now.Add(s.sessionTTL())

	rows, err := s.orders.SetPaymentSession(ctx, order.ID, txnRef, now, expiresAt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp payment session")
	}
	if rows == 0 {
		// Paid or cancelled between our read and the stamp.
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer start a payment session")
	}

	redirect, err := s.gateway.BuildRedirect(vnpay.RedirectRequest{
		TxnRef:    txnRef,
		Amount:    order.TotalAmount,
		OrderInfo: fmt.Sprintf("Thanh toan don hang %s", order.ID),
		ClientIP:  clientIP,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build gateway redirect")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithTxnRef(s.logg.WithOrderID(ctx, order.ID.String()), txnRef), "payment session created")
	}
	return &Session{RedirectURL: redirect, TxnRef: txnRef, ExpiresAt: expiresAt}, nil
}

func (s *service) sessionTTL() time.Duration {
	if s.cfg.SessionTTL > 0 {
		return s.cfg.SessionTTL
	}
	return 15 * time.Minute
}

func (s *service) reply(ctx context.Context, r NotifyReply) NotifyReply {
	s.metrics.IncNotifyReply(r.RspCode)
	if s.logg != nil && r != ReplySuccess {
		s.logg.Info(ctx, fmt.Sprintf("payment notify resolved with %s (%s)", r.RspCode, r.Message))
	}
	return r
}

func (s *service) withTxnRef(ctx context.Context, txnRef string) context.Context {
	if s.logg == nil || txnRef == "" {
		return ctx
	}
	return s.logg.WithTxnRef(ctx, txnRef)
}

// newTxnRef generates the gateway correlation reference; regenerated on every
// retry so only the latest session can confirm.
func newTxnRef() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
