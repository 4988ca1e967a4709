package payments

import (
	"context"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/freshcart-vn/freshcart-backend/internal/catalog"
	"github.com/freshcart-vn/freshcart-backend/internal/ledger"
	"github.com/freshcart-vn/freshcart-backend/internal/orders"
	"github.com/freshcart-vn/freshcart-backend/pkg/config"
	"github.com/freshcart-vn/freshcart-backend/pkg/db"
	"github.com/freshcart-vn/freshcart-backend/pkg/db/models"
	"github.com/freshcart-vn/freshcart-backend/pkg/enums"
	pkgerrors "github.com/freshcart-vn/freshcart-backend/pkg/errors"
	"github.com/freshcart-vn/freshcart-backend/pkg/vnpay"
)

type fakeCache struct {
	calls atomic.Int64
}

func (f *fakeCache) Invalidate(context.Context) error {
	f.calls.Add(1)
	return nil
}

type testEnv struct {
	db        *gorm.DB
	svc       Service
	orders    orders.Service
	orderRepo orders.Repository
	ledger    ledger.Repository
	gateway   *vnpay.Client
	cache     *fakeCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(
		&models.Product{}, &models.Order{}, &models.OrderItem{}, &models.Transaction{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cache := &fakeCache{}
	ledgerRepo := ledger.NewRepository(gdb)
	ledgerSvc, err := ledger.NewService(ledgerRepo, cache)
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}

	client := db.NewFromGorm(gdb)
	orderRepo := orders.NewRepository(gdb)
	catalogRepo := catalog.NewRepository(gdb)
	stock := catalog.NewStockLedger(gdb)

	orderSvc, err := orders.NewService(client, orderRepo, catalogRepo, stock, ledgerSvc, cache,
		config.OrdersConfig{MaxLineItems: 50}, nil)
	if err != nil {
		t.Fatalf("order service: %v", err)
	}

	gatewayCfg := config.VNPayConfig{
		TmnCode:    "FRESHCRT",
		HashSecret: "super-secret-key",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://shop.example.com/payments/return",
		SessionTTL: 15 * time.Minute,
	}
	gateway, err := vnpay.New(gatewayCfg)
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}

	svc, err := NewService(client, orderRepo, catalogRepo, stock, ledgerSvc, cache,
		gateway, nil, gatewayCfg, nil)
	if err != nil {
		t.Fatalf("payment service: %v", err)
	}
	return &testEnv{
		db:        gdb,
		svc:       svc,
		orders:    orderSvc,
		orderRepo: orderRepo,
		ledger:    ledgerRepo,
		gateway:   gateway,
		cache:     cache,
	}
}

func (e *testEnv) seedProduct(t *testing.T, price int64, stock int) uuid.UUID {
	t.Helper()
	product := models.Product{Name: "item", SellingPrice: price, CurrentStock: stock}
	if err := e.db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}

func (e *testEnv) stockOf(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := e.db.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return product.CurrentStock
}

// placeGatewayOrder creates a vnpay order with an open payment session and
// returns the order plus its live txn_ref.
func (e *testEnv) placeGatewayOrder(t *testing.T, items []orders.LineInput) (*models.Order, string) {
	t.Helper()
	ctx := context.Background()
	order, err := e.orders.Create(ctx, orders.CreateInput{
		Items:         items,
		Shipping:      orders.ShippingInfo{Name: "Tran Thi B", Phone: "0987654321", Address: "5 Hai Ba Trung, Hue"},
		PaymentMethod: enums.PaymentMethodVNPay,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	session, err := e.svc.CreateSession(ctx, order.ID, orders.Requester{Admin: true}, "203.0.113.7")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return order, session.TxnRef
}

// signedNotify builds a gateway-signed notification for the given reference.
func (e *testEnv) signedNotify(t *testing.T, txnRef string, amount int64, responseCode string) url.Values {
	t.Helper()
	params := url.Values{}
	params.Set("vnp_TmnCode", "FRESHCRT")
	params.Set("vnp_TxnRef", txnRef)
	params.Set("vnp_Amount", strconv.FormatInt(amount*100, 10))
	params.Set("vnp_ResponseCode", responseCode)
	params.Set("vnp_TransactionStatus", responseCode)
	params.Set("vnp_TransactionNo", "14422574")
	params.Set("vnp_BankCode", "NCB")
	params.Set("vnp_SecureHash", vnpay.Sign("super-secret-key", params))
	return params
}

func TestNotifySuccessDeductsAndBooksOnce(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	p1 := env.seedProduct(t, 10000, 10)
	p2 := env.seedProduct(t, 5000, 4)

	order, txnRef := env.placeGatewayOrder(t, []orders.LineInput{
		{ProductID: p1, Quantity: 3},
		{ProductID: p2, Quantity: 1},
	})
	if order.TotalAmount != 35000 {
		t.Fatalf("total = %d", order.TotalAmount)
	}
	if env.stockOf(t, p1) != 10 {
		t.Fatalf("stock deducted before notify: %d", env.stockOf(t, p1))
	}

	reply := env.svc.HandleNotify(ctx, env.signedNotify(t, txnRef, 35000, "00"))
	if reply != ReplySuccess {
		t.Fatalf("reply = %+v", reply)
	}

	refreshed, err := env.orderRepo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if refreshed.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("payment status = %s", refreshed.PaymentStatus)
	}
	if !refreshed.StockDeducted {
		t.Fatal("stock flag not set")
	}
	if refreshed.PaidAt == nil || refreshed.GatewayTransactionNo == nil {
		t.Fatal("gateway fields not recorded")
	}
	if env.stockOf(t, p1) != 7 || env.stockOf(t, p2) != 3 {
		t.Fatalf("stock = %d/%d", env.stockOf(t, p1), env.stockOf(t, p2))
	}

	entry, err := env.ledger.FindByRef(ctx, *models.OrderRef(order.ID), enums.TransactionCategoryCustomerPayment)
	if err != nil {
		t.Fatalf("ledger entry: %v", err)
	}
	if entry.Type != enums.TransactionTypeInflow {
		t.Fatalf("entry type = %s", entry.Type)
	}
	if env.cache.calls.Load() == 0 {
		t.Fatal("cache not invalidated")
	}
}

func TestNotifyDuplicateDeliveryIsNoOp(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 10000, 10)
	order, txnRef := env.placeGatewayOrder(t, []orders.LineInput{{ProductID: productID, Quantity: 3}})

	params := env.signedNotify(t, txnRef, 30000, "00")
	if reply := env.svc.HandleNotify(ctx, params); reply != ReplySuccess {
		t.Fatalf("first delivery: %+v", reply)
	}
	if reply := env.svc.HandleNotify(ctx, params); reply != ReplyAlreadyConfirmed {
		t.Fatalf("second delivery: %+v", reply)
	}

	if env.stockOf(t, productID) != 7 {
		t.Fatalf("stock deducted twice: %d", env.stockOf(t, productID))
	}
	var count int64
	if err := env.db.Model(&models.Transaction{}).
		Where("ref_id = ?", order.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("ledger entries = %d", count)
	}
}

func TestNotifyAmountMismatch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 10000, 10)
	order, txnRef := env.placeGatewayOrder(t, []orders.LineInput{{ProductID: productID, Quantity: 3}})

	reply := env.svc.HandleNotify(ctx, env.signedNotify(t, txnRef, 25000, "00"))
	if reply != ReplyInvalidAmount {
		t.Fatalf("reply = %+v", reply)
	}

	refreshed, _ := env.orderRepo.FindByID(ctx, order.ID)
	if refreshed.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("state changed on mismatch: %s", refreshed.PaymentStatus)
	}
	if env.stockOf(t, productID) != 10 {
		t.Fatalf("stock changed on mismatch: %d", env.stockOf(t, productID))
	}
}

func TestNotifyChecksumFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	productID := env.seedProduct(t, 10000, 10)
	_, txnRef := env.placeGatewayOrder(t, []orders.LineInput{{ProductID: productID, Quantity: 1}})

	params := env.signedNotify(t, txnRef, 10000, "00")
	params.Set("vnp_Amount", "999900")

	if reply := env.svc.HandleNotify(context.Background(), params); reply != ReplyChecksumFailure {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestNotifyUnknownOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	reply := env.svc.HandleNotify(context.Background(), env.signedNotify(t, "NOSUCHREF", 10000, "00"))
	if reply != ReplyOrderNotFound {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestNotifyFailedPaymentLeavesStateAlone(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 10000, 10)
	order, txnRef := env.placeGatewayOrder(t, []orders.LineInput{{ProductID: productID, Quantity: 1}})

	reply := env.svc.HandleNotify(ctx, env.signedNotify(t, txnRef, 10000, "24"))
	if reply != ReplyUnknownError {
		t.Fatalf("reply = %+v", reply)
	}
	refreshed, _ := env.orderRepo.FindByID(ctx, order.ID)
	if refreshed.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("state changed: %s", refreshed.PaymentStatus)
	}
}

func TestNotifyAfterCancellationDoesNotPay(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 10000, 10)
	order, txnRef := env.placeGatewayOrder(t, []orders.LineInput{{ProductID: productID, Quantity: 2}})

	if _, err := env.orders.Cancel(ctx, order.ID, orders.Requester{Admin: true}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	reply := env.svc.HandleNotify(ctx, env.signedNotify(t, txnRef, 20000, "00"))
	if reply != ReplyUnknownError {
		t.Fatalf("reply = %+v", reply)
	}

	refreshed, _ := env.orderRepo.FindByID(ctx, order.ID)
	if refreshed.PaymentStatus == enums.PaymentStatusPaid {
		t.Fatal("cancelled order got paid")
	}
	if env.stockOf(t, productID) != 10 {
		t.Fatalf("stock mutated: %d", env.stockOf(t, productID))
	}
}

func TestReturnPathIsReadOnly(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 10000, 10)
	order, txnRef := env.placeGatewayOrder(t, []orders.LineInput{{ProductID: productID, Quantity: 2}})

	result := env.svc.HandleReturn(ctx, env.signedNotify(t, txnRef, 20000, "00"))
	if !result.Verified || !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if result.OrderID == nil || *result.OrderID != order.ID {
		t.Fatal("order not resolved")
	}
	if *result.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("payment status = %s", *result.PaymentStatus)
	}

	// Return must never mutate: stock and status are untouched.
	refreshed, _ := env.orderRepo.FindByID(ctx, order.ID)
	if refreshed.PaymentStatus != enums.PaymentStatusPending || refreshed.StockDeducted {
		t.Fatal("return path mutated state")
	}
	if env.stockOf(t, productID) != 10 {
		t.Fatalf("return path touched stock: %d", env.stockOf(t, productID))
	}

	tampered := env.signedNotify(t, txnRef, 20000, "00")
	tampered.Set("vnp_ResponseCode", "99")
	if env.svc.HandleReturn(ctx, tampered).Verified {
		t.Fatal("tampered return verified")
	}
}

func TestRetryRegeneratesReference(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 10000, 10)
	order, firstRef := env.placeGatewayOrder(t, []orders.LineInput{{ProductID: productID, Quantity: 2}})

	session, err := env.svc.Retry(ctx, order.ID, orders.Requester{Admin: true}, "203.0.113.7")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if session.TxnRef == firstRef {
		t.Fatal("retry reused the old reference")
	}

	refreshed, _ := env.orderRepo.FindByID(ctx, order.ID)
	if refreshed.PaymentAttempts != 2 {
		t.Fatalf("attempts = %d", refreshed.PaymentAttempts)
	}

	// The superseded reference can no longer confirm the order.
	if reply := env.svc.HandleNotify(ctx, env.signedNotify(t, firstRef, 20000, "00")); reply != ReplyOrderNotFound {
		t.Fatalf("stale reference reply = %+v", reply)
	}
	if reply := env.svc.HandleNotify(ctx, env.signedNotify(t, session.TxnRef, 20000, "00")); reply != ReplySuccess {
		t.Fatalf("live reference reply = %+v", reply)
	}
}

func TestRetryRevalidatesStock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 10000, 3)
	order, _ := env.placeGatewayOrder(t, []orders.LineInput{{ProductID: productID, Quantity: 3}})

	// Someone else bought the stock while the session sat abandoned.
	if err := env.db.Model(&models.Product{}).
		Where("id = ?", productID).
		Update("current_stock", 1).Error; err != nil {
		t.Fatalf("drain stock: %v", err)
	}

	_, err := env.svc.Retry(ctx, order.ID, orders.Requester{Admin: true}, "203.0.113.7")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficient {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestSessionRefusedOncePaidOrCancelled(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 10000, 10)
	order, txnRef := env.placeGatewayOrder(t, []orders.LineInput{{ProductID: productID, Quantity: 1}})

	if reply := env.svc.HandleNotify(ctx, env.signedNotify(t, txnRef, 10000, "00")); reply != ReplySuccess {
		t.Fatalf("notify: %+v", reply)
	}

	_, err := env.svc.CreateSession(ctx, order.ID, orders.Requester{Admin: true}, "203.0.113.7")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("paid order session: %v", err)
	}
}

func TestSessionRefusedForCashOrders(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	productID := env.seedProduct(t, 10000, 10)

	order, err := env.orders.Create(ctx, orders.CreateInput{
		Items:         []orders.LineInput{{ProductID: productID, Quantity: 1}},
		Shipping:      orders.ShippingInfo{Name: "Tran Thi B", Phone: "0987654321", Address: "5 Hai Ba Trung, Hue"},
		PaymentMethod: enums.PaymentMethodCOD,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = env.svc.CreateSession(ctx, order.ID, orders.Requester{Admin: true}, "203.0.113.7")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("cash order session: %v", err)
	}
}
