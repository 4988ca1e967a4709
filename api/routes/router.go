package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/freshcart-vn/freshcart-backend/api/controllers"
	ordercontrollers "github.com/freshcart-vn/freshcart-backend/api/controllers/orders"
	paymentcontrollers "github.com/freshcart-vn/freshcart-backend/api/controllers/payments"
	"github.com/freshcart-vn/freshcart-backend/api/middleware"
	"github.com/freshcart-vn/freshcart-backend/internal/ledger"
	"github.com/freshcart-vn/freshcart-backend/internal/orders"
	"github.com/freshcart-vn/freshcart-backend/internal/payments"
	"github.com/freshcart-vn/freshcart-backend/internal/summary"
	"github.com/freshcart-vn/freshcart-backend/pkg/config"
	"github.com/freshcart-vn/freshcart-backend/pkg/db"
	"github.com/freshcart-vn/freshcart-backend/pkg/logger"
	"github.com/freshcart-vn/freshcart-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	ordersSvc orders.Service,
	paymentsSvc payments.Service,
	ledgerSvc ledger.Service,
	summarySvc summary.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	// Gateway callbacks carry their own HMAC authentication.
	r.Route("/api/v1/payments/vnpay", func(r chi.Router) {
		r.Get("/ipn", paymentcontrollers.IPN(paymentsSvc, logg))
		r.Post("/ipn", paymentcontrollers.IPN(paymentsSvc, logg))
		r.Get("/return", paymentcontrollers.Return(paymentsSvc, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		// Placement allows guests; the rate limit keeps anonymous abuse down.
		r.With(
			middleware.OptionalAuth(cfg.JWT, logg),
			httprate.LimitByIP(cfg.RateLimit.OrderLimit, cfg.RateLimit.OrderWindow),
		).Post("/", ordercontrollers.Create(ordersSvc, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Get("/{orderID}", ordercontrollers.Detail(ordersSvc, logg))
			r.Post("/{orderID}/cancel", ordercontrollers.CancelOrder(ordersSvc, logg))
			r.Post("/{orderID}/payment", ordercontrollers.CreatePayment(paymentsSvc, logg))
			r.Post("/{orderID}/payment/retry", ordercontrollers.RetryPayment(paymentsSvc, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrderList(ordersSvc, logg))
			r.Get("/export", controllers.AdminOrderExport(ordersSvc, logg))
			r.Patch("/{orderID}/status", controllers.AdminOrderStatus(ordersSvc, logg))
			r.Post("/{orderID}/cancel", ordercontrollers.CancelOrder(ordersSvc, logg))
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", controllers.AdminTransactionList(ledgerSvc, logg))
			r.Post("/", controllers.AdminTransactionCreate(ledgerSvc, logg))
			r.Delete("/{transactionID}", controllers.AdminTransactionDelete(ledgerSvc, logg))
		})

		r.Route("/finance", func(r chi.Router) {
			r.Get("/summary", controllers.AdminFinanceSummary(summarySvc, logg))
			r.Post("/summary/refresh", controllers.AdminFinanceRefresh(summarySvc, logg))
			r.Get("/chart", controllers.AdminFinanceChart(summarySvc, logg))
		})
	})

	return r
}
