package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/freshcart-vn/freshcart-backend/api/routes"
	"github.com/freshcart-vn/freshcart-backend/internal/catalog"
	"github.com/freshcart-vn/freshcart-backend/internal/ledger"
	"github.com/freshcart-vn/freshcart-backend/internal/orders"
	"github.com/freshcart-vn/freshcart-backend/internal/payments"
	"github.com/freshcart-vn/freshcart-backend/internal/summary"
	"github.com/freshcart-vn/freshcart-backend/pkg/config"
	"github.com/freshcart-vn/freshcart-backend/pkg/db"
	"github.com/freshcart-vn/freshcart-backend/pkg/logger"
	"github.com/freshcart-vn/freshcart-backend/pkg/metrics"
	"github.com/freshcart-vn/freshcart-backend/pkg/migrate"
	"github.com/freshcart-vn/freshcart-backend/pkg/redis"
	"github.com/freshcart-vn/freshcart-backend/pkg/vnpay"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	orderRepo := orders.NewRepository(dbClient.DB())
	catalogRepo := catalog.NewRepository(dbClient.DB())
	stockLedger := catalog.NewStockLedger(dbClient.DB())

	summarySvc, err := summary.NewService(ledgerRepo, redisClient, cfg.Summary, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create summary service", err)
		os.Exit(1)
	}

	ledgerSvc, err := ledger.NewService(ledgerRepo, summarySvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(dbClient, orderRepo, catalogRepo, stockLedger, ledgerSvc, summarySvc, cfg.Orders, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	gateway, err := vnpay.New(cfg.VNPay)
	if err != nil {
		logg.Error(context.Background(), "failed to create vnpay client", err)
		os.Exit(1)
	}

	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)
	paymentsSvc, err := payments.NewService(dbClient, orderRepo, catalogRepo, stockLedger, ledgerSvc, summarySvc, gateway, paymentMetrics, cfg.VNPay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, ordersSvc, paymentsSvc, ledgerSvc, summarySvc),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
