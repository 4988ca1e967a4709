package summary

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/freshcart-vn/freshcart-backend/internal/ledger"
	"github.com/freshcart-vn/freshcart-backend/pkg/config"
	"github.com/freshcart-vn/freshcart-backend/pkg/db/models"
	"github.com/freshcart-vn/freshcart-backend/pkg/enums"
	pkgerrors "github.com/freshcart-vn/freshcart-backend/pkg/errors"
	"github.com/freshcart-vn/freshcart-backend/pkg/redis"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:summary_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Transaction{}); err != nil {
		t.Fatalf("migrate transactions: %v", err)
	}
	return db
}

func newTestService(t *testing.T, now time.Time) (Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)

	mini := miniredis.RunT(t)
	client := redis.NewFromAddr(mini.Addr())
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.SummaryConfig{TTL: 15 * time.Minute, TimeZone: "UTC"}
	svc, err := NewService(ledger.NewRepository(db), client, cfg, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.(*service).now = func() time.Time { return now }
	return svc, db
}

func seedEntry(t *testing.T, db *gorm.DB, date time.Time, txType enums.TransactionType, amount int64) {
	t.Helper()
	entry := models.Transaction{
		Date:     date,
		Type:     txType,
		Category: enums.TransactionCategoryOtherIncome,
		Amount:   decimal.NewFromInt(amount),
		Method:   enums.TransactionMethodCash,
	}
	if txType == enums.TransactionTypeOutflow {
		entry.Category = enums.TransactionCategoryRent
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}

func TestGetComputesAndCaches(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 12, 10, 30, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	ctx := context.Background()

	seedEntry(t, db, now.Add(-time.Hour), enums.TransactionTypeInflow, 50000)
	seedEntry(t, db, now.Add(-2*time.Hour), enums.TransactionTypeOutflow, 20000)
	seedEntry(t, db, now.AddDate(0, 0, -3), enums.TransactionTypeInflow, 99999)

	got, err := svc.Get(ctx, enums.SummaryWindowToday)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Inflow.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("inflow = %s", got.Inflow)
	}
	if !got.Outflow.Equal(decimal.NewFromInt(20000)) {
		t.Fatalf("outflow = %s", got.Outflow)
	}
	if !got.Net.Equal(decimal.NewFromInt(30000)) {
		t.Fatalf("net = %s", got.Net)
	}

	// A write that bypasses the service is invisible until invalidation.
	seedEntry(t, db, now.Add(-time.Minute), enums.TransactionTypeInflow, 11111)
	cached, err := svc.Get(ctx, enums.SummaryWindowToday)
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if !cached.Inflow.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("expected cached inflow 50000, got %s", cached.Inflow)
	}

	if err := svc.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	fresh, err := svc.Get(ctx, enums.SummaryWindowToday)
	if err != nil {
		t.Fatalf("fresh get: %v", err)
	}
	if !fresh.Inflow.Equal(decimal.NewFromInt(61111)) {
		t.Fatalf("expected recomputed inflow 61111, got %s", fresh.Inflow)
	}
}

func TestGetWiderWindows(t *testing.T) {
	t.Parallel()

	// Thursday 2026-03-12; the business week started Monday 2026-03-09.
	now := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	ctx := context.Background()

	seedEntry(t, db, time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC), enums.TransactionTypeInflow, 1000)
	seedEntry(t, db, time.Date(2026, 3, 8, 8, 0, 0, 0, time.UTC), enums.TransactionTypeInflow, 2000)
	seedEntry(t, db, time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC), enums.TransactionTypeInflow, 4000)

	week, err := svc.Get(ctx, enums.SummaryWindowWeek)
	if err != nil {
		t.Fatalf("week: %v", err)
	}
	if !week.Inflow.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("week inflow = %s", week.Inflow)
	}

	month, err := svc.Get(ctx, enums.SummaryWindowMonth)
	if err != nil {
		t.Fatalf("month: %v", err)
	}
	if !month.Inflow.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("month inflow = %s", month.Inflow)
	}

	year, err := svc.Get(ctx, enums.SummaryWindowYear)
	if err != nil {
		t.Fatalf("year: %v", err)
	}
	if !year.Inflow.Equal(decimal.NewFromInt(7000)) {
		t.Fatalf("year inflow = %s", year.Inflow)
	}
}

func TestGetRejectsUnknownWindow(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, time.Now())

	_, err := svc.Get(context.Background(), enums.SummaryWindow("quarter"))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestChartYearBucketsByMonth(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	ctx := context.Background()

	seedEntry(t, db, time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC), enums.TransactionTypeInflow, 1000)
	seedEntry(t, db, time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC), enums.TransactionTypeInflow, 500)
	seedEntry(t, db, time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC), enums.TransactionTypeOutflow, 700)

	chart, err := svc.GetChart(ctx, enums.ChartPeriodYear)
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	if len(chart.Buckets) != 12 {
		t.Fatalf("expected 12 buckets, got %d", len(chart.Buckets))
	}
	if !chart.Buckets[0].Inflow.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("january inflow = %s", chart.Buckets[0].Inflow)
	}
	if !chart.Buckets[2].Outflow.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("march outflow = %s", chart.Buckets[2].Outflow)
	}
	if chart.Buckets[0].Label != "Jan" || chart.Buckets[11].Label != "Dec" {
		t.Fatalf("unexpected labels %q/%q", chart.Buckets[0].Label, chart.Buckets[11].Label)
	}
}

func TestChartDayBucketsByHourBlock(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 12, 20, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	ctx := context.Background()

	seedEntry(t, db, time.Date(2026, 3, 12, 7, 0, 0, 0, time.UTC), enums.TransactionTypeInflow, 100)
	seedEntry(t, db, time.Date(2026, 3, 12, 19, 30, 0, 0, time.UTC), enums.TransactionTypeInflow, 200)

	chart, err := svc.GetChart(ctx, enums.ChartPeriodDay)
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	if len(chart.Buckets) != 4 {
		t.Fatalf("expected 4 hour blocks, got %d", len(chart.Buckets))
	}
	if !chart.Buckets[1].Inflow.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("06-12 inflow = %s", chart.Buckets[1].Inflow)
	}
	if !chart.Buckets[3].Inflow.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("18-24 inflow = %s", chart.Buckets[3].Inflow)
	}
}

func TestRefreshOverwritesStaleCache(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	svc, db := newTestService(t, now)
	ctx := context.Background()

	if _, err := svc.Get(ctx, enums.SummaryWindowToday); err != nil {
		t.Fatalf("prime: %v", err)
	}
	seedEntry(t, db, now.Add(-time.Minute), enums.TransactionTypeInflow, 42000)

	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	got, err := svc.Get(ctx, enums.SummaryWindowToday)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Inflow.Equal(decimal.NewFromInt(42000)) {
		t.Fatalf("expected refreshed inflow 42000, got %s", got.Inflow)
	}
}

func TestWindowRangeWeekStartsMonday(t *testing.T) {
	t.Parallel()

	loc := time.UTC
	sunday := time.Date(2026, 3, 15, 23, 0, 0, 0, loc)
	from, to, err := windowRange(enums.SummaryWindowWeek, sunday, loc)
	if err != nil {
		t.Fatalf("window range: %v", err)
	}
	if from.Weekday() != time.Monday {
		t.Fatalf("week starts %s", from.Weekday())
	}
	if !from.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, loc)) {
		t.Fatalf("week start = %s", from)
	}
	if !to.Equal(time.Date(2026, 3, 16, 0, 0, 0, 0, loc)) {
		t.Fatalf("week end = %s", to)
	}
}
