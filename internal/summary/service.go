package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/freshcart-vn/freshcart-backend/internal/ledger"
	"github.com/freshcart-vn/freshcart-backend/pkg/config"
	"github.com/freshcart-vn/freshcart-backend/pkg/db/models"
	"github.com/freshcart-vn/freshcart-backend/pkg/enums"
	pkgerrors "github.com/freshcart-vn/freshcart-backend/pkg/errors"
	"github.com/freshcart-vn/freshcart-backend/pkg/logger"
	"github.com/freshcart-vn/freshcart-backend/pkg/redis"
)

// ledgerReader is the slice of the ledger repository the cache reads through.
type ledgerReader interface {
	SumInRange(ctx context.Context, from, to time.Time) (ledger.Totals, error)
	ListInRange(ctx context.Context, from, to time.Time) ([]models.Transaction, error)
}

// Summary is the cached aggregate for one time window.
type Summary struct {
	Window      enums.SummaryWindow `json:"window"`
	Inflow      decimal.Decimal     `json:"inflow"`
	Outflow     decimal.Decimal     `json:"outflow"`
	Net         decimal.Decimal     `json:"net"`
	From        time.Time           `json:"from"`
	To          time.Time           `json:"to"`
	LastUpdated time.Time           `json:"last_updated"`
}

// ChartBucket is one bar of a finance chart.
type ChartBucket struct {
	Label   string          `json:"label"`
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
}

// Chart is the cached bucketed series for one period.
type Chart struct {
	Period      enums.ChartPeriod `json:"period"`
	Buckets     []ChartBucket     `json:"buckets"`
	LastUpdated time.Time         `json:"last_updated"`
}

// Service is the read-through finance summary cache. Values are never
// authoritative; every entry can be rebuilt from the transaction ledger.
type Service interface {
	Get(ctx context.Context, window enums.SummaryWindow) (*Summary, error)
	GetChart(ctx context.Context, period enums.ChartPeriod) (*Chart, error)
	// Invalidate drops every cached window and chart. Wired to every ledger
	// mutation so the next read recomputes.
	Invalidate(ctx context.Context) error
	// Refresh recomputes and re-caches all windows regardless of expiry.
	Refresh(ctx context.Context) error
}

type service struct {
	reader ledgerReader
	cache  *redis.Client
	logg   *logger.Logger
	ttl    time.Duration
	loc    *time.Location
	now    func() time.Time
}

// NewService wires the summary cache against the ledger and redis.
func NewService(reader ledgerReader, cache *redis.Client, cfg config.SummaryConfig, logg *logger.Logger) (Service, error) {
	if reader == nil {
		return nil, fmt.Errorf("ledger reader required")
	}
	if cache == nil {
		return nil, fmt.Errorf("redis client required")
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load summary time zone %q: %w", cfg.TimeZone, err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &service{
		reader: reader,
		cache:  cache,
		logg:   logg,
		ttl:    ttl,
		loc:    loc,
		now:    time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, window enums.SummaryWindow) (*Summary, error) {
	if !window.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid summary window %q", window))
	}

	key := s.cache.SummaryKey(window.String())
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var cached Summary
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return &cached, nil
		}
		// Corrupt entry; fall through and rebuild.
	} else if !errors.Is(err, redis.Nil) && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "window", window.String()), "summary cache read failed")
	}

	return s.compute(ctx, window)
}

func (s *service) compute(ctx context.Context, window enums.SummaryWindow) (*Summary, error) {
	from, to, err := windowRange(window, s.now(), s.loc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "resolve window range")
	}
	totals, err := s.reader.SumInRange(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate ledger")
	}

	value := &Summary{
		Window:      window,
		Inflow:      totals.Inflow,
		Outflow:     totals.Outflow,
		Net:         totals.Inflow.Sub(totals.Outflow),
		From:        from,
		To:          to,
		LastUpdated: s.now(),
	}
	s.store(ctx, s.cache.SummaryKey(window.String()), value)
	return value, nil
}

func (s *service) GetChart(ctx context.Context, period enums.ChartPeriod) (*Chart, error) {
	if !period.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid chart period %q", period))
	}

	key := s.cache.ChartKey(period.String())
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var cached Chart
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return &cached, nil
		}
	} else if !errors.Is(err, redis.Nil) && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "period", period.String()), "chart cache read failed")
	}

	from, to, err := chartRange(period, s.now(), s.loc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "resolve chart range")
	}
	entries, err := s.reader.ListInRange(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger entries")
	}

	labels := bucketLabels(period, from)
	buckets := make([]ChartBucket, len(labels))
	for i, label := range labels {
		buckets[i] = ChartBucket{Label: label, Inflow: decimal.Zero, Outflow: decimal.Zero}
	}
	for _, entry := range entries {
		idx := bucketIndex(period, entry.Date, s.loc)
		if idx < 0 || idx >= len(buckets) {
			continue
		}
		switch entry.Type {
		case enums.TransactionTypeInflow:
			buckets[idx].Inflow = buckets[idx].Inflow.Add(entry.Amount)
		case enums.TransactionTypeOutflow:
			buckets[idx].Outflow = buckets[idx].Outflow.Add(entry.Amount)
		}
	}

	chart := &Chart{Period: period, Buckets: buckets, LastUpdated: s.now()}
	s.store(ctx, key, chart)
	return chart, nil
}

func (s *service) Invalidate(ctx context.Context) error {
	keys := make([]string, 0, 8)
	for _, window := range enums.AllSummaryWindows() {
		keys = append(keys, s.cache.SummaryKey(window.String()))
	}
	for _, period := range []enums.ChartPeriod{enums.ChartPeriodDay, enums.ChartPeriodWeek, enums.ChartPeriodMonth, enums.ChartPeriodYear} {
		keys = append(keys, s.cache.ChartKey(period.String()))
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "summary cache invalidation failed", err)
		}
		return err
	}
	return nil
}

func (s *service) Refresh(ctx context.Context) error {
	for _, window := range enums.AllSummaryWindows() {
		if _, err := s.compute(ctx, window); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) store(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil && s.logg != nil {
		// A failed write only costs the next read a recompute.
		s.logg.Warn(s.logg.WithField(ctx, "key", key), "summary cache write failed")
	}
}
