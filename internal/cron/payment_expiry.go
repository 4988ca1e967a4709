package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/freshcart-vn/freshcart-backend/internal/orders"
	"github.com/freshcart-vn/freshcart-backend/pkg/config"
	"github.com/freshcart-vn/freshcart-backend/pkg/logger"
)

const paymentExpiryJobName = "payment_session_expiry"

// PaymentExpiryJob fails the payment of gateway orders whose session expired
// without ever confirming. Stock was never deducted for these orders, so only
// payment_status moves; the order stays cancellable and retry-able.
type PaymentExpiryJob struct {
	repo      orders.Repository
	logg      *logger.Logger
	grace     time.Duration
	batchSize int
}

// NewPaymentExpiryJob builds the sweep job.
func NewPaymentExpiryJob(repo orders.Repository, cfg config.CronConfig, logg *logger.Logger) (*PaymentExpiryJob, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	batch := cfg.ExpiryBatchSize
	if batch <= 0 {
		batch = 200
	}
	return &PaymentExpiryJob{
		repo:      repo,
		logg:      logg,
		grace:     cfg.PaymentGrace,
		batchSize: batch,
	}, nil
}

// Name implements Job.
func (j *PaymentExpiryJob) Name() string {
	return paymentExpiryJobName
}

// Run implements Job. Each order is failed by its own conditional update, so
// a session that confirms mid-sweep is left alone.
func (j *PaymentExpiryJob) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-j.grace)
	ids, err := j.repo.FindExpiredPaymentIDs(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("find expired payment sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	expired := 0
	var errs []error
	for _, id := range ids {
		rows, err := j.repo.MarkPaymentFailed(ctx, id)
		if err != nil {
			// One bad row must not stall the rest of the batch.
			errs = append(errs, fmt.Errorf("fail expired payment %s: %w", id, err))
			continue
		}
		expired += int(rows)
	}

	if j.logg != nil && expired > 0 {
		j.logg.Info(ctx, fmt.Sprintf("expired %d abandoned payment sessions", expired))
	}
	return multierr.Combine(errs...)
}
