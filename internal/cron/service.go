package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/freshcart-vn/freshcart-backend/pkg/config"
	"github.com/freshcart-vn/freshcart-backend/pkg/logger"
	"github.com/freshcart-vn/freshcart-backend/pkg/metrics"
	"github.com/freshcart-vn/freshcart-backend/pkg/redis"
)

// Job is a unit of scheduled background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Service drives registered jobs on a fixed interval. A per-job Redis lock
// makes each tick single-flight across instances; a replica that loses the
// lock simply skips the tick.
type Service struct {
	jobs     []Job
	locks    *redis.Client
	metrics  *metrics.CronJobMetrics
	logg     *logger.Logger
	interval time.Duration
	lockTTL  time.Duration
}

// NewService builds the cron runner.
func NewService(locks *redis.Client, jobMetrics *metrics.CronJobMetrics, cfg config.CronConfig, logg *logger.Logger) (*Service, error) {
	if locks == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 15 * time.Minute
	}
	return &Service{
		locks:    locks,
		metrics:  jobMetrics,
		logg:     logg,
		interval: interval,
		lockTTL:  lockTTL,
	}, nil
}

// Register adds a job to the schedule. Not safe to call once Run has started.
func (s *Service) Register(job Job) {
	if job == nil {
		return
	}
	s.jobs = append(s.jobs, job)
}

// Run ticks until the context is canceled. Every job runs once immediately.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron runner stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	for _, job := range s.jobs {
		s.runJob(ctx, job)
	}
}

func (s *Service) runJob(ctx context.Context, job Job) {
	name := job.Name()
	lockKey := s.locks.LockKey(name)

	acquired, err := s.locks.SetNX(ctx, lockKey, time.Now().Format(time.RFC3339), s.lockTTL)
	if err != nil {
		s.logg.Error(ctx, fmt.Sprintf("cron lock acquisition failed for %s", name), err)
		return
	}
	if !acquired {
		return
	}
	defer func() { _ = s.locks.Del(ctx, lockKey) }()

	started := time.Now()
	err = job.Run(ctx)
	s.metrics.ObserveDuration(name, time.Since(started))
	if err != nil {
		s.metrics.IncFailure(name)
		s.logg.Error(ctx, fmt.Sprintf("cron job %s failed", name), err)
		return
	}
	s.metrics.IncSuccess(name)
}
