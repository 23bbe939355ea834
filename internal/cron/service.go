package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mediagateway/pkg/logger"
	"github.com/angelmondragon/mediagateway/pkg/metrics"
)

const defaultInterval = 6 * time.Hour

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.JobMetrics
	Interval time.Duration
	// Timeout bounds one cycle. Set it at or below the lock TTL so a cycle
	// never outlives its lease. Zero means no bound.
	Timeout time.Duration
}

// Service runs the registered jobs every Interval. Replicas sharing a
// RedisLock take turns: a cycle that cannot take the lock is skipped.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.JobMetrics
	interval time.Duration
	timeout  time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
		timeout:  params.Timeout,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run starts a cycle right away and then after each interval, measured from
// the end of the previous cycle, until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		timer.Reset(s.interval)
		s.logg.Debug(s.logg.WithField(ctx, "next_run", time.Now().Add(s.interval).Format(time.RFC3339)), "cron.sleeping")

		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunOnce runs every job once under the lock. A failing job does not stop
// the ones after it. The only error returned is a lock failure.
func (s *Service) RunOnce(ctx context.Context) error {
	ctx = s.logg.WithField(ctx, "cycle", uuid.NewString()[:8])

	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	jobs := s.registry.Jobs()
	if !held {
		s.logg.Info(ctx, "cron.skipped_lock_held")
		for _, job := range jobs {
			s.metrics.IncSkipped(job.Name())
		}
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron.lock_release_failed", err)
		}
	}()

	cycleCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	failed := 0
	for _, job := range jobs {
		if !s.runJob(cycleCtx, job) {
			failed++
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"jobs": len(jobs), "failed": failed}), "cron.cycle_complete")
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) (ok bool) {
	name := job.Name()
	ctx = s.logg.WithJob(ctx, name)
	start := time.Now()

	defer func() {
		elapsed := time.Since(start)
		s.metrics.ObserveDuration(name, elapsed)
		ctx := s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
		if rec := recover(); rec != nil {
			ok = false
			s.logg.Error(ctx, "cron.job_panicked", fmt.Errorf("panic: %v", rec))
		}
		if ok {
			s.metrics.IncSuccess(name)
			s.logg.Info(ctx, "cron.job_done")
			return
		}
		s.metrics.IncFailure(name)
	}()

	if err := job.Run(ctx); err != nil {
		s.logg.Error(ctx, "cron.job_failed", err)
		return false
	}
	return true
}
