// Package maintenance runs periodic store upkeep on a gocron schedule.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const jobName = "store-maintenance"

// Store is the part of the message store that can be maintained.
type Store interface {
	Maintain(ctx context.Context) error
}

// Runner schedules Store.Maintain every interval. Failures are logged and
// counted but never stop the schedule.
type Runner struct {
	store    Store
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	runs     atomic.Int64
	failures atomic.Int64
}

// New creates a Runner. An interval of zero disables it: Run just waits for
// the context.
func New(store Store, interval time.Duration, logger *slog.Logger) (*Runner, error) {
	if store == nil {
		return nil, errors.New("maintenance: nil store")
	}
	if interval < 0 {
		return nil, fmt.Errorf("maintenance: negative interval %s", interval)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:    store,
		interval: interval,
		timeout:  time.Minute,
		logger:   logger.With("component", "maintenance"),
	}, nil
}

// Enabled reports whether a schedule will be created.
func (r *Runner) Enabled() bool {
	return r.interval > 0
}

// Run starts the schedule and blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	if !r.Enabled() {
		r.logger.Info("maintenance disabled")
		<-ctx.Done()
		return nil
	}

	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(newGocronLogger(r.logger)),
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	job, err := s.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() { _ = r.RunOnce(ctx) }),
		gocron.WithName(jobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to schedule %s: %w", jobName, err)
	}

	s.Start()
	attrs := []any{"interval", r.interval.String()}
	if next, err := job.NextRun(); err == nil {
		attrs = append(attrs, "next_run", next.Format(time.RFC3339))
	}
	r.logger.Info("maintenance scheduled", attrs...)

	<-ctx.Done()
	if err := s.Shutdown(); err != nil {
		return fmt.Errorf("scheduler shutdown failed: %w", err)
	}
	return nil
}

// RunOnce performs one maintenance pass.
func (r *Runner) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := r.store.Maintain(ctx)
	r.runs.Add(1)
	if err != nil {
		r.failures.Add(1)
		r.logger.Warn("maintenance failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return err
	}
	r.logger.Info("maintenance complete", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Runs reports how many passes have executed.
func (r *Runner) Runs() int64 { return r.runs.Load() }

// Failures reports how many passes returned an error.
func (r *Runner) Failures() int64 { return r.failures.Load() }
