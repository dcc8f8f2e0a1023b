/*
scheduler.go - Scheduled cycle ensure/recompute

PURPOSE:
  Periodically runs payroll.Service.RecomputeRecent so the previous and the
  current month always have their cycles, and assignments left stale by a
  config change or a failed inline assignment are corrected without an
  operator calling POST /api/cycles/ensure.

DESIGN:
  - robfig/cron drives the schedule (RECOMPUTE_CRON, default 0 2 * * *)
  - Overlapping runs are skipped; panics are recovered and logged
  - The last run is kept in memory for GET /api/recompute/last

USAGE:
  scheduler := NewRecomputeScheduler(svc, "0 2 * * *", logger)
  if err := scheduler.Start(); err != nil { ... }
  // ... later
  scheduler.Stop()

SEE ALSO:
  - payroll/service.go: RecomputeRecent, EnsureMonth
  - handlers.go: EnsureCycles endpoint (manual recompute)
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/warp/nota-engine/payroll"
)

// Recomputer is the part of payroll.Service the scheduler drives.
type Recomputer interface {
	RecomputeRecent(ctx context.Context) ([]payroll.MonthResult, error)
}

// RecomputeRun records one scheduled run.
type RecomputeRun struct {
	StartedAt  time.Time             `json:"startedAt"`
	FinishedAt time.Time             `json:"finishedAt"`
	Months     []payroll.MonthResult `json:"months"`
	Error      string                `json:"error,omitempty"`
}

// RecomputeScheduler runs RecomputeRecent on a cron schedule.
type RecomputeScheduler struct {
	Service  Recomputer
	Schedule string
	Timeout  time.Duration
	Enabled  bool

	logger *zap.Logger
	cron   *cron.Cron

	mu      sync.Mutex
	lastRun *RecomputeRun
}

// NewRecomputeScheduler creates an enabled scheduler.
func NewRecomputeScheduler(svc Recomputer, schedule string, logger *zap.Logger) *RecomputeScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecomputeScheduler{
		Service:  svc,
		Schedule: schedule,
		Timeout:  5 * time.Minute,
		Enabled:  true,
		logger:   logger,
	}
}

// Start registers the job and starts the cron loop.
func (rs *RecomputeScheduler) Start() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.logger.Info("recompute scheduler disabled")
		return nil
	}
	if rs.cron != nil {
		return nil
	}

	cl := cronLogger{l: rs.logger.Sugar()}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl))
	if _, err := c.AddFunc(rs.Schedule, func() { rs.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("invalid recompute schedule %q: %w", rs.Schedule, err)
	}
	c.Start()
	rs.cron = c

	rs.logger.Info("recompute scheduler started", zap.String("schedule", rs.Schedule))
	return nil
}

// Stop stops the cron loop and waits for a running job.
func (rs *RecomputeScheduler) Stop() {
	rs.mu.Lock()
	c := rs.cron
	rs.cron = nil
	rs.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	rs.logger.Info("recompute scheduler stopped")
}

// RunOnce runs one recompute now and records it.
func (rs *RecomputeScheduler) RunOnce(ctx context.Context) *RecomputeRun {
	if rs.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rs.Timeout)
		defer cancel()
	}

	run := &RecomputeRun{StartedAt: time.Now()}
	months, err := rs.Service.RecomputeRecent(ctx)
	run.FinishedAt = time.Now()
	run.Months = months
	if err != nil {
		run.Error = err.Error()
		rs.logger.Error("scheduled recompute failed", zap.Error(err))
	} else {
		assigned := 0
		for _, m := range months {
			assigned += m.Assigned
		}
		rs.logger.Info("scheduled recompute completed",
			zap.Int("months", len(months)),
			zap.Int("assigned", assigned),
			zap.Duration("took", run.FinishedAt.Sub(run.StartedAt)),
		)
	}

	rs.mu.Lock()
	rs.lastRun = run
	rs.mu.Unlock()
	return run
}

// LastRun returns the most recent run, or nil.
func (rs *RecomputeScheduler) LastRun() *RecomputeRun {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.lastRun
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
