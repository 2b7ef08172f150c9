package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbill/internal/clock"
	"github.com/smallbiznis/rentbill/internal/lock"
	obsmetrics "github.com/smallbiznis/rentbill/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/rentbill/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobOverdueSweep = "overdue_sweep"

	resourceInvoices = "invoices"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	PaymentSvc paymentdomain.Service
	Locker     lock.Locker
	Config     Config                      `optional:"true"`
	Metrics    *obsmetrics.SchedulerMetrics `optional:"true"`
}

// Scheduler runs the overdue sweep. Each run takes a redis lock so that only
// one instance sweeps at a time.
type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	paymentSvc paymentdomain.Service
	locker     lock.Locker
	metrics    *obsmetrics.SchedulerMetrics
}

type job struct {
	name      string
	batchSize int
	run       func(ctx context.Context) error
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.PaymentSvc == nil || p.Locker == nil {
		return nil, ErrInvalidConfig
	}
	schedMetrics := p.Metrics
	if schedMetrics == nil {
		schedMetrics = obsmetrics.Scheduler()
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		paymentSvc: p.PaymentSvc,
		locker:     p.Locker,
		metrics:    schedMetrics,
	}, nil
}

func (s *Scheduler) jobs() []job {
	return []job{
		{name: JobOverdueSweep, batchSize: s.cfg.BatchSize, run: s.OverdueSweepJob},
	}
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	for _, j := range s.jobs() {
		if !s.isJobEnabled(j.name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, j))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if runLag := time.Since(nextRun); runLag > 0 {
			s.metrics.ObserveRunLoopLag(runLag)
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)
	}
}

// runJob skips the tick when another instance holds the job lock. A deadline
// hit is logged and counted but not returned; the next tick resumes the work.
func (s *Scheduler) runJob(parent context.Context, j job) error {
	key := lock.Key(j.name)
	token, ok, err := s.locker.TryLock(parent, key, s.cfg.LockTTL)
	if err != nil {
		s.metrics.IncJobError(j.name, err)
		return fmt.Errorf("%s: acquire lock: %w", j.name, err)
	}
	if !ok {
		s.metrics.IncJobSkipped(j.name, obsmetrics.SchedulerSkipReasonLockHeld)
		s.log.Debug("scheduler.job.skipped", zap.String("job", j.name), zap.String("reason", obsmetrics.SchedulerSkipReasonLockHeld))
		return nil
	}
	defer func() {
		// release must outlive a cancelled parent
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(parent), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.log.Warn("scheduler lock release failed", zap.String("job", j.name), zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	ctx, run := s.startJobRun(ctx, j)
	s.logJobStart(ctx, run)
	s.metrics.IncJobRun(j.name)

	start := time.Now()
	err = j.run(ctx)
	elapsed := time.Since(start)
	s.metrics.ObserveJobDuration(j.name, elapsed)
	if err != nil && run.failures == 0 {
		run.RecordFailure()
	}
	s.logJobFinish(ctx, run, elapsed)
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(j.name, err)
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger(ctx).Warn("job timed out",
			zap.String("job", j.name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", j.name, err)
}

// OverdueSweepJob refreshes invoices past their due date in batches until a
// batch comes back short or the run hits MaxBatches.
func (s *Scheduler) OverdueSweepJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	now := s.clock.Now()
	if run != nil {
		now = run.asOf
	}

	var jobErr error
	for batch := 0; batch < s.cfg.MaxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(jobErr, err)
		}
		changed, err := s.paymentSvc.RefreshOverdue(ctx, now, s.cfg.BatchSize)
		run.RecordBatch(changed)
		s.metrics.AddBatchProcessed(JobOverdueSweep, resourceInvoices, changed)
		if err != nil {
			run.RecordFailure()
			jobErr = errors.Join(jobErr, err)
			// failed rows stay candidates, so another pass would only retry them
			break
		}
		if changed < s.cfg.BatchSize {
			break
		}
	}
	return jobErr
}

func (s *Scheduler) isJobEnabled(name string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), name) {
			return true
		}
	}
	return false
}
