package scheduler

import (
	"context"
	"time"

	obslogger "github.com/smallbiznis/rentbill/internal/observability/logger"
	"github.com/smallbiznis/rentbill/internal/outletcontext"
	"go.uber.org/zap"
)

// schedulerActor is recorded as the requester on anything a job writes.
const schedulerActor = "scheduler"

// jobRun accumulates the counters reported when a job finishes.
type jobRun struct {
	job       string
	runID     string
	batchSize int
	asOf      time.Time
	batches   int
	changed   int
	failures  int
}

type jobRunKey struct{}

// RecordBatch counts one RefreshOverdue pass and the invoices it moved.
func (r *jobRun) RecordBatch(changed int) {
	if r == nil {
		return
	}
	r.batches++
	if changed > 0 {
		r.changed += changed
	}
}

func (r *jobRun) RecordFailure() {
	if r == nil {
		return
	}
	r.failures++
}

func (s *Scheduler) startJobRun(ctx context.Context, j job) (context.Context, *jobRun) {
	run := &jobRun{
		job:       j.name,
		runID:     s.genID.Generate().String(),
		batchSize: j.batchSize,
		asOf:      s.clock.Now().UTC(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = outletcontext.WithActorID(ctx, schedulerActor)
	return ctx, run
}

func jobRunFromContext(ctx context.Context) *jobRun {
	if ctx == nil {
		return nil
	}
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	s.logger(ctx).Info("scheduler job started",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int("batch_size", run.batchSize),
		zap.Time("as_of", run.asOf),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun, elapsed time.Duration) {
	if run == nil {
		return
	}
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Duration("elapsed", elapsed),
		zap.Int("batches", run.batches),
		zap.Int("invoices_changed", run.changed),
		zap.Int("failures", run.failures),
	}
	if run.failures > 0 {
		s.logger(ctx).Warn("scheduler job finished with failures", fields...)
		return
	}
	s.logger(ctx).Info("scheduler job finished", fields...)
}
