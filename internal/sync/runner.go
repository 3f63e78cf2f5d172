package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/kvk-connect/kvk-sync/internal/otel"
	"github.com/kvk-connect/kvk-sync/internal/telemetry"
)

// DefaultRetryBackoff is the first delay after a failed daemon cycle
const DefaultRetryBackoff = time.Minute

// ErrJobPanicked is returned by RunOnce when the job panicked during the cycle.
var ErrJobPanicked = errors.New("sync job panicked")

// Runner executes a Job once or repeatedly
type Runner struct {
	job          Job
	metrics      *telemetry.SyncMetrics
	tracer       trace.Tracer
	retryBackoff time.Duration
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithSyncMetrics sets the metrics cycles are reported to
func WithSyncMetrics(m *telemetry.SyncMetrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithTracer sets the tracer used for cycle spans
func WithTracer(t trace.Tracer) RunnerOption {
	return func(r *Runner) {
		r.tracer = t
	}
}

// WithRetryBackoff sets the first delay after a failed daemon cycle
func WithRetryBackoff(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.retryBackoff = d
		}
	}
}

// NewRunner creates a Runner for job
func NewRunner(job Job, opts ...RunnerOption) *Runner {
	r := &Runner{job: job, retryBackoff: DefaultRetryBackoff}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce runs a single cycle of the job
func (r *Runner) RunOnce(ctx context.Context) (err error) {
	runID := uuid.NewString()
	name := r.job.Name()
	start := time.Now()

	ctx, span := otel.StartCycle(ctx, r.tracer, name, runID)
	defer func() { otel.End(span, err) }()

	slog.InfoContext(ctx, "Starting sync cycle", "job", name, "run_id", runID)
	err = r.runJob(ctx)
	duration := time.Since(start)
	r.metrics.RecordCycle(ctx, name, duration, err == nil)

	if err != nil {
		slog.ErrorContext(ctx, "Sync cycle failed",
			"job", name, "run_id", runID, "duration", duration, "error", err)
		return err
	}
	slog.InfoContext(ctx, "Sync cycle completed", "job", name, "run_id", runID, "duration", duration)
	return nil
}

// runJob runs the job and turns a panic into an error so a daemon survives it.
func (r *Runner) runJob(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "Sync job panicked",
				"job", r.job.Name(), "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %s: %v", ErrJobPanicked, r.job.Name(), p)
		}
	}()
	return r.job.Run(ctx)
}

// RunDaemon repeats the job until ctx is cancelled.
//
// Successful cycles are followed by interval. Failed cycles are retried after an
// exponential backoff that is capped at interval and reset by the next success.
// Cancellation is the only way out and is not reported as an error.
func (r *Runner) RunDaemon(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("daemon interval must be positive")
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = min(r.retryBackoff, interval)
	retry.MaxInterval = interval
	retry.RandomizationFactor = 0
	retry.Reset()

	slog.InfoContext(ctx, "Starting sync daemon", "job", r.job.Name(), "interval", interval)
	for {
		err := r.RunOnce(ctx)
		if ctx.Err() != nil {
			break
		}

		wait := interval
		if err != nil {
			wait = retry.NextBackOff()
			slog.WarnContext(ctx, "Retrying failed sync cycle", "job", r.job.Name(), "retry_in", wait)
		} else {
			retry.Reset()
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
		if ctx.Err() != nil {
			break
		}
	}

	slog.InfoContext(ctx, "Sync daemon stopped", "job", r.job.Name())
	return nil
}
