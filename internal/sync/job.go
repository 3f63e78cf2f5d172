package sync

import (
	"context"
	"iter"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/kvk-connect/kvk-sync/internal/kvk"
	"github.com/kvk-connect/kvk-sync/internal/otel"
	"github.com/kvk-connect/kvk-sync/internal/store"
	"github.com/kvk-connect/kvk-sync/internal/telemetry"
	"github.com/kvk-connect/kvk-sync/internal/timewindow"
)

// Job is a single unit of sync work, run once per cycle
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// RecordFetcher retrieves single records from the registry.
// Unknown keys yield a nil record and a nil error.
type RecordFetcher interface {
	BasisProfiel(ctx context.Context, kvkNummer string) (*kvk.BasisProfiel, error)
	Vestigingen(ctx context.Context, kvkNummer string) (*kvk.Vestigingen, error)
	VestigingsProfiel(ctx context.Context, vestigingsnummer string) (*kvk.VestigingsProfiel, error)
}

// SignalSource retrieves mutation signals
type SignalSource interface {
	Signals(ctx context.Context, window timewindow.Window, pageSize int) iter.Seq2[kvk.Signaal, error]
	Signaal(ctx context.Context, signaalID string) (*kvk.Signaal, error)
}

// Result counts what happened to the keys handled by a job
type Result struct {
	Stored   int
	NotFound int
	Failed   int
}

// Add accumulates other into r
func (r *Result) Add(other Result) {
	r.Stored += other.Stored
	r.NotFound += other.NotFound
	r.Failed += other.Failed
}

// Total returns the number of keys handled
func (r Result) Total() int {
	return r.Stored + r.NotFound + r.Failed
}

// JobOption configures a job
type JobOption func(*jobOptions)

type jobOptions struct {
	metrics *telemetry.SyncMetrics
	tracer  trace.Tracer
}

// WithJobMetrics sets the metrics a job reports record outcomes to
func WithJobMetrics(m *telemetry.SyncMetrics) JobOption {
	return func(o *jobOptions) {
		o.metrics = m
	}
}

// WithJobTracer sets the tracer used for job spans
func WithJobTracer(t trace.Tracer) JobOption {
	return func(o *jobOptions) {
		o.tracer = t
	}
}

func newJobOptions(opts []JobOption) jobOptions {
	var o jobOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o jobOptions) record(ctx context.Context, job string, res Result) {
	o.metrics.RecordRecords(ctx, job, telemetry.OutcomeStored, int64(res.Stored))
	o.metrics.RecordRecords(ctx, job, telemetry.OutcomeNotFound, int64(res.NotFound))
	o.metrics.RecordRecords(ctx, job, telemetry.OutcomeFailed, int64(res.Failed))
}

// fetchFunc retrieves the record of a single key
type fetchFunc[T any] func(ctx context.Context, key string) (*T, error)

// syncKeys fetches every key and writes the records found.
// Fetch errors are counted per key; write errors and cancellation end the run.
func syncKeys[T any](
	ctx context.Context,
	job string,
	opts jobOptions,
	keys iter.Seq2[string, error],
	fetch fetchFunc[T],
	w store.Writer[T],
) (res Result, err error) {
	ctx, span := otel.StartKeys(ctx, opts.tracer, job)
	defer func() {
		otel.SetKeyCounts(span, res.Stored, res.NotFound, res.Failed)
		otel.End(span, err)
		opts.record(ctx, job, res)
	}()

	for key, keyErr := range keys {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if keyErr != nil {
			return res, keyErr
		}

		rec, err := fetch(ctx, key)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			slog.WarnContext(ctx, "Failed to fetch record", "job", job, "key", key, "error", err)
			res.Failed++
			continue
		}
		if rec == nil {
			slog.InfoContext(ctx, "Record not found, skipping", "job", job, "key", key)
			res.NotFound++
			continue
		}

		if err := w.Add(ctx, *rec); err != nil {
			return res, err
		}
		res.Stored++
	}
	return res, nil
}

// Keys adapts a slice of keys to the sequence consumed by jobs
func Keys(keys []string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, key := range keys {
			if !yield(key, nil) {
				return
			}
		}
	}
}
