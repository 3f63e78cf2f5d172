// Package otel provides OpenTelemetry instrumentation utilities for the sync jobs.
package otel

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by all spans.
const (
	AttrJob              = attribute.Key("sync.job")
	AttrRunID            = attribute.Key("sync.run_id")
	AttrStored           = attribute.Key("sync.stored")
	AttrNotFound         = attribute.Key("sync.not_found")
	AttrFailed           = attribute.Key("sync.failed")
	AttrCancelled        = attribute.Key("sync.cancelled")
	AttrKvKNummer        = attribute.Key("kvk.nummer")
	AttrVestigingsnummer = attribute.Key("kvk.vestigingsnummer")
	AttrPage             = attribute.Key("pagination.page")
	AttrPageSize         = attribute.Key("pagination.limit")
	AttrResultCount      = attribute.Key("result.count")
	AttrWindowFrom       = attribute.Key("window.from")
	AttrWindowTo         = attribute.Key("window.to")
)

// Span names.
const (
	SpanCycle  = "sync.cycle"
	SpanWindow = "sync.mutaties.window"
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns the span
// already carried by ctx (a no-op span when there is none).
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// StartCycle starts the root span of one sync cycle.
func StartCycle(ctx context.Context, tracer trace.Tracer, job, runID string) (context.Context, trace.Span) {
	return StartSpan(ctx, tracer, SpanCycle,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(AttrJob.String(job), AttrRunID.String(runID)))
}

// StartWindow starts the span covering one mutation window. Bounds are recorded in UTC.
func StartWindow(ctx context.Context, tracer trace.Tracer, from, to time.Time) (context.Context, trace.Span) {
	return StartSpan(ctx, tracer, SpanWindow,
		trace.WithAttributes(
			AttrWindowFrom.String(from.UTC().Format(time.RFC3339)),
			AttrWindowTo.String(to.UTC().Format(time.RFC3339)),
		))
}

// StartKeys starts the span of a per-key profile run such as sync.basisprofiel.keys.
func StartKeys(ctx context.Context, tracer trace.Tracer, job string) (context.Context, trace.Span) {
	return StartSpan(ctx, tracer, "sync."+job+".keys", trace.WithAttributes(AttrJob.String(job)))
}

// SetKeyCounts records the outcome counters of a per-key run.
func SetKeyCounts(span trace.Span, stored, notFound, failed int) {
	if span == nil {
		return
	}
	span.SetAttributes(
		AttrStored.Int(stored),
		AttrNotFound.Int(notFound),
		AttrFailed.Int(failed),
	)
}

// RecordError records an error on a span and sets the span status to error.
// It safely handles nil spans and nil errors.
// The status description stays generic so connection strings and API keys never
// end up in the span status; details remain on the recorded error event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}

// End finishes span with the outcome of the run. A cancelled context marks the
// span with sync.cancelled instead of an error status: daemons stop that way.
func End(span trace.Span, err error) {
	if span == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(AttrCancelled.Bool(true))
	} else {
		RecordError(span, err)
	}
	span.End()
}
