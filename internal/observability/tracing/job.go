package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const jobTracerName = "housebill/billing"

// StartJob opens an internal span covering one billing run. The returned
// func ends the span and marks it failed when err is non-nil.
func StartJob(ctx context.Context, name, jobID, month string) (context.Context, func(err error)) {
	ctx, span := otel.Tracer(jobTracerName).Start(ctx, "billing.job "+name, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(SafeAttributes(
		attribute.String("job_id", jobID),
		attribute.String("billing_month", month),
	)...)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(SafeError(err))
			span.SetStatus(codes.Error, "billing job failed")
		}
		span.End()
	}
}
