package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Start opens an internal span on the named tracer.
func Start(ctx context.Context, tracerName, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, opts...)
}

// End records err on span, if any, and closes it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(SafeError(err))
		span.SetStatus(codes.Error, SafeError(err).Error())
	}
	span.End()
}
