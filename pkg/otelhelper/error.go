package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RecordFailure marks the span of a run as failed. The attributes are attached
// to the failure event, the run status to the span itself.
func RecordFailure(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(RunStatusKey, "error"))
	span.AddEvent("run_failed", trace.WithAttributes(attrs...))
}
