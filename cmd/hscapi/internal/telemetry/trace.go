package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts a span on the named tracer.
//
//	ctx, span := telemetry.StartSpan(ctx, "hscapi/services/iam", "iam.Reconcile",
//	    attribute.Int(telemetry.AttrIAMGroupCount, n),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records err on the span and marks the span failed.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds a named event to the span.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Span attribute keys.
const (
	AttrPrincipalID   = "principal.id"
	AttrPrincipalRole = "principal.role"

	AttrIAMGroup         = "iam.group"
	AttrIAMGroupCount    = "iam.group_count"
	AttrIAMGrantsAdded   = "iam.grants_added"
	AttrIAMGrantsRemoved = "iam.grants_removed"
	AttrIAMSkipped       = "iam.skipped"
	AttrIAMTargetRole    = "iam.target_role"
	AttrIAMComponent     = "iam.component"

	AttrRetentionCutoff = "retention.cutoff"
	AttrRetentionDryRun = "retention.dry_run"
)
