package observe

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Stage wraps one pipeline stage, agent turn, or tool call in a span,
// records its duration into histogram (when non-nil), and logs completion
// with trace correlation. The span status reflects the returned error.
//
// Typical usage:
//
//	err := observe.Stage(ctx, "stt.transcribe", metrics.STTDuration, func(ctx context.Context) error {
//	    return session.SendAudio(frame)
//	})
func Stage(ctx context.Context, name string, histogram metric.Float64Histogram, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("fae.stage", name)),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	if histogram != nil {
		histogram.Record(ctx, duration.Seconds(),
			metric.WithAttributes(attribute.String("stage", name)),
		)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Redact(err.Error()))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	slog.LogAttrs(ctx, slog.LevelDebug, "stage completed",
		slog.String("stage", name),
		slog.String("trace_id", CorrelationID(ctx)),
		slog.Duration("duration", duration),
		slog.Bool("ok", err == nil),
	)
	return err
}

// TimeStage is the non-failing variant of [Stage] for stages whose result is
// delivered out of band (streaming channels). It returns a stop function the
// caller invokes when the stage finishes.
func TimeStage(ctx context.Context, name string, histogram metric.Float64Histogram) (context.Context, func()) {
	ctx, span := StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("fae.stage", name)),
	)
	start := time.Now()
	return ctx, func() {
		if histogram != nil {
			histogram.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(attribute.String("stage", name)),
			)
		}
		span.End()
	}
}
