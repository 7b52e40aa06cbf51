// Package tracing wraps the OpenTelemetry spans rcache's facade methods and
// flush engine start, adapted from the gRPC interceptor attribute pattern
// (rpc.service/rpc.method) to cache attributes (rcache.op/rcache.key).
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the OpenTelemetry wiring used to create spans. A nil
// *Config (or a zero-value Config with a nil TracerProvider) falls back to
// the global provider via [otel.GetTracerProvider].
type Config struct {
	// TracerProvider supplies the Tracer used to create spans. When nil,
	// spans are created from [otel.GetTracerProvider] at the time each
	// span starts (see rcache.WithTracerProvider).
	TracerProvider trace.TracerProvider
}

func (c *Config) tracer() trace.Tracer {
	var tp trace.TracerProvider
	if c != nil {
		tp = c.TracerProvider
	}

	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return tp.Tracer("github.com/r2cache/rcache")
}

// StartOp starts a span named "rcache.<op>" with an rcache.op attribute and,
// when key is non-empty, an rcache.key attribute. The returned function
// ends the span, recording err (if any) as the span status.
func StartOp(ctx context.Context, cfg *Config, op, key string) (context.Context, func(err error)) {
	attrs := []attribute.KeyValue{attribute.String("rcache.op", op)}
	if key != "" {
		attrs = append(attrs, attribute.String("rcache.key", key))
	}

	ctx, span := cfg.tracer().Start(ctx, "rcache."+op, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		recordStatus(span, err)
		span.End()
	}
}

func recordStatus(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("rcache.result", "error"))

		return
	}

	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String("rcache.result", "ok"))
}
