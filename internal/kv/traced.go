package kv

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "Storefront/internal/kv"

// Traced wraps a Store so that every call produces a client span tagged with
// the backend name and key.
func Traced(next Store, backend string) Store {
	return &tracedStore{
		next:    next,
		backend: backend,
		tracer:  otel.Tracer(tracerName),
	}
}

type tracedStore struct {
	next    Store
	backend string
	tracer  trace.Tracer
}

func (s *tracedStore) start(ctx context.Context, op, key string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "kv."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("kv.backend", s.backend),
			attribute.String("kv.key", key),
		),
	)
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *tracedStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := s.start(ctx, "get", key)
	v, ok, err := s.next.Get(ctx, key)
	span.SetAttributes(attribute.Bool("kv.found", ok))
	end(span, err)
	return v, ok, err
}

func (s *tracedStore) Set(ctx context.Context, key, value string) error {
	ctx, span := s.start(ctx, "set", key)
	span.SetAttributes(attribute.Int("kv.value_bytes", len(value)))
	err := s.next.Set(ctx, key, value)
	end(span, err)
	return err
}

func (s *tracedStore) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, span := s.start(ctx, "set", key)
	span.SetAttributes(
		attribute.Int("kv.value_bytes", len(value)),
		attribute.Int64("kv.ttl_ms", ttl.Milliseconds()),
	)
	err := SetTTL(ctx, s.next, key, value, ttl)
	end(span, err)
	return err
}

func (s *tracedStore) Delete(ctx context.Context, key string) error {
	ctx, span := s.start(ctx, "delete", key)
	err := s.next.Delete(ctx, key)
	end(span, err)
	return err
}

func (s *tracedStore) Ping(ctx context.Context) error {
	ctx, span := s.start(ctx, "ping", "")
	err := s.next.Ping(ctx)
	end(span, err)
	return err
}
