package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/steveyegge/weft/internal/storage"
)

const storageScopeName = "github.com/steveyegge/weft/storage"

// InstrumentedStore wraps storage.Store with OTel tracing and metrics.
// Every transaction gets a span and is counted in weft.storage.* metrics;
// the time spent waiting for the store lock is part of the duration.
// Use WrapStore to create one; it returns the original store unchanged when
// telemetry is disabled.
type InstrumentedStore struct {
	inner  storage.Store
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapStore returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is with zero overhead.
func WrapStore(s storage.Store) storage.Store {
	if !Enabled() {
		return s
	}
	return NewInstrumentedStore(s, Meter(storageScopeName), Tracer(storageScopeName))
}

// NewInstrumentedStore wraps s using the given meter and tracer regardless of
// the WEFT_OTEL_ENABLED switch.
func NewInstrumentedStore(s storage.Store, m metric.Meter, tracer trace.Tracer) *InstrumentedStore {
	ops, _ := m.Int64Counter("weft.storage.transactions",
		metric.WithDescription("Total store transactions executed"),
	)
	dur, _ := m.Float64Histogram("weft.storage.transaction.duration",
		metric.WithDescription("Store transaction duration in milliseconds, lock wait included"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("weft.storage.errors",
		metric.WithDescription("Total failed or rolled back store transactions"),
	)
	return &InstrumentedStore{
		inner:  s,
		tracer: tracer,
		ops:    ops,
		dur:    dur,
		errs:   errs,
	}
}

// op starts a span and records a metric for the named transaction kind.
func (s *InstrumentedStore) op(ctx context.Context, name string) (context.Context, trace.Span, time.Time, []attribute.KeyValue) {
	attrs := []attribute.KeyValue{attribute.String("weft.storage.op", name)}
	ctx, span := s.tracer.Start(ctx, "storage."+name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(attrs...))
	return ctx, span, time.Now(), attrs
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStore) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs []attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func (s *InstrumentedStore) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	ctx, span, t, attrs := s.op(ctx, "update")
	err := s.inner.Update(ctx, fn)
	s.done(ctx, span, t, err, attrs)
	return err
}

func (s *InstrumentedStore) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	ctx, span, t, attrs := s.op(ctx, "view")
	err := s.inner.View(ctx, fn)
	s.done(ctx, span, t, err, attrs)
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
