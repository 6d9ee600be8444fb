package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/steveyegge/weft/internal/storage"
	"github.com/steveyegge/weft/internal/storage/memory"
)

func TestWrapStoreDisabledIsIdentity(t *testing.T) {
	t.Setenv("WEFT_OTEL_ENABLED", "")
	s := memory.New()
	assert.Same(t, storage.Store(s), WrapStore(s))
}

func TestInstrumentedStoreCountsTransactions(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	s := NewInstrumentedStore(memory.New(), mp.Meter("test"), tracenoop.NewTracerProvider().Tracer("test"))
	ctx := context.Background()

	require.NoError(t, s.View(ctx, func(tx storage.Tx) error { return nil }))
	boom := errors.New("boom")
	err := s.Update(ctx, func(tx storage.Tx) error { return boom })
	require.ErrorIs(t, err, boom)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), sums["weft.storage.transactions"])
	assert.Equal(t, int64(1), sums["weft.storage.errors"])
}
