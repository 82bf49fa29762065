package xmetrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/omeyang/xtenancy/pkg/context/xctx"
)

func newTestObserver(t *testing.T) (Observer, *tracetest.InMemoryExporter, *sdkmetric.ManualReader) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	obs, err := NewOTelObserver(WithTracerProvider(tp), WithMeterProvider(mp), WithInstrumentationName("test"))
	require.NoError(t, err)
	return obs, exporter, reader
}

func TestOTelObserver_Span(t *testing.T) {
	obs, exporter, _ := newTestObserver(t)

	ctx, _ := xctx.WithTenantID(context.Background(), "dog-club")
	_, span := Start(ctx, obs, SpanOptions{
		Component: "xpool",
		Operation: "provision",
		Kind:      KindClient,
		Attrs:     []Attr{Int("models", 3), Duration("timeout", time.Second)},
	})
	span.End(Result{Err: assert.AnError})
	span.End(Result{})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	got := spans[0]
	assert.Equal(t, "xpool.provision", got.Name)
	assert.Equal(t, otelcodes.Error, got.Status.Code)
	assert.Contains(t, got.Attributes, attribute.String(AttrTenant, "dog-club"))
	assert.Contains(t, got.Attributes, attribute.Int("models", 3))
	assert.Contains(t, got.Attributes, attribute.Int64("timeout", int64(time.Second)))
}

func TestOTelObserver_ExplicitTenantWins(t *testing.T) {
	obs, exporter, _ := newTestObserver(t)

	ctx, _ := xctx.WithTenantID(context.Background(), "from-ctx")
	_, span := Start(ctx, obs, SpanOptions{Component: "c", Operation: "o", Attrs: []Attr{Tenant("explicit")}})
	span.End(Result{})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Attributes, attribute.String(AttrTenant, "explicit"))
	assert.NotContains(t, spans[0].Attributes, attribute.String(AttrTenant, "from-ctx"))
}

func TestOTelObserver_Metrics(t *testing.T) {
	obs, _, reader := newTestObserver(t)

	for range 3 {
		_, span := Start(context.Background(), obs, SpanOptions{Component: "xpool", Operation: "get"})
		span.End(Result{})
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != metricOperationTotal {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	assert.Equal(t, int64(3), total)
}

func TestOTelObserver_UnknownNames(t *testing.T) {
	obs, exporter, _ := newTestObserver(t)
	_, span := Start(context.Background(), obs, SpanOptions{})
	span.End(Result{})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "unknown.unknown", spans[0].Name)
	assert.Equal(t, otelcodes.Ok, spans[0].Status.Code)
}
