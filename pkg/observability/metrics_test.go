package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInMemoryMetrics(t *testing.T) {
	m := NewInMemoryMetrics()

	m.Counter(MetricTransitionsTotal, 1, T("to", "accepted"), T("kind", "forward"))
	m.Counter(MetricTransitionsTotal, 2, T("kind", "forward"), T("to", "accepted"))
	m.Gauge(MetricWebsocketClients, 3)
	m.Timing(MetricTransitionDuration, 5*time.Millisecond)

	assert.Equal(t, int64(3), m.CounterValue(MetricTransitionsTotal, T("to", "accepted"), T("kind", "forward")))
	assert.Equal(t, float64(3), m.GaugeValue(MetricWebsocketClients))
	assert.Len(t, m.Timings(MetricTransitionDuration), 1)
	assert.Len(t, m.Snapshot(), 1)
}

func TestNoopMetrics(t *testing.T) {
	var m Metrics = NoopMetrics{}
	assert.NotPanics(t, func() {
		m.Counter("x", 1)
		m.Gauge("x", 1)
		m.Histogram("x", 1)
		m.Timing("x", time.Second)
	})
}

func TestOTelMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m := NewOTelMetricsWithMeter(provider.Meter("test"))
	m.Counter(MetricInvoicesCreated, 1, T("currency", "EUR"))
	m.Counter(MetricInvoicesCreated, 1, T("currency", "EUR"))
	m.Timing(MetricTransitionDuration, 12*time.Millisecond)
	m.Gauge(MetricWebsocketClients, 4)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := map[string]metricdata.Metrics{}
	for _, metric := range rm.ScopeMetrics[0].Metrics {
		byName[metric.Name] = metric
	}

	sum, ok := byName[MetricInvoicesCreated].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)

	_, ok = byName[MetricTransitionDuration].Data.(metricdata.Histogram[float64])
	assert.True(t, ok)
	_, ok = byName[MetricWebsocketClients].Data.(metricdata.Gauge[float64])
	assert.True(t, ok)
}

func TestInitMeterProvider(t *testing.T) {
	shutdown, err := InitMeterProvider(context.Background(), "none", "slate", "test", 0)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = InitMeterProvider(context.Background(), "prometheus", "slate", "test", 0)
	assert.Error(t, err)
}
