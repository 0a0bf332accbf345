package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const instrumentationScope = "github.com/felixgeelhaar/slate"

// InitMeterProvider installs the global OTel meter provider for exporter
// ("stdout" or "none") and returns its shutdown function.
func InitMeterProvider(ctx context.Context, exporter, serviceName, version string, interval time.Duration) (func(context.Context) error, error) {
	switch exporter {
	case "", "none":
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return func(context.Context) error { return nil }, nil
	case "stdout":
	default:
		return nil, fmt.Errorf("unknown metrics exporter %q", exporter)
	}

	exp, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("stdout metric exporter: %w", err)
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

// OTelMetrics implements Metrics on an OTel meter. Instruments are created
// lazily and cached by name.
type OTelMetrics struct {
	meter metric.Meter

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	gauges     map[string]metric.Float64Gauge
	histograms map[string]metric.Float64Histogram
}

// NewOTelMetrics uses the global meter provider. Call it after InitMeterProvider.
func NewOTelMetrics() *OTelMetrics {
	return NewOTelMetricsWithMeter(otel.Meter(instrumentationScope))
}

// NewOTelMetricsWithMeter uses meter directly; handy in tests.
func NewOTelMetricsWithMeter(meter metric.Meter) *OTelMetrics {
	return &OTelMetrics{
		meter:      meter,
		counters:   map[string]metric.Int64Counter{},
		gauges:     map[string]metric.Float64Gauge{},
		histograms: map[string]metric.Float64Histogram{},
	}
}

func (m *OTelMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	c, ok := m.counters[name]
	if !ok {
		var err error
		if c, err = m.meter.Int64Counter(name); err != nil {
			m.mu.Unlock()
			return
		}
		m.counters[name] = c
	}
	m.mu.Unlock()
	c.Add(context.Background(), value, metric.WithAttributes(attrs(tags)...))
}

func (m *OTelMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	g, ok := m.gauges[name]
	if !ok {
		var err error
		if g, err = m.meter.Float64Gauge(name); err != nil {
			m.mu.Unlock()
			return
		}
		m.gauges[name] = g
	}
	m.mu.Unlock()
	g.Record(context.Background(), value, metric.WithAttributes(attrs(tags)...))
}

func (m *OTelMetrics) Histogram(name string, value float64, tags ...Tag) {
	h := m.histogram(name, "")
	if h == nil {
		return
	}
	h.Record(context.Background(), value, metric.WithAttributes(attrs(tags)...))
}

// Timing records milliseconds on a histogram.
func (m *OTelMetrics) Timing(name string, d time.Duration, tags ...Tag) {
	h := m.histogram(name, "ms")
	if h == nil {
		return
	}
	h.Record(context.Background(), float64(d.Microseconds())/1000, metric.WithAttributes(attrs(tags)...))
}

func (m *OTelMetrics) histogram(name, unit string) metric.Float64Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.histograms[name]; ok {
		return h
	}
	var opts []metric.Float64HistogramOption
	if unit != "" {
		opts = append(opts, metric.WithUnit(unit))
	}
	h, err := m.meter.Float64Histogram(name, opts...)
	if err != nil {
		return nil
	}
	m.histograms[name] = h
	return h
}

func attrs(tags []Tag) []attribute.KeyValue {
	out := make([]attribute.KeyValue, len(tags))
	for i, t := range tags {
		out[i] = attribute.String(t.Key, t.Value)
	}
	return out
}
