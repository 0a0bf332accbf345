package observability

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Metrics records application metrics.
type Metrics interface {
	Counter(name string, value int64, tags ...Tag)
	Gauge(name string, value float64, tags ...Tag)
	Histogram(name string, value float64, tags ...Tag)
	Timing(name string, duration time.Duration, tags ...Tag)
}

// Tag is a metric label.
type Tag struct {
	Key   string
	Value string
}

// T creates a Tag.
func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// Metric names.
const (
	MetricTransitionsTotal    = "slate.transitions.total"
	MetricTransitionsRejected = "slate.transitions.rejected"
	MetricTransitionDuration  = "slate.transitions.duration"
	MetricSpecialChanges      = "slate.special_status.changes"
	MetricInvoicesCreated     = "slate.invoices.created"
	MetricInvoicesDeleted     = "slate.invoices.deleted"
	MetricSideEffectWarnings  = "slate.side_effects.warnings"
	MetricConcurrentOverwrite = "slate.projects.concurrent_overwrites"
	MetricBroadcasts          = "slate.broadcasts.total"
	MetricBroadcastFailures   = "slate.broadcasts.failures"
	MetricWebsocketClients    = "slate.realtime.clients"
	MetricOutboxPublished     = "slate.outbox.published"
	MetricOutboxFailed        = "slate.outbox.failed"
	MetricOutboxDead          = "slate.outbox.dead"
	MetricOutboxLag           = "slate.outbox.lag_seconds"
)

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Counter(string, int64, ...Tag)        {}
func (NoopMetrics) Gauge(string, float64, ...Tag)        {}
func (NoopMetrics) Histogram(string, float64, ...Tag)    {}
func (NoopMetrics) Timing(string, time.Duration, ...Tag) {}

// InMemoryMetrics keeps values in maps, for tests and the CLI.
type InMemoryMetrics struct {
	mu         sync.RWMutex
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
	timings    map[string][]time.Duration
}

// NewInMemoryMetrics creates an empty collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		counters:   map[string]int64{},
		gauges:     map[string]float64{},
		histograms: map[string][]float64{},
		timings:    map[string][]time.Duration{},
	}
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[formatKey(name, tags)] += value
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[formatKey(name, tags)] = value
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := formatKey(name, tags)
	m.histograms[key] = append(m.histograms[key], value)
}

func (m *InMemoryMetrics) Timing(name string, d time.Duration, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := formatKey(name, tags)
	m.timings[key] = append(m.timings[key], d)
}

// CounterValue returns the counter for name and exactly these tags.
func (m *InMemoryMetrics) CounterValue(name string, tags ...Tag) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[formatKey(name, tags)]
}

// GaugeValue returns the gauge for name and exactly these tags.
func (m *InMemoryMetrics) GaugeValue(name string, tags ...Tag) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[formatKey(name, tags)]
}

// Timings returns the recorded durations.
func (m *InMemoryMetrics) Timings(name string, tags ...Tag) []time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]time.Duration(nil), m.timings[formatKey(name, tags)]...)
}

// Snapshot returns all counters keyed by name and tags.
func (m *InMemoryMetrics) Snapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		out[k] = v
	}
	return out
}

// formatKey is order-insensitive in tags.
func formatKey(name string, tags []Tag) string {
	if len(tags) == 0 {
		return name
	}
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = t.Key + "=" + t.Value
	}
	sort.Strings(parts)
	return name + ":" + strings.Join(parts, ":")
}
