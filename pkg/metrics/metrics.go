package metrics

import (
	"context"
	"net/http"
	"time"

	"k8s.io/klog/v2"
)

// Config contains configuration for the metrics system.
type Config struct {
	ServiceName    string
	ServiceVersion string
}

// Metrics coordinates multiple metric collectors.
// It implements the Collector interface and fans out calls to all registered collectors.
type Metrics struct {
	collectors []Collector
	stats      *StatsCollector
	prometheus *PrometheusCollector
}

// New creates a new Metrics instance with configured collectors.
func New(cfg Config) *Metrics {
	m := &Metrics{}

	// Stats collector - always enabled for the /stats endpoint
	m.stats = NewStatsCollector()
	m.collectors = append(m.collectors, m.stats)

	// Prometheus collector for the /metrics endpoint
	m.prometheus = NewPrometheusCollector(cfg.ServiceName, cfg.ServiceVersion)
	m.collectors = append(m.collectors, m.prometheus)

	klog.V(1).Info("Metrics collectors enabled")
	return m
}

// RecordToolCall implements the Collector interface.
// It fans out the call to all registered collectors.
func (m *Metrics) RecordToolCall(ctx context.Context, name string, duration time.Duration, err error) {
	for _, c := range m.collectors {
		c.RecordToolCall(ctx, name, duration, err)
	}
}

// RecordHTTPRequest implements the Collector interface.
// It fans out the call to all registered collectors.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	for _, c := range m.collectors {
		c.RecordHTTPRequest(ctx, method, path, statusCode, duration)
	}
}

// GetStats returns the current statistics from the StatsCollector.
// This is used by the /stats HTTP endpoint.
func (m *Metrics) GetStats() *Statistics {
	return m.stats.GetStats()
}

// PrometheusHandler returns the HTTP handler for the /metrics endpoint.
// This handler serves metrics in Prometheus text format
func (m *Metrics) PrometheusHandler() http.Handler {
	return m.prometheus.Handler()
}
