package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector exports tool call and HTTP request metrics in
// Prometheus text format on its own registry, keeping the default registry
// free of duplicate registrations when servers are created per test.
type PrometheusCollector struct {
	registry *prometheus.Registry

	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

var _ Collector = (*PrometheusCollector)(nil)

func NewPrometheusCollector(serviceName, serviceVersion string) *PrometheusCollector {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{
		"service": serviceName,
		"version": serviceVersion,
	}

	c := &PrometheusCollector{
		registry: registry,
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "mcp_tool_calls_total",
			Help:        "Total number of MCP tool calls.",
			ConstLabels: constLabels,
		}, []string{"tool", "status"}),
		toolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "mcp_tool_call_duration_seconds",
			Help:        "Duration of MCP tool calls in seconds.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"tool"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests.",
			ConstLabels: constLabels,
		}, []string{"method", "path", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "Duration of HTTP requests in seconds.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	registry.MustRegister(c.toolCalls, c.toolCallDuration, c.httpRequests, c.httpDuration)
	return c
}

// RecordToolCall implements the Collector interface.
func (c *PrometheusCollector) RecordToolCall(_ context.Context, name string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.toolCalls.WithLabelValues(name, status).Inc()
	c.toolCallDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// RecordHTTPRequest implements the Collector interface.
func (c *PrometheusCollector) RecordHTTPRequest(_ context.Context, method, path string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler serves the registry in Prometheus text format.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
