package metrics

import (
	"context"
	"sync"
	"time"
)

// Statistics is the snapshot served by the /stats endpoint.
type Statistics struct {
	StartTime        time.Time        `json:"start_time"`
	UptimeSeconds    int64            `json:"uptime_seconds"`
	TotalToolCalls   int64            `json:"total_tool_calls"`
	ToolCallErrors   int64            `json:"tool_call_errors"`
	ToolCallsByName  map[string]int64 `json:"tool_calls_by_name"`
	ToolErrorsByName map[string]int64 `json:"tool_errors_by_name"`
	HTTPRequests     int64            `json:"http_requests"`
	HTTPErrors       int64            `json:"http_errors"`
}

// StatsCollector keeps in-memory counters for the /stats endpoint.
type StatsCollector struct {
	mu sync.Mutex

	startTime        time.Time
	totalToolCalls   int64
	toolCallErrors   int64
	toolCallsByName  map[string]int64
	toolErrorsByName map[string]int64
	httpRequests     int64
	httpErrors       int64
}

var _ Collector = (*StatsCollector)(nil)

func NewStatsCollector() *StatsCollector {
	return &StatsCollector{
		startTime:        time.Now(),
		toolCallsByName:  make(map[string]int64),
		toolErrorsByName: make(map[string]int64),
	}
}

// RecordToolCall implements the Collector interface.
func (c *StatsCollector) RecordToolCall(_ context.Context, name string, _ time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalToolCalls++
	c.toolCallsByName[name]++
	if err != nil {
		c.toolCallErrors++
		c.toolErrorsByName[name]++
	}
}

// RecordHTTPRequest implements the Collector interface.
func (c *StatsCollector) RecordHTTPRequest(_ context.Context, _, _ string, statusCode int, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.httpRequests++
	if statusCode >= 500 {
		c.httpErrors++
	}
}

// GetStats returns a copy of the current counters.
func (c *StatsCollector) GetStats() *Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := &Statistics{
		StartTime:        c.startTime,
		UptimeSeconds:    int64(time.Since(c.startTime).Seconds()),
		TotalToolCalls:   c.totalToolCalls,
		ToolCallErrors:   c.toolCallErrors,
		ToolCallsByName:  make(map[string]int64, len(c.toolCallsByName)),
		ToolErrorsByName: make(map[string]int64, len(c.toolErrorsByName)),
		HTTPRequests:     c.httpRequests,
		HTTPErrors:       c.httpErrors,
	}
	for name, count := range c.toolCallsByName {
		stats.ToolCallsByName[name] = count
	}
	for name, count := range c.toolErrorsByName {
		stats.ToolErrorsByName[name] = count
	}
	return stats
}
