// Package metrics collects in-process metrics for signed API calls.
package metrics

import (
	"encoding/json"
	"io"
	"sort"
	"sync"
	"time"
)

// MetricType represents the type of metric being collected
type MetricType string

const (
	// TypeLatency represents timing metrics
	TypeLatency MetricType = "latency"
	// TypeCounter represents count-based metrics
	TypeCounter MetricType = "counter"
	// TypeGauge represents current value metrics
	TypeGauge MetricType = "gauge"
)

// MetricValue represents a collected metric with its type and value
type MetricValue struct {
	Type  MetricType  `json:"type"`
	Value interface{} `json:"value"`
}

// MetricsCollector manages the collection of metrics. Safe for concurrent use.
type MetricsCollector struct {
	mu      sync.RWMutex
	metrics map[string]MetricValue
}

// NewMetricsCollector creates a new MetricsCollector instance
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: make(map[string]MetricValue),
	}
}

// RecordLatency records the latest duration of an operation in milliseconds.
func (m *MetricsCollector) RecordLatency(operation string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics[operation+"_latency"] = MetricValue{
		Type:  TypeLatency,
		Value: duration.Milliseconds(),
	}
}

// IncrementCounter increments a counter metric
func (m *MetricsCollector) IncrementCounter(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	metric, exists := m.metrics[name+"_counter"]
	if !exists {
		metric = MetricValue{Type: TypeCounter, Value: int64(0)}
	}
	metric.Value = metric.Value.(int64) + 1
	m.metrics[name+"_counter"] = metric
}

// SetGauge sets a gauge metric to a specific value
func (m *MetricsCollector) SetGauge(name string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics[name+"_gauge"] = MetricValue{
		Type:  TypeGauge,
		Value: value,
	}
}

// GetMetrics returns a snapshot of all collected metrics
func (m *MetricsCollector) GetMetrics() map[string]MetricValue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	metrics := make(map[string]MetricValue, len(m.metrics))
	for k, v := range m.metrics {
		metrics[k] = v
	}
	return metrics
}

// Names returns the collected metric names in ascending order.
func (m *MetricsCollector) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.metrics))
	for k := range m.metrics {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// WriteJSON writes a snapshot of all metrics to w as one JSON object.
func (m *MetricsCollector) WriteJSON(w io.Writer) error {
	return json.NewEncoder(w).Encode(m.GetMetrics())
}

// WithLatencyTracking wraps a function with latency tracking
func (m *MetricsCollector) WithLatencyTracking(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.RecordLatency(operation, time.Since(start))
	return err
}

// Metric names recorded by the twitter client and the image pipeline.
const (
	MetricTwitterAPI      = "twitter_api"
	MetricTwitterAPIError = "twitter_api_error"
	MetricTransportError  = "twitter_transport_error"
	MetricMediaUpload     = "media_upload"
	MetricStatusUpdate    = "status_update"
	MetricUploadedBytes   = "uploaded_bytes"
	MetricCredentialsLoad = "credentials_load"
)
