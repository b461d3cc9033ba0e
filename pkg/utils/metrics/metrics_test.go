package metrics

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestIncrementCounterConcurrent(t *testing.T) {
	m := NewMetricsCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementCounter(MetricTwitterAPI)
		}()
	}
	wg.Wait()

	got := m.GetMetrics()[MetricTwitterAPI+"_counter"]
	if got.Type != TypeCounter || got.Value.(int64) != 50 {
		t.Errorf("counter = %+v, want 50", got)
	}
}

func TestWithLatencyTracking(t *testing.T) {
	m := NewMetricsCollector()
	wantErr := errors.New("boom")

	err := m.WithLatencyTracking(MetricStatusUpdate, func() error {
		time.Sleep(2 * time.Millisecond)
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}

	got, ok := m.GetMetrics()[MetricStatusUpdate+"_latency"]
	if !ok || got.Type != TypeLatency {
		t.Fatalf("latency metric missing: %+v", m.GetMetrics())
	}
}

func TestNamesAndWriteJSON(t *testing.T) {
	m := NewMetricsCollector()
	m.SetGauge(MetricUploadedBytes, 42)
	m.IncrementCounter(MetricMediaUpload)

	want := []string{MetricMediaUpload + "_counter", MetricUploadedBytes + "_gauge"}
	if diff := cmp.Diff(want, m.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}

	var buf bytes.Buffer
	if err := m.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	var body map[string]MetricValue
	if err := json.NewDecoder(&buf).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body[MetricUploadedBytes+"_gauge"].Value.(float64) != 42 {
		t.Errorf("gauge = %v", body[MetricUploadedBytes+"_gauge"])
	}
}
