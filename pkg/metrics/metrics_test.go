package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewManager(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true

	m := NewManager(cfg)
	if m == nil {
		t.Fatal("NewManager returned nil")
	}

	if !m.Enabled() {
		t.Error("Expected metrics to be enabled")
	}
}

func TestNewManager_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false

	m := NewManager(cfg)
	if m.Enabled() {
		t.Error("Expected metrics to be disabled")
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewManager(DefaultConfig())

	// Record some metrics
	m.IncQueueDepth("decode")
	m.RecordWaitDuration("decode", 3*time.Millisecond)
	m.RecordTask("decode", "image", "success")
	m.RecordTransfer("success", 120*time.Millisecond, 4096)
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	expectedMetrics := []string{
		"reactor_queue_depth",
		"reactor_wait_duration_seconds",
		"reactor_tasks_total",
		"transfer_total",
		"transfer_duration_seconds",
		"transfer_bytes_total",
		"cache_lookups_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(body, metric) {
			t.Errorf("Expected metric %s not found in output", metric)
		}
	}
}

func TestMetricsHandler_Disabled(t *testing.T) {
	m := NoOpManager()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 when disabled, got %d", w.Code)
	}
}

func TestNoOpManager(t *testing.T) {
	m := NoOpManager()

	if m.Enabled() {
		t.Error("NoOpManager should not be enabled")
	}

	// These should not panic
	m.IncQueueDepth("decode")
	m.DecQueueDepth("decode")
	m.RecordWaitDuration("decode", time.Second)
	m.RecordTask("decode", "image", "failure")
	m.RecordTransfer("failure", time.Second, 0)
	m.IncActiveTransfers()
	m.DecActiveTransfers()
	m.RecordCacheLookup(false)
}

func TestQueueDepthGauge(t *testing.T) {
	m := NewManager(DefaultConfig())

	for i := 0; i < 5; i++ {
		m.IncQueueDepth("fetch")
	}
	m.DecQueueDepth("fetch")
	m.DecQueueDepth("fetch")

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), `reactor_queue_depth{reactor="fetch"} 3`) {
		t.Error("Expected fetch queue depth of 3")
	}
}

func BenchmarkRecordTask(b *testing.B) {
	m := NewManager(DefaultConfig())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.RecordTask("decode", "image", "success")
	}
}

func BenchmarkNoOpRecording(b *testing.B) {
	m := NoOpManager()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.RecordTask("decode", "image", "success")
		m.RecordTransfer("success", time.Millisecond, 1)
	}
}
