package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nypl/cancel-request-consumer/internal/core/domain"
)

func TestMonitor_Status(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		failures  int
		expect    SystemStatus
	}{
		{"healthy", true, 0, StatusHealthy},
		{"degraded after a failure", true, 1, StatusDegraded},
		{"critical after repeated failures", true, criticalFailures, StatusCritical},
		{"critical when disconnected", false, 0, StatusCritical},
	}

	for _, tt := range tests {
		connected := tt.connected
		m := NewMonitor(func() bool { return connected })
		m.RecordBatch(domain.BatchStatus{BatchID: "ok", Outcome: "ack"})
		for i := 0; i < tt.failures; i++ {
			m.RecordBatch(domain.BatchStatus{BatchID: "bad", Outcome: "redeliver", Error: "boom"})
		}

		report := m.CheckHealth()
		if report.SystemStatus != tt.expect {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.expect, report.SystemStatus)
		}
		if report.BatchesHandled != tt.failures+1 {
			t.Errorf("%s: expected %d batches, got %d", tt.name, tt.failures+1, report.BatchesHandled)
		}
	}
}

func TestMonitor_SuccessResetsFailures(t *testing.T) {
	m := NewMonitor(nil)
	m.RecordBatch(domain.BatchStatus{Error: "boom"})
	m.RecordBatch(domain.BatchStatus{Outcome: "ack"})

	report := m.CheckHealth()
	if report.SystemStatus != StatusHealthy || report.ConsecutiveFailures != 0 {
		t.Fatalf("expected healthy with no failures, got %+v", report)
	}
	if report.LastBatch == nil || report.LastBatch.Outcome != "ack" {
		t.Fatalf("unexpected last batch: %+v", report.LastBatch)
	}
}

func TestServer_Health(t *testing.T) {
	connected := true
	m := NewMonitor(func() bool { return connected })
	srv := NewServer(m, 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	connected = false
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != string(StatusCritical) {
		t.Errorf("unexpected status %q", body["status"])
	}
}

func TestServer_Detailed(t *testing.T) {
	m := NewMonitor(nil)
	m.RecordBatch(domain.BatchStatus{BatchID: "b-1", Outcome: "ack", Published: 3})

	rec := httptest.NewRecorder()
	NewServer(m, 0).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

	var report HealthReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.LastBatch == nil || report.LastBatch.Published != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
}
