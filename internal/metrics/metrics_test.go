package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// findCounter はレジストリから指定名のメトリクスの最初の値を取り出す。
func findCounter(t *testing.T, reg *prometheus.Registry, name string) (float64, bool) {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue(), true
		}
	}
	return 0, false
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordUserEvents_IncrementCounters はユーザー操作のカウンタが増加することを検証する。
func TestRecordUserEvents_IncrementCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUserCreated()
	c.RecordUserCreated()
	c.RecordUserUpdated()
	c.RecordUserDeleted()
	c.RecordDuplicateEmail()
	c.RecordDuplicateEmail()
	c.RecordDuplicateEmail()

	tests := []struct {
		name string
		want float64
	}{
		{"userapi_users_created_total", 2},
		{"userapi_users_updated_total", 1},
		{"userapi_users_deleted_total", 1},
		{"userapi_duplicate_email_rejections_total", 3},
	}
	for _, tt := range tests {
		val, found := findCounter(t, reg, tt.name)
		if !found {
			t.Errorf("%s metric not found", tt.name)
			continue
		}
		if val != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, val, tt.want)
		}
	}
}

// TestRecordHTTPRequest_LabelsAndHistogram はHTTPリクエストがラベル付きで記録されることを検証する。
func TestRecordHTTPRequest_LabelsAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(http.MethodGet, "/api/users/{id}", 200, 100*time.Millisecond)
	c.RecordHTTPRequest(http.MethodGet, "/api/users/{id}", 200, 2*time.Second)
	c.RecordHTTPRequest(http.MethodGet, "/api/users/{id}", 404, time.Millisecond)

	if got := testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/api/users/{id}", "200")); got != 2 {
		t.Errorf("http_requests_total{200} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/api/users/{id}", "404")); got != 1 {
		t.Errorf("http_requests_total{404} = %v, want 1", got)
	}

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range metrics {
		if mf.GetName() == "userapi_http_request_duration_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 3 {
				t.Errorf("sample_count = %d, want 3", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 + 0.001 ≒ 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("userapi_http_request_duration_seconds metric not found")
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUserCreated()
	c.RecordDuplicateEmail()
	c.RecordHTTPRequest(http.MethodPost, "/api/users", 201, 5*time.Millisecond)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"userapi_users_created_total",
		"userapi_duplicate_email_rejections_total",
		"userapi_http_requests_total",
		"userapi_http_request_duration_seconds",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordUserCreated()
	c2.RecordUserCreated()
	c2.RecordUserCreated()

	val1, _ := findCounter(t, reg1, "userapi_users_created_total")
	val2, _ := findCounter(t, reg2, "userapi_users_created_total")

	if val1 != 1 {
		t.Errorf("reg1 users_created = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 users_created = %v, want 2", val2)
	}
}
