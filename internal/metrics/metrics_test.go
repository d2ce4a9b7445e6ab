package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから指定名のメトリクスファミリーを取得する。
func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labelValue は指定ラベル値を持つメトリクスを返す。
func labelValue(mf *dto.MetricFamily, label, value string) *dto.Metric {
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				return m
			}
		}
	}
	return nil
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordTermination_CountsByCause は終了要因別カウンタが増加することを検証する。
func TestRecordTermination_CountsByCause(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTermination("timeout")
	c.RecordTermination("timeout")
	c.RecordTermination("external-button")

	mf := findMetric(t, reg, "arcadekiosk_session_terminations_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	if m := labelValue(mf, "cause", "timeout"); m == nil || m.GetCounter().GetValue() != 2 {
		t.Errorf("terminations{cause=timeout} = %v, want 2", m)
	}
	if m := labelValue(mf, "cause", "external-button"); m == nil || m.GetCounter().GetValue() != 1 {
		t.Errorf("terminations{cause=external-button} = %v, want 1", m)
	}
}

// TestRecordFallback_LabelsResult はフォールバック結果がラベルで区別されることを検証する。
func TestRecordFallback_LabelsResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFallback("launch", true)
	c.RecordFallback("launch", false)
	c.RecordFallback("stop", true)

	mf := findMetric(t, reg, "arcadekiosk_fallback_invocations_total")
	if len(mf.GetMetric()) != 3 {
		t.Errorf("expected 3 label combinations, got %d", len(mf.GetMetric()))
	}
}

// TestRecordRating_ObservesHistogram は評価値がヒストグラムに記録されることを検証する。
func TestRecordRating_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRating(5)
	c.RecordRating(3)

	h := findMetric(t, reg, "arcadekiosk_ratings").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	if h.GetSampleSum() != 8 {
		t.Errorf("sample_sum = %v, want 8", h.GetSampleSum())
	}
}

// TestSetRemainingSeconds_SetsGauge は残り秒数ゲージが更新されることを検証する。
func TestSetRemainingSeconds_SetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetRemainingSeconds(480)
	c.SetRemainingSeconds(479)

	val := findMetric(t, reg, "arcadekiosk_countdown_remaining_seconds").GetMetric()[0].GetGauge().GetValue()
	if val != 479 {
		t.Errorf("remaining_seconds = %v, want 479", val)
	}
}

// TestRecordStaleSessionsClosed_AddsCount は自動完了件数が加算されることを検証する。
func TestRecordStaleSessionsClosed_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStaleSessionsClosed(2)
	c.RecordStaleSessionsClosed(0)
	c.RecordStaleSessionsClosed(1)

	val := findMetric(t, reg, "arcadekiosk_stale_sessions_closed_total").GetMetric()[0].GetCounter().GetValue()
	if val != 3 {
		t.Errorf("stale_sessions_closed_total = %v, want 3", val)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionOpened("Elven Assassin")
	c.RecordTriggerIgnored("interrupt")
	c.RecordTransportFailure("launch")
	c.RecordStoreError("open_session")

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
		"arcadekiosk_sessions_opened_total",
		"arcadekiosk_triggers_ignored_total",
		"arcadekiosk_launcher_failures_total",
		"arcadekiosk_store_errors_total",
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
	var _ MetricsCollector = NopCollector{}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordStaleSessionsClosed(1)
	c2.RecordStaleSessionsClosed(2)

	val1 := findMetric(t, reg1, "arcadekiosk_stale_sessions_closed_total").GetMetric()[0].GetCounter().GetValue()
	val2 := findMetric(t, reg2, "arcadekiosk_stale_sessions_closed_total").GetMetric()[0].GetCounter().GetValue()

	if val1 != 1 {
		t.Errorf("reg1 = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 = %v, want 2", val2)
	}
}
