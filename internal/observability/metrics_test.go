package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveEvaluationRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}

	collector.ObserveEvaluation("MF1", 20*time.Millisecond, nil)
	collector.ObserveEvaluation("MF1", 5*time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(collector.Evaluations.WithLabelValues("MF1", "ok")); got != 1 {
		t.Fatalf("bolocalc_evaluations_total{outcome=ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Evaluations.WithLabelValues("MF1", "error")); got != 1 {
		t.Fatalf("bolocalc_evaluations_total{outcome=error} = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "bolocalc_evaluation_duration_seconds", map[string]string{
		"channel": "MF1",
	}); count != 2 {
		t.Fatalf("bolocalc_evaluation_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestFallbackAndChangeCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}
	collector.ObserveReadoutFallback("MF2")
	collector.ObserveReadoutFallback("MF2")
	collector.ObserveParameterChange("Psat")

	if got := testutil.ToFloat64(collector.ReadoutFallbacks.WithLabelValues("MF2")); got != 2 {
		t.Fatalf("bolocalc_readout_fallbacks_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.ParameterChanges.WithLabelValues("Psat")); got != 1 {
		t.Fatalf("bolocalc_parameter_changes_total = %v, want 1", got)
	}

	var nilCollector *EngineCollector
	nilCollector.ObserveEvaluation("x", time.Second, nil)
	nilCollector.ObserveReadoutFallback("x")
	nilCollector.SetChannels(3)
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("first NewEngineCollector: %v", err)
	}
	second, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("second NewEngineCollector: %v", err)
	}
	first.ObserveReadoutFallback("LF1")
	if got := testutil.ToFloat64(second.ReadoutFallbacks.WithLabelValues("LF1")); got != 1 {
		t.Fatalf("second collector does not share the first's counter: %v", got)
	}
}

func TestMetricsHandlerExposesEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}
	collector.SetChannels(4)
	collector.ObserveEvaluation("MF1", time.Millisecond, nil)
	collector.ObserveReadoutFallback("MF1")
	collector.ObserveParameterChange("Tc")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"bolocalc_evaluations_total",
		"bolocalc_evaluation_duration_seconds",
		"bolocalc_readout_fallbacks_total",
		"bolocalc_parameter_changes_total",
		"bolocalc_channels 4",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}
	collector.ObserveEvaluation("HF1", time.Millisecond, nil)

	path := filepath.Join(t.TempDir(), "bolocalc.prom")
	if err := collector.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `bolocalc_evaluations_total{channel="HF1",outcome="ok"} 1`) {
		t.Fatalf("textfile missing evaluation counter:\n%s", data)
	}
	if err := collector.WriteTextfile(""); err == nil {
		t.Fatalf("empty path accepted")
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
