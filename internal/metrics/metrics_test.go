package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/keithlinneman/ipa-rebrand/internal/version"
)

// helpers

// gatherMetric collects metrics from the registry and finds one by name.
func gatherMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func labelsOf(m *dto.Metric) map[string]string {
	out := make(map[string]string)
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

// findSample returns the metric in family name whose labels include want.
func findSample(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) *dto.Metric {
	t.Helper()
	f := gatherMetric(t, reg, name)
	if f == nil {
		t.Fatalf("metric %q not found", name)
	}
outer:
	for _, m := range f.GetMetric() {
		got := labelsOf(m)
		for k, v := range want {
			if got[k] != v {
				continue outer
			}
		}
		return m
	}
	t.Fatalf("no %s sample with labels %v", name, want)
	return nil
}

// New

func TestNew_IsolatedRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveRun("standard", nil)
	if gatherMetric(t, b.Registry(), "ipa_rebrand_runs_total") != nil {
		t.Fatal("registries should not share state")
	}
}

func TestNew_ImmediateMetrics(t *testing.T) {
	m := New()
	for _, name := range []string{"ipa_rebrand_last_success_timestamp_seconds", "profiling_active"} {
		if gatherMetric(t, m.Registry(), name) == nil {
			t.Errorf("metric %q missing", name)
		}
	}
}

// Observe*

func TestObserveRun(t *testing.T) {
	m := New()
	m.ObserveRun("standard", nil)
	m.ObserveRun("standard", errors.New("boom"))
	m.ObserveRun("alternate", errors.New("boom"))

	if v := findSample(t, m.reg, "ipa_rebrand_runs_total", map[string]string{"mode": "standard", "result": "success"}).GetCounter().GetValue(); v != 1 {
		t.Fatalf("standard/success = %v", v)
	}
	if v := findSample(t, m.reg, "ipa_rebrand_runs_total", map[string]string{"mode": "alternate", "result": "failure"}).GetCounter().GetValue(); v != 1 {
		t.Fatalf("alternate/failure = %v", v)
	}
	if ts := gatherMetric(t, m.reg, "ipa_rebrand_last_success_timestamp_seconds").GetMetric()[0].GetGauge().GetValue(); ts <= 0 {
		t.Fatalf("last success timestamp = %v", ts)
	}
}

func TestObserveStage(t *testing.T) {
	m := New()
	m.ObserveStage("fetch", 1500*time.Millisecond, nil)
	m.ObserveStage("fetch", 200*time.Millisecond, nil)
	m.ObserveStage("rewrite", time.Millisecond, errors.New("x"))

	h := findSample(t, m.reg, "ipa_rebrand_stage_duration_seconds", map[string]string{"stage": "fetch", "result": "success"}).GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Fatalf("fetch count = %d", h.GetSampleCount())
	}
	if h.GetSampleSum() < 1.69 || h.GetSampleSum() > 1.71 {
		t.Fatalf("fetch sum = %v", h.GetSampleSum())
	}
	findSample(t, m.reg, "ipa_rebrand_stage_duration_seconds", map[string]string{"stage": "rewrite", "result": "failure"})
}

func TestObserveFetch(t *testing.T) {
	m := New()
	m.ObserveFetch("https", 1024, nil)
	m.ObserveFetch("https", 10, errors.New("timeout"))
	m.ObserveFetch("s3", 0, errors.New("denied"))

	if v := findSample(t, m.reg, "ipa_rebrand_template_fetched_bytes_total", map[string]string{"scheme": "https"}).GetCounter().GetValue(); v != 1034 {
		t.Fatalf("https bytes = %v", v)
	}
	if v := findSample(t, m.reg, "ipa_rebrand_template_fetches_total", map[string]string{"scheme": "s3", "result": "failure"}).GetCounter().GetValue(); v != 1 {
		t.Fatalf("s3 failures = %v", v)
	}
}

// SetBuildInfoFromVersion

func TestSetBuildInfoFromVersion(t *testing.T) {
	m := New()

	dirty := true
	m.SetBuildInfoFromVersion(version.Info{
		AppName:    "ipa-rebrand",
		Version:    "1.2.3",
		Commit:     "abc123",
		CommitDate: "2025-01-01",
		BuildId:    "build-42",
		BuildDate:  "2025-01-01T00:00:00Z",
		GoVersion:  "go1.24.11",
		VCSDirty:   &dirty,
	})

	f := gatherMetric(t, m.reg, "build_info")
	if f == nil || len(f.GetMetric()) != 1 {
		t.Fatal("build_info should have exactly one sample")
	}
	if f.GetMetric()[0].GetGauge().GetValue() != 1 {
		t.Fatal("build_info value should be 1")
	}
	labels := labelsOf(f.GetMetric()[0])
	checks := map[string]string{
		"app":        "ipa-rebrand",
		"version":    "1.2.3",
		"commit":     "abc123",
		"build_id":   "build-42",
		"go_version": "go1.24.11",
		"vcs_dirty":  "true",
	}
	for k, want := range checks {
		if got := labels[k]; got != want {
			t.Errorf("build_info label %q = %q, want %q", k, got, want)
		}
	}
}

func TestSetBuildInfoFromVersion_NilVCSDirty(t *testing.T) {
	m := New()
	m.SetBuildInfoFromVersion(version.Info{Version: "dev"})

	labels := labelsOf(gatherMetric(t, m.reg, "build_info").GetMetric()[0])
	if labels["vcs_dirty"] != "unknown" {
		t.Fatalf("vcs_dirty = %q, want unknown", labels["vcs_dirty"])
	}
}

func TestSetProfilingActive(t *testing.T) {
	m := New()
	m.SetProfilingActive(true)
	if v := gatherMetric(t, m.reg, "profiling_active").GetMetric()[0].GetGauge().GetValue(); v != 1 {
		t.Fatalf("profiling_active = %v", v)
	}
	m.SetProfilingActive(false)
	if v := gatherMetric(t, m.reg, "profiling_active").GetMetric()[0].GetGauge().GetValue(); v != 0 {
		t.Fatalf("profiling_active = %v", v)
	}
}

// Push

func TestPush(t *testing.T) {
	var mu sync.Mutex
	var method, path string
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method, path = r.Method, r.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	m := New()
	m.ObserveRun("standard", nil)
	if err := m.Push(context.Background(), gw.URL); err != nil {
		t.Fatalf("Push: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut || path != "/metrics/job/ipa_rebrand" {
		t.Fatalf("request = %s %s", method, path)
	}
}

func TestPush_GatewayError(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer gw.Close()

	if err := New().Push(context.Background(), gw.URL); err == nil {
		t.Fatal("expected error from failing pushgateway")
	}
}
