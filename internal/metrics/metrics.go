// Package metrics records the outcome of rebrand runs in a private
// prometheus registry and can push it to a pushgateway when the process
// exits, since a one-shot CLI is never around to be scraped.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/keithlinneman/ipa-rebrand/internal/version"
	"github.com/keithlinneman/ipa-rebrand/internal/xerrors"
)

const (
	namespace = "ipa_rebrand"
	pushJob   = "ipa_rebrand"
)

type RunMetrics struct {
	reg *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	fetchTotal      *prometheus.CounterVec
	fetchedBytes    *prometheus.CounterVec
	lastSuccessTs   prometheus.Gauge
	buildInfo       *prometheus.GaugeVec
	profilingActive prometheus.Gauge
}

// New returns metrics bound to a fresh registry.
func New() *RunMetrics {
	m := &RunMetrics{
		reg: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Rebrand runs by template mode and result",
		}, []string{"mode", "result"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage", "result"}),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "template_fetches_total",
			Help:      "Template downloads by URL scheme and result",
		}, []string{"scheme", "result"}),
		fetchedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "template_fetched_bytes_total",
			Help:      "Bytes written to disk by template downloads, including failed ones",
		}, []string{"scheme"}),
		lastSuccessTs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful run",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether profiling was active (1) or disabled/failed (0) for the run",
		}),
	}
	m.reg.MustRegister(
		m.runsTotal,
		m.stageDuration,
		m.fetchTotal,
		m.fetchedBytes,
		m.lastSuccessTs,
		m.buildInfo,
		m.profilingActive,
	)
	return m
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *RunMetrics) Registry() *prometheus.Registry { return m.reg }

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (m *RunMetrics) ObserveStage(stage string, d time.Duration, err error) {
	m.stageDuration.WithLabelValues(stage, result(err)).Observe(d.Seconds())
}

func (m *RunMetrics) ObserveRun(mode string, err error) {
	m.runsTotal.WithLabelValues(mode, result(err)).Inc()
	if err == nil {
		m.lastSuccessTs.SetToCurrentTime()
	}
}

func (m *RunMetrics) ObserveFetch(scheme string, bytes int64, err error) {
	m.fetchTotal.WithLabelValues(scheme, result(err)).Inc()
	if bytes > 0 {
		m.fetchedBytes.WithLabelValues(scheme).Add(float64(bytes))
	}
}

// set once at startup.
func (m *RunMetrics) SetBuildInfoFromVersion(vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         vi.AppName,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *RunMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}

// Push replaces this job's metric group on the pushgateway at url.
func (m *RunMetrics) Push(ctx context.Context, url string) error {
	if err := push.New(url, pushJob).Gatherer(m.reg).PushContext(ctx); err != nil {
		return xerrors.Wrapf(err, "push metrics to %s", url)
	}
	return nil
}
