package risonanza

/*

	Internal prometheus registry for the acquisition loop.

	Every Session holds one of these, the display serves it at /metrics.

*/

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type StatsInternal struct {
	Registry        *prometheus.Registry
	Runs            *prometheus.CounterVec
	Samples         prometheus.Counter
	TransformErrors prometheus.Counter
	SessionActive   prometheus.Gauge
	RunSeconds      prometheus.Histogram
	WWW             *prometheus.CounterVec
	RefreshSeconds  prometheus.Histogram
}

// NewStatsInternal creates an attached prometheus registry
func NewStatsInternal() *StatsInternal {
	reg := prometheus.NewRegistry()

	s := &StatsInternal{
		Registry: reg,
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risonanza_runs_total",
			Help: "Completed acquisition runs by outcome.",
		}, []string{"outcome"}),
		Samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "risonanza_samples_acquired_total",
			Help: "Complex samples read back from the receiver.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "risonanza_transform_errors_total",
			Help: "Sample transformers that failed and were skipped.",
		}),
		SessionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "risonanza_session_active",
			Help: "1 while an acquisition session is running.",
		}),
		RunSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "risonanza_run_duration_seconds",
			Help:    "Wall time of one run, send to stored.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		WWW: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risonanza_http_requests_total",
			Help: "Data server requests by status and method.",
		}, []string{"status", "method"}),
		RefreshSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "risonanza_display_refresh_seconds",
			Help:    "Wall time of one display refresh.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}

	reg.MustRegister(s.Runs, s.Samples, s.TransformErrors, s.SessionActive,
		s.RunSeconds, s.WWW, s.RefreshSeconds)

	return s
}

// Handler serves the registry, mount it on /metrics
func (s *StatsInternal) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})
}

// RecRun records one finished run and how long it took
func (s *StatsInternal) RecRun(ok bool, d time.Duration) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	s.Runs.WithLabelValues(outcome).Inc()
	s.RunSeconds.Observe(d.Seconds())
}

// RecSamples counts complex samples as they arrive
func (s *StatsInternal) RecSamples(n int) {
	s.Samples.Add(float64(n))
}

func (s *StatsInternal) RecTransformError() {
	s.TransformErrors.Inc()
}

func (s *StatsInternal) RecSessionStart() {
	s.SessionActive.Set(1)
}

func (s *StatsInternal) RecSessionEnd() {
	s.SessionActive.Set(0)
}

// RecWWW counts one data server request
func (s *StatsInternal) RecWWW(status, method string) {
	s.WWW.WithLabelValues(status, method).Inc()
}

// RecRefreshTimer records how long one display refresh took
func (s *StatsInternal) RecRefreshTimer(seconds float64) {
	s.RefreshSeconds.Observe(seconds)
}
