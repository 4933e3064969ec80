// Package metrics exposes Prometheus collectors for the analysis service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	analysisRunsTotal          *prometheus.CounterVec
	fetchTotal                 *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	generationAttemptsTotal    *prometheus.CounterVec
	generationFallbacksTotal   *prometheus.CounterVec
	generationDurationSeconds  *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitWaitSeconds       prometheus.Histogram
	activeAnalyses             prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		analysisRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_runs_total",
				Help: "Total number of analysis runs, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_fetch_total",
				Help: "Total number of page fetches, labeled by strategy and status.",
			},
			[]string{"strategy", "status"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analysis_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by strategy.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"strategy"},
		)

		generationAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "generation_attempts_total",
				Help: "Total backend generation attempts, labeled by backend and outcome.",
			},
			[]string{"backend", "outcome"},
		)

		generationFallbacksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "generation_fallbacks_total",
				Help: "Total sections that fell back to templated output, labeled by section.",
			},
			[]string{"section"},
		)

		generationDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "generation_duration_seconds",
				Help:    "Histogram of per-section generation latencies, labeled by section.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"section"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "analysis_ratelimit_wait_seconds",
				Help:    "Histogram of time spent waiting on the per-host fetch rate limiter.",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15},
			},
		)

		activeAnalyses = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "analysis_active_runs",
				Help: "Number of analysis runs currently in flight.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAnalysisRun increments the run counter for a site and outcome.
func ObserveAnalysisRun(site, outcome string) {
	analysisRunsTotal.WithLabelValues(SanitizeSite(site), outcome).Inc()
}

// ObserveFetch records one page fetch.
func ObserveFetch(strategy string, status int, duration time.Duration) {
	fetchTotal.WithLabelValues(strategy, strconv.Itoa(status)).Inc()
	fetchDurationSeconds.WithLabelValues(strategy).Observe(duration.Seconds())
}

// ObserveGenerationAttempt records one backend attempt.
func ObserveGenerationAttempt(backend, outcome string) {
	generationAttemptsTotal.WithLabelValues(backend, outcome).Inc()
}

// ObserveGenerationFallback records a section that used templated output.
func ObserveGenerationFallback(section string) {
	generationFallbacksTotal.WithLabelValues(section).Inc()
}

// ObserveGenerationDuration records per-section generation latency.
func ObserveGenerationDuration(section string, duration time.Duration) {
	generationDurationSeconds.WithLabelValues(section).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitWait records time spent blocked on the fetch rate limiter.
func ObserveRateLimitWait(duration time.Duration) {
	rateLimitWaitSeconds.Observe(duration.Seconds())
}

// IncActiveAnalyses increments the in-flight gauge.
func IncActiveAnalyses() {
	activeAnalyses.Inc()
}

// DecActiveAnalyses decrements the in-flight gauge.
func DecActiveAnalyses() {
	activeAnalyses.Dec()
}
