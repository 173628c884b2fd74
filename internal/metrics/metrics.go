// Package metrics exposes Prometheus collectors for the preview service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	previewRendersTotal        *prometheus.CounterVec
	previewCrawlerHitsTotal    *prometheus.CounterVec
	previewFetchSeconds        *prometheus.HistogramVec
	previewShellFallbacksTotal prometheus.Counter

	once sync.Once
)

const unknownLabel = "unknown"

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method, route, preview audience and code.",
			},
			[]string{"method", "route", "audience", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method, route and preview audience.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "audience"},
		)

		previewRendersTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_renders_total",
				Help: "Profile preview responses, labeled by audience and outcome.",
			},
			[]string{"audience", "outcome"},
		)

		previewCrawlerHitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_crawler_hits_total",
				Help: "Requests classified as crawlers, labeled by the matched user-agent token.",
			},
			[]string{"bot"},
		)

		previewFetchSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "preview_fetch_duration_seconds",
				Help:    "Profile store lookup latency, labeled by outcome.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 8, 10},
			},
			[]string{"outcome"},
		)

		previewShellFallbacksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "preview_shell_fallbacks_total",
				Help: "Human responses served with the synthetic shell because the built one was unreadable.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route, audience string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, route, audience, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, audience).Observe(duration.Seconds())
}

// ObserveRender counts one preview response.
func ObserveRender(audience, outcome string) {
	Init()
	previewRendersTotal.WithLabelValues(audience, outcome).Inc()
}

// ObserveCrawlerHit counts a request attributed to the given crawler token.
func ObserveCrawlerHit(bot string) {
	Init()
	previewCrawlerHitsTotal.WithLabelValues(bot).Inc()
}

// ObserveFetch records the duration of a profile store lookup.
func ObserveFetch(outcome string, duration time.Duration) {
	Init()
	previewFetchSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveShellFallback counts a synthetic-shell response.
func ObserveShellFallback() {
	Init()
	previewShellFallbacksTotal.Inc()
}
