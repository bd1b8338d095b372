package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type ledgerMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics

	httpMetricsOnce sync.Once
	httpRegistry    *httpMetrics
)

// Ledger returns the lazily-initialised registry recording ledger operations.
func Ledger() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "proplend",
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Ledger operations segmented by operation and outcome kind.",
			}, []string{"op", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "proplend",
				Subsystem: "ledger",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for ledger operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
		}
		prometheus.MustRegister(ledgerRegistry.operations, ledgerRegistry.latency)
	})
	return ledgerRegistry
}

// Observe records one ledger operation. Outcome is "ok" or the error kind.
func (m *ledgerMetrics) Observe(op, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	if outcome == "" {
		outcome = "ok"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

type httpMetrics struct {
	requests  *prometheus.CounterVec
	throttles *prometheus.CounterVec
}

// HTTP returns the registry recording API requests and throttling.
func HTTP() *httpMetrics {
	httpMetricsOnce.Do(func() {
		httpRegistry = &httpMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "proplend",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "API requests segmented by route and status code class.",
			}, []string{"route", "class"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "proplend",
				Subsystem: "http",
				Name:      "throttles_total",
				Help:      "Requests rejected by the rate limiter.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(httpRegistry.requests, httpRegistry.throttles)
	})
	return httpRegistry
}

func (m *httpMetrics) Observe(route string, status int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	class := "2xx"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 300:
		class = "3xx"
	}
	m.requests.WithLabelValues(route, class).Inc()
}

func (m *httpMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}
