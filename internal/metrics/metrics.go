// Package metrics exposes Sentinel's own Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ChecksRun counts completed check executions by check and outcome.
	ChecksRun = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentinel",
		Name:      "checks_run_total",
		Help:      "Completed check executions",
	}, []string{"check_id", "status"})

	// AlertsDispatched counts alerts delivered per severity and channel.
	AlertsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentinel",
		Name:      "alerts_dispatched_total",
		Help:      "Alerts dispatched to channels",
	}, []string{"severity", "channel"})

	// CycleDuration observes full scheduler tick durations.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sentinel",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of one full check cycle",
		Buckets:   prometheus.DefBuckets,
	})

	// ResultsPersistFailures counts results that failed to reach the store.
	ResultsPersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sentinel",
		Name:      "results_persist_failures_total",
		Help:      "Results that could not be persisted",
	})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
