// Package metrics provides Prometheus metrics for the Sentinel agents.
// Agents are short-lived processes, so metrics are pushed to a Pushgateway
// (when configured) at the end of a run instead of being scraped.
package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "sentinel"

var registry = prometheus.NewRegistry()
var factory = promauto.With(registry)

var (
	// ChecksRunTotal counts detection checks executed, by agent and check name.
	ChecksRunTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_run_total",
			Help:      "Total number of detection checks executed.",
		},
		[]string{"agent", "check"},
	)

	// IssuesFoundTotal counts detected issues by agent and incident type.
	IssuesFoundTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_found_total",
			Help:      "Total number of issues detected.",
		},
		[]string{"agent", "type"},
	)

	// IssuesFixedTotal counts issues auto-remediated successfully.
	IssuesFixedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_fixed_total",
			Help:      "Total number of issues auto-remediated.",
		},
		[]string{"agent", "type"},
	)

	// APIRequestsTotal counts fleet API calls by method and status class.
	APIRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of fleet API requests.",
		},
		[]string{"method", "status"},
	)

	// AlertsSentTotal counts notifications dispatched by channel.
	AlertsSentTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_sent_total",
			Help:      "Total number of alerts dispatched.",
		},
		[]string{"channel"},
	)

	// RunDurationSeconds observes full agent cycle duration.
	RunDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Agent cycle duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2.5, 8), // 100ms to ~38s
		},
		[]string{"agent"},
	)
)

// Push sends the run's metrics to the Pushgateway, grouped by agent name.
// Best-effort: a failed push is logged and otherwise ignored. No-op when
// gatewayURL is empty.
func Push(gatewayURL, agent string, logger *slog.Logger) {
	if gatewayURL == "" {
		return
	}
	start := time.Now()
	err := push.New(gatewayURL, "sentinel").
		Grouping("agent", agent).
		Gatherer(registry).
		Push()
	if err != nil {
		logger.Warn("metrics push failed", "gateway", gatewayURL, "err", err)
		return
	}
	logger.Debug("metrics pushed", "gateway", gatewayURL, "duration_ms", time.Since(start).Milliseconds())
}
