package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// deliveryAttempts counts transport calls.
	// Labels:
	// - provider: "mailgun" or "smtp"
	// - status:   "success" or "failed"
	deliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulkmailer",
			Subsystem: "dispatch",
			Name:      "delivery_attempts_total",
			Help:      "Number of per-recipient delivery attempts by outcome.",
		},
		[]string{"provider", "status"},
	)

	// deliveryDuration observes transport latency per attempt.
	deliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bulkmailer",
			Subsystem: "dispatch",
			Name:      "delivery_duration_seconds",
			Help:      "Duration of a single delivery attempt.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// dispatches counts completed dispatch calls.
	// Labels:
	// - mode:           "bulk" or "template"
	// - classification: "all_success", "partial" or "all_failure"
	dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulkmailer",
			Subsystem: "dispatch",
			Name:      "dispatches_total",
			Help:      "Number of completed dispatches by classification.",
		},
		[]string{"mode", "classification"},
	)

	// logWriteFailures counts delivery log entries that could not be persisted.
	logWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bulkmailer",
			Subsystem: "dispatch",
			Name:      "log_write_failures_total",
			Help:      "Number of delivery log writes that failed.",
		},
	)

	// eventPublishFailures counts delivery events that could not be queued.
	eventPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bulkmailer",
			Subsystem: "events",
			Name:      "publish_failures_total",
			Help:      "Number of delivery events that failed to publish.",
		},
	)

	// eventsIndexed counts worker index results.
	eventsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulkmailer",
			Subsystem: "events",
			Name:      "indexed_total",
			Help:      "Number of delivery events processed by the indexer.",
		},
		[]string{"status"},
	)

	// analyticsCache counts analytics cache lookups.
	analyticsCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulkmailer",
			Subsystem: "analytics",
			Name:      "cache_lookups_total",
			Help:      "Analytics cache lookups by result.",
		},
		[]string{"result"},
	)

	// rateLimited counts requests rejected by the API rate limiter, by route.
	rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bulkmailer",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		},
		[]string{"route"},
	)
)

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func ObserveDelivery(provider, status string, seconds float64) {
	provider = orUnknown(provider)
	deliveryAttempts.WithLabelValues(provider, orUnknown(status)).Inc()
	deliveryDuration.WithLabelValues(provider).Observe(seconds)
}

func IncDispatch(mode, classification string) {
	dispatches.WithLabelValues(orUnknown(mode), orUnknown(classification)).Inc()
}

func IncLogWriteFailure() { logWriteFailures.Inc() }

func IncEventPublishFailure() { eventPublishFailures.Inc() }

func IncEventIndexed(status string) {
	eventsIndexed.WithLabelValues(orUnknown(status)).Inc()
}

// IncAnalyticsCache records a cache lookup; result is "hit", "miss" or "error".
func IncAnalyticsCache(result string) {
	analyticsCache.WithLabelValues(orUnknown(result)).Inc()
}

func IncRateLimited(route string) {
	rateLimited.WithLabelValues(orUnknown(route)).Inc()
}
