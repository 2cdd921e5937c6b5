package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "deal_tracker"

var (
	// ItemsIngested counts ingestion outcomes per origin.
	ItemsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_ingested_total",
			Help:      "Candidate items seen by ingestion, by origin and result (new, duplicate, invalid, error).",
		},
		[]string{"origin", "result"},
	)

	// Scrapes counts scrape attempts by result.
	Scrapes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrapes_total",
			Help:      "Article scrape attempts by result (success or failure kind).",
		},
		[]string{"result"},
	)

	// Extractions counts extraction outcomes.
	Extractions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "AI extraction outcomes (complete, incomplete, skipped, error).",
		},
		[]string{"result"},
	)

	// Decisions counts triage decisions by outcome, channel, and result.
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Triage decisions by outcome, channel (ui, link), and result (applied, noop, conflict).",
		},
		[]string{"outcome", "channel", "result"},
	)

	// ActionTokens counts signed action token verifications.
	ActionTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_tokens_total",
			Help:      "Signed action token verifications by result.",
		},
		[]string{"result"},
	)

	// Cycles counts scheduled pipeline cycles.
	Cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Pipeline cycles by trigger (cron, manual) and result (ok, error, skipped).",
		},
		[]string{"trigger", "result"},
	)

	// HTTPRequests counts API requests.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		},
		[]string{"method", "status"},
	)

	// HTTPDuration observes API latency.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(ItemsIngested, Scrapes, Extractions, Decisions, ActionTokens, Cycles, HTTPRequests, HTTPDuration)
}
