package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RateLimitBlockTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "savings",
			Name:      "ratelimit_block_total",
			Help:      "Total number of rate limit blocks.",
		},
		[]string{"route"},
	)

	WebhookLogsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "savings",
			Name:      "webhook_logs_total",
			Help:      "Webhook logs seen, by outcome (matched, ignored, parse_error).",
		},
		[]string{"result"},
	)

	CandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "savings",
			Name:      "candidates_total",
			Help:      "Detected transfer candidates, by persistence outcome.",
		},
		[]string{"result"},
	)

	StateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "savings",
			Name:      "state_transitions_total",
			Help:      "Committed state machine transitions.",
		},
		[]string{"machine", "to"},
	)

	VaultCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "savings",
			Name:      "vault_calls_total",
			Help:      "Vault gateway calls by method and result.",
		},
		[]string{"method", "result"},
	)

	VaultCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "savings",
		Name:      "vault_call_duration_seconds",
		Help:      "Vault call latency including confirmation wait.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms ~ 100s
	}, []string{"method"})

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "savings",
			Name:      "circuitbreaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
		},
		[]string{"name"},
	)
)
