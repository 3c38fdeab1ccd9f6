package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WalletConnections counts wallet connection attempts by outcome
	WalletConnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_wallet_connections_total",
			Help: "Total number of wallet connection attempts",
		},
		[]string{"status"},
	)

	// Registrations counts first-time user registrations by outcome
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_registrations_total",
			Help: "Total number of first-time user registrations",
		},
		[]string{"status"},
	)

	// PromptsOpen tracks profile prompts currently awaiting an answer
	PromptsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "auth_prompts_open",
			Help: "Number of profile prompts awaiting an answer",
		},
	)

	// AccessBlocked counts requests rejected by the access guard
	AccessBlocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_access_blocked_total",
			Help: "Total number of requests blocked by the access guard",
		},
	)

	// ScoreLookups counts score resolutions by source and status
	ScoreLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_lookups_total",
			Help: "Total number of credit score lookups",
		},
		[]string{"source", "status"},
	)

	// ScoreWrites counts score submissions by source and status
	ScoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_writes_total",
			Help: "Total number of credit score writes",
		},
		[]string{"source", "status"},
	)

	// ScoreLookupDuration tracks score resolution latency
	ScoreLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "score_lookup_duration_seconds",
			Help:    "Credit score lookup duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// ReconciliationRuns counts reconciler passes by outcome
	ReconciliationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_reconciliation_runs_total",
			Help: "Total number of registry/mirror reconciliation passes",
		},
		[]string{"status"},
	)

	// ReconciliationDrift tracks score entries found out of sync on the
	// most recent reconciliation pass
	ReconciliationDrift = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "score_reconciliation_drift",
			Help: "Score entries found out of sync between registry and mirror on the last pass",
		},
	)

	// ActiveSessions tracks sessions currently held by the manager
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "auth_active_sessions",
			Help: "Number of sessions currently tracked",
		},
	)
)
