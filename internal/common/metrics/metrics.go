// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TokenDebits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_debits_total",
			Help: "Total number of successful token debits by action",
		},
		[]string{"action"},
	)

	TokenDebitFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_debit_failures_total",
			Help: "Total number of rejected token debits by reason",
		},
		[]string{"action", "reason"},
	)

	TokensSpent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokens_spent_total",
			Help: "Total amount of tokens spent by action",
		},
		[]string{"action"},
	)

	RevealsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cv_reveals_recorded_total",
			Help: "Total number of CV reveal records created by reveal type",
		},
		[]string{"reveal_type"},
	)

	CandidateSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "candidate_searches_total",
			Help: "Total number of candidate searches executed by search type",
		},
		[]string{"search_type"},
	)

	CandidateSearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "candidate_search_duration_seconds",
			Help: "Duration of candidate search execution in seconds",
		},
		[]string{"search_type"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notifications dispatched by channel and status",
		},
		[]string{"channel", "status"},
	)
)
