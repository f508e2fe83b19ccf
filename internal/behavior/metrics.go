package behavior

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomeEmpty   = "empty"
)

var (
	eventsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_behavior_events_total",
			Help: "Behavior events processed by the trust engine, by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	baselineRebuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_baseline_rebuilds_total",
			Help: "Baseline rebuilds by outcome",
		},
		[]string{"outcome"},
	)

	baselineRebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vigil_baseline_rebuild_duration_seconds",
			Help:    "Time spent rebuilding a baseline, lock wait included",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	trustScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vigil_trust_score",
			Help:    "Distribution of login trust scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	breakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_storage_breaker_transitions_total",
			Help: "Storage circuit breaker state changes",
		},
		[]string{"from", "to"},
	)
)
