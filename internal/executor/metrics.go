package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionsTotal tracks finished executions by mode and outcome.
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossmarket_execution_total",
			Help: "Total number of executions by mode and resulting position status",
		},
		[]string{"mode", "status"},
	)

	// DeclinesTotal tracks pre-flight declines by reason.
	DeclinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossmarket_execution_declines_total",
			Help: "Total number of opportunities declined at pre-flight",
		},
		[]string{"reason"},
	)

	// UnwindAttemptsTotal tracks unwind SELL placements by outcome.
	UnwindAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossmarket_execution_unwind_attempts_total",
			Help: "Total number of unwind sell attempts by outcome",
		},
		[]string{"outcome"},
	)

	// UnwindsTotal tracks completed unwind routines by classification.
	UnwindsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossmarket_execution_unwinds_total",
			Help: "Total number of unwind routines by classification",
		},
		[]string{"classification"},
	)

	// PausedGauge is 1 while the global pause gate is set.
	PausedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crossmarket_execution_paused",
		Help: "Whether the executor pause gate is set",
	})

	// CooldownsActive is the number of markets in cooldown.
	CooldownsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crossmarket_execution_cooldowns_active",
		Help: "Number of markets currently in cooldown",
	})

	// PositionsClosedTotal counts redeemed positions.
	PositionsClosedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossmarket_execution_positions_closed_total",
		Help: "Total number of positions closed via on-chain redemption",
	})

	// ExecutionDurationSeconds tracks ExecuteBest latency.
	ExecutionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crossmarket_execution_duration_seconds",
		Help:    "Duration of one execution attempt",
		Buckets: prometheus.DefBuckets,
	})
)
