package guard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GuardEnabled indicates whether the guard allows trade execution.
	GuardEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crossmarket_balance_guard_enabled",
		Help: "Whether the balance guard allows trade execution (1=enabled, 0=disabled)",
	})

	// GuardBalance tracks the last checked collateral balance.
	GuardBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crossmarket_balance_guard_balance_usdt",
		Help: "Last checked USDT collateral balance across trading wallets",
	})

	// GuardDisableThreshold tracks the current threshold for disabling execution.
	GuardDisableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crossmarket_balance_guard_disable_threshold_usdt",
		Help: "Current USDT balance threshold for disabling execution (dynamically calculated)",
	})

	// GuardEnableThreshold tracks the current threshold for re-enabling execution.
	GuardEnableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crossmarket_balance_guard_enable_threshold_usdt",
		Help: "Current USDT balance threshold for re-enabling execution (with hysteresis)",
	})

	// GuardAvgTradeSize tracks the rolling average trade size.
	GuardAvgTradeSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crossmarket_balance_guard_avg_trade_size_usdt",
		Help: "Rolling average trade size from recent trades (used for threshold calculation)",
	})

	// GuardStateChanges tracks the number of times the guard changed state.
	GuardStateChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossmarket_balance_guard_state_changes_total",
		Help: "Total number of times the balance guard changed state (enabled/disabled)",
	})

	// GuardCheckDuration tracks the time taken to check balances.
	GuardCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crossmarket_balance_guard_check_duration_seconds",
		Help:    "Time taken to check wallet collateral balances",
		Buckets: prometheus.DefBuckets,
	})
)
