package quotes

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedConnected indicates whether the detector stream is up.
	FeedConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crossmarket_quotes_feed_connected",
		Help: "Whether the quote feed websocket is connected (1=up, 0=down)",
	})

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossmarket_quotes_reconnect_attempts_total",
		Help: "Total number of quote feed reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossmarket_quotes_reconnect_failures_total",
		Help: "Total number of quote feed reconnection failures",
	})

	// QuotesReceivedTotal tracks valid opportunities received.
	QuotesReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossmarket_quotes_received_total",
		Help: "Total number of valid opportunities received from the feed",
	})

	// QuotesRejectedTotal tracks malformed or stale-priced quotes.
	QuotesRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossmarket_quotes_rejected_total",
		Help: "Total number of quotes rejected at parse or validation",
	})

	// QuotesDroppedTotal tracks quotes dropped due to a full channel.
	QuotesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crossmarket_quotes_dropped_total",
		Help: "Total number of quotes dropped because the consumer lagged",
	})
)
