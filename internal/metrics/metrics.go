// Package metrics exposes the bot's operational gauges and counters over
// Prometheus. Values are written from the trading loop only.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IterationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_iterations_total",
		Help: "Completed trading loop iterations.",
	})

	IterationErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_iteration_errors_total",
		Help: "Trading loop iterations aborted by a panic.",
	})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bot_open_positions",
		Help: "Number of currently open positions.",
	})

	Capital = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bot_capital",
		Help: "Current tracked capital in quote currency.",
	})

	CapitalHighWaterMark = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bot_capital_high_water_mark",
		Help: "Peak capital observed since the drawdown baseline was set.",
	})

	LastPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bot_last_price",
		Help: "Last observed ticker price per symbol.",
	}, []string{"symbol"})

	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_trades_total",
		Help: "Completed trades by close reason.",
	}, []string{"symbol", "reason"})

	// A gauge, not a counter: realized PnL moves in both directions.
	RealizedPnL = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bot_realized_pnl_total",
		Help: "Cumulative realized profit and loss per symbol.",
	}, []string{"symbol"})

	TrailingStopUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_trailing_stop_updates_total",
		Help: "Trailing stop arms and ratchets per symbol.",
	}, []string{"symbol"})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
