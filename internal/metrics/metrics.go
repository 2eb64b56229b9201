// Package metrics exposes Prometheus counters for order flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradecore_orders_placed_total",
		Help: "Orders accepted into the lifecycle.",
	})

	OrdersFilled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradecore_orders_filled_total",
		Help: "Orders that reached the FILLED state.",
	})

	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradecore_orders_cancelled_total",
		Help: "Orders cancelled by the caller.",
	})

	OrdersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradecore_orders_expired_total",
		Help: "Submitted orders expired by age.",
	})

	OrdersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradecore_orders_rejected_total",
		Help: "Orders rejected before submission, by reason.",
	}, []string{"reason"})

	TradesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradecore_trades_total",
		Help: "Executions recorded, one per fill.",
	})

	RiskDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradecore_risk_denials_total",
		Help: "Risk gate denials, by check.",
	}, []string{"check"})
)
