package execution

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricOrdersAttempted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warden_orders_attempted_total",
		Help: "Orders that entered the execution pipeline",
	})
	metricOrdersPlaced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warden_orders_placed_total",
		Help: "Orders accepted by the venue",
	})
	metricOrdersRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warden_orders_rejected_total",
		Help: "Orders rejected by safety checks or the venue",
	})
	metricBreakerTripped = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "warden_breaker_tripped",
		Help: "1 while the circuit breaker is tripped",
	})
)

func init() {
	prometheus.MustRegister(
		metricOrdersAttempted, metricOrdersPlaced, metricOrdersRejected,
		metricBreakerTripped,
	)
}
