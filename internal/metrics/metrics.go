package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created.",
		},
		[]string{"payment_method"},
	)

	OrdersCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_cancelled_total",
			Help: "Total number of orders cancelled.",
		},
	)

	PaymentCaptures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_captures_total",
			Help: "Payment capture attempts by outcome.",
		},
		[]string{"outcome"},
	)

	NotificationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_failures_total",
			Help: "Count of notification delivery failures by path.",
		},
		[]string{"path"},
	)
)

// Register は全カウンタをdefault registryに登録する。mainから1回だけ呼ぶ。
func Register() {
	prometheus.MustRegister(OrdersCreated, OrdersCancelled, PaymentCaptures, NotificationFailures)
}
