// Package metrics содержит счётчики Prometheus жизненного цикла подписок.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PaymentOutcomes количество итогов платежей по результату.
	PaymentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_payment_outcomes_total",
		Help: "Payment outcomes reported by the gateway, by result.",
	}, []string{"outcome"})

	// SweepExpirations количество подписок, истёкших по результатам обхода.
	SweepExpirations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subscription_sweep_expirations_total",
		Help: "Subscriptions expired by the periodic sweep.",
	})

	// GatewayErrors количество восстановимых сбоев платёжного шлюза.
	GatewayErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subscription_gateway_errors_total",
		Help: "Recoverable payment gateway failures.",
	})
)
