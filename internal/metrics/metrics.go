// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubscribeAttempts counts subscribe calls by channel (auto, checkbox,
	// widget, shortcode) and outcome (subscribed, exists, failed).
	SubscribeAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listbridge_subscribe_attempts_total",
		Help: "Subscribe attempts by channel and outcome.",
	}, []string{"channel", "outcome"})

	// Unsubscribes counts completed unsubscribe calls by source (webhook,
	// checkout).
	Unsubscribes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listbridge_unsubscribes_total",
		Help: "Completed unsubscribes by source.",
	}, []string{"source"})

	// EcommercePushes counts e-commerce pushes by operation (order_create,
	// order_update, order_delete, product_create) and result (ok, error).
	EcommercePushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listbridge_ecommerce_pushes_total",
		Help: "E-commerce data pushes by operation and result.",
	}, []string{"operation", "result"})

	// Reconciliations counts membership reconciliation runs.
	Reconciliations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listbridge_reconciliations_total",
		Help: "Membership reconciliation runs.",
	})
)
