// Package metrics defines the Prometheus instrumentation for the alert engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Evaluation metrics
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repopulse_evaluations_total",
			Help: "Total number of alert evaluations",
		},
		[]string{"result"}, // result: ok, error
	)

	ActiveAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repopulse_active_alerts_total",
			Help: "Total number of active alert states observed across evaluations",
		},
		[]string{"rule"},
	)

	// Dispatch metrics
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repopulse_dispatches_total",
			Help: "Total number of dispatch attempts",
		},
		[]string{"result"}, // result: sent, skipped, error
	)

	RulesSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "repopulse_rules_suppressed_total",
			Help: "Total number of alert rules suppressed by cooldown",
		},
	)

	// Transport metrics
	WebhookSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repopulse_webhook_sends_total",
			Help: "Total number of outbound webhook deliveries",
		},
		[]string{"channel", "status"}, // status: success, error
	)

	WebhookSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repopulse_webhook_send_duration_seconds",
			Help:    "Time taken to deliver a webhook payload",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"channel"},
	)
)
