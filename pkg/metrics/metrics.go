// Package metrics keeps the service counters and gauges in the default
// prometheus registry, next to the HTTP metrics echo exports on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "souq"

var (
	gauges = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "gauge",
		Help:      "Named point-in-time values (process cpu, memory, ...).",
	}, []string{"name"})

	counters = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Named business event counters.",
	}, []string{"name"})

	webhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Payment provider webhook events by type and outcome.",
	}, []string{"type", "outcome"})
)

func init() {
	prometheus.MustRegister(gauges, counters, webhookEvents)
}

// SetGauge sets the named gauge.
func SetGauge(name string, value int64) {
	gauges.WithLabelValues(name).Set(float64(value))
}

// Inc increments the named counter.
func Inc(name string) {
	counters.WithLabelValues(name).Inc()
}

// ObserveWebhook counts one webhook delivery.
func ObserveWebhook(eventType, outcome string) {
	webhookEvents.WithLabelValues(eventType, outcome).Inc()
}
