// Package metrics exposes the assistant's Prometheus collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var MessagesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "start",
		Name:      "messages_total",
		Help:      "Inbound messages by channel and the dialogue rule that handled them",
	},
	[]string{"channel", "route"},
)

var LeadsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "start",
		Name:      "leads_total",
		Help:      "Completed leads by outcome",
	},
	[]string{"channel", "outcome"}, // outcome: forwarded, duplicate, failed
)

var AnswerSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "start",
		Name:      "answer_seconds",
		Help:      "Latency of language model answers",
		Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 8, 13, 20, 30},
	},
	[]string{"status"},
)

func init() {
	prometheus.MustRegister(MessagesTotal, LeadsTotal, AnswerSeconds)
}
