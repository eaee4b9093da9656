package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publish outcomes recorded in EventsPublished.
const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	// EventsPublished counts publish attempts by topic and result.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "addressbook",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Change events written to Kafka, by topic and result.",
		},
		[]string{"topic", "result"},
	)

	// PublishLatency observes how long the Kafka write took.
	PublishLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "addressbook",
			Subsystem: "events",
			Name:      "publish_duration_seconds",
			Help:      "Latency of Kafka writes for change events.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"topic"},
	)
)
