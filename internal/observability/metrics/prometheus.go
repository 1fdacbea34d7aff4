// Package metrics provides Prometheus metrics for the HL7 conversion services.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	MessagesDecoded       prometheus.Counter
	DecodeFailures        *prometheus.CounterVec
	Conversions           *prometheus.CounterVec
	ConversionDuration    prometheus.Histogram
	ReplayCacheHits       prometheus.Counter
	KafkaMessagesProduced prometheus.Counter
	KafkaMessagesConsumed prometheus.Counter
	OutboxPending         prometheus.Gauge
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates the metrics and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		MessagesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hl7_messages_decoded_total",
			Help: "Total HL7 messages decoded",
		}),
		DecodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hl7_decode_failures_total",
			Help: "HL7 decode failures by reason",
		}, []string{"reason"}),
		Conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hl7_conversions_total",
			Help: "HL7 conversions by order event and outcome",
		}, []string{"event", "outcome"}),
		ConversionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hl7_conversion_duration_seconds",
			Help:    "End to end conversion duration including persistence",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		ReplayCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hl7_replay_cache_hits_total",
			Help: "Convert requests answered from the replay cache",
		}),
		KafkaMessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total Kafka messages produced",
		}),
		KafkaMessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total Kafka messages consumed",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	reg.MustRegister(
		m.MessagesDecoded,
		m.DecodeFailures,
		m.Conversions,
		m.ConversionDuration,
		m.ReplayCacheHits,
		m.KafkaMessagesProduced,
		m.KafkaMessagesConsumed,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
