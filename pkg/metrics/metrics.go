// Package metrics exposes server counters to Prometheus.
//
// All Record methods are safe on a nil *Metrics, so components can take an
// optional metrics handle without guarding every call.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "playerd"

// Metrics holds the server's collectors.
type Metrics struct {
	MessagesIn          *prometheus.CounterVec
	MessagesOut         *prometheus.CounterVec
	QueueDrops          *prometheus.CounterVec
	Nacks               *prometheus.CounterVec
	Sessions            prometheus.Gauge
	Subscriptions       *prometheus.GaugeVec
	DriverSetupFailures *prometheus.CounterVec
	RoundDuration       prometheus.Histogram
}

// NewMetrics creates the collectors. They are registered by NewRegistry.
func NewMetrics() *Metrics {
	return &Metrics{
		MessagesIn: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "received_total",
				Help:      "Messages received from clients by type",
			},
			[]string{"type"},
		),

		MessagesOut: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "sent_total",
				Help:      "Messages sent to clients by type",
			},
			[]string{"type"},
		),

		QueueDrops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "dropped_total",
				Help:      "Messages discarded by a queue (full, replaced, ignored)",
			},
			[]string{"queue", "reason"},
		),

		Nacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "requests",
				Name:      "nack_total",
				Help:      "Requests answered with NACK or ERR",
			},
			[]string{"interface"},
		),

		Sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "clients",
				Name:      "sessions",
				Help:      "Connected client sessions",
			},
		),

		Subscriptions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "clients",
				Name:      "subscriptions",
				Help:      "Open client subscriptions by interface",
			},
			[]string{"interface"},
		),

		DriverSetupFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "drivers",
				Name:      "setup_failures_total",
				Help:      "Failed driver setups by driver",
			},
			[]string{"driver"},
		),

		RoundDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "delivery",
				Name:      "round_duration_seconds",
				Help:      "Time to build and send one data round",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesIn, m.MessagesOut, m.QueueDrops, m.Nacks,
		m.Sessions, m.Subscriptions, m.DriverSetupFailures, m.RoundDuration,
	}
}

// RecordMessageIn counts a message received from a client.
func (m *Metrics) RecordMessageIn(msgType string) {
	if m == nil {
		return
	}
	m.MessagesIn.WithLabelValues(msgType).Inc()
}

// RecordMessageOut counts a message sent to a client.
func (m *Metrics) RecordMessageOut(msgType string) {
	if m == nil {
		return
	}
	m.MessagesOut.WithLabelValues(msgType).Inc()
}

// RecordQueueDrop counts a message a queue discarded.
func (m *Metrics) RecordQueueDrop(queue, reason string) {
	if m == nil {
		return
	}
	m.QueueDrops.WithLabelValues(queue, reason).Inc()
}

// RecordNack counts a refused request.
func (m *Metrics) RecordNack(iface string) {
	if m == nil {
		return
	}
	m.Nacks.WithLabelValues(iface).Inc()
}

// RecordSession adjusts the session gauge by delta.
func (m *Metrics) RecordSession(delta int) {
	if m == nil {
		return
	}
	m.Sessions.Add(float64(delta))
}

// RecordSubscription adjusts the subscription gauge of an interface by delta.
func (m *Metrics) RecordSubscription(iface string, delta int) {
	if m == nil {
		return
	}
	m.Subscriptions.WithLabelValues(iface).Add(float64(delta))
}

// RecordSetupFailure counts a failed driver setup.
func (m *Metrics) RecordSetupFailure(driver string) {
	if m == nil {
		return
	}
	m.DriverSetupFailures.WithLabelValues(driver).Inc()
}

// RecordRound observes the duration of one delivery round.
func (m *Metrics) RecordRound(d time.Duration) {
	if m == nil {
		return
	}
	m.RoundDuration.Observe(d.Seconds())
}
