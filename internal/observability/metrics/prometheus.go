// Package metrics provides Prometheus metrics for the patient registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	PatientsCreated    prometheus.Counter
	PatientsUpdated    prometheus.Counter
	PatientsDeleted    prometheus.Counter
	IdentifiersAdded   prometheus.Counter
	IdentifiersRemoved prometheus.Counter
	MatchesScored      *prometheus.CounterVec
	MatchDuration      prometheus.Histogram
	EventsConsumed     prometheus.Counter
	EventsPublished    prometheus.Counter
	OutboxPending      prometheus.Gauge
}

// New creates all metrics and registers them with the default registry.
func New() *Metrics {
	m := NewForTesting()

	prometheus.MustRegister(
		m.PatientsCreated,
		m.PatientsUpdated,
		m.PatientsDeleted,
		m.IdentifiersAdded,
		m.IdentifiersRemoved,
		m.MatchesScored,
		m.MatchDuration,
		m.EventsConsumed,
		m.EventsPublished,
		m.OutboxPending,
	)

	return m
}

// NewForTesting creates the metrics without registering them, so tests can
// construct handlers repeatedly in one process.
func NewForTesting() *Metrics {
	return &Metrics{
		PatientsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patients_created_total",
			Help: "Total patient records created",
		}),
		PatientsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patients_updated_total",
			Help: "Total patient records updated",
		}),
		PatientsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patients_deleted_total",
			Help: "Total patient records deleted",
		}),
		IdentifiersAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patient_identifiers_added_total",
			Help: "Total standalone identifiers added",
		}),
		IdentifiersRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patient_identifiers_removed_total",
			Help: "Total identifiers removed",
		}),
		MatchesScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "patient_matches_scored_total",
			Help: "Total candidate records scored, by outcome",
		}, []string{"outcome"}),
		MatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "patient_match_duration_seconds",
			Help:    "Time to score one subject against its candidate pool",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		EventsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registry_events_consumed_total",
			Help: "Total lifecycle events consumed",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registry_events_published_total",
			Help: "Total events published to the stream",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
	}
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
