// Package metrics exposes Prometheus instrumentation for pipeline runs.
//
// A nil *Metrics is valid and records nothing, so components can take an
// optional metrics handle without branching at every call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "horus"

// Stage outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Metrics holds the collectors for one process.
type Metrics struct {
	stageDuration  *prometheus.HistogramVec // By dataset and stage
	stageOutcomes  *prometheus.CounterVec   // By stage and outcome
	unitOutcomes   *prometheus.CounterVec   // By dataset and outcome (success/failed)
	fetchOutcomes  *prometheus.CounterVec   // By state (found/not_found/failed)
	fetchRetries   prometheus.Counter
	rateLimitWaits prometheus.Counter
	fetchesActive  prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// A nil registerer yields nil metrics, which disables instrumentation.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Time spent executing a pipeline stage",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"dataset", "stage"}),

		stageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stages_total",
			Help:      "Pipeline stages by outcome",
		}, []string{"stage", "outcome"}), // outcome: completed, skipped, failed

		unitOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "units_total",
			Help:      "Units processed by outcome",
		}, []string{"dataset", "outcome"}),

		fetchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "labels",
			Name:      "fetches_total",
			Help:      "Label fetches by terminal state",
		}, []string{"state"}),

		fetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "labels",
			Name:      "retries_total",
			Help:      "Label fetch attempts retried after an upstream error",
		}),

		rateLimitWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "labels",
			Name:      "rate_limit_waits_total",
			Help:      "Waits caused by an upstream rate limit signal",
		}),

		fetchesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "labels",
			Name:      "fetches_in_flight",
			Help:      "Label fetches currently in flight",
		}),
	}

	collectors := []prometheus.Collector{
		m.stageDuration,
		m.stageOutcomes,
		m.unitOutcomes,
		m.fetchOutcomes,
		m.fetchRetries,
		m.rateLimitWaits,
		m.fetchesActive,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveStage records one stage execution or skip.
func (m *Metrics) ObserveStage(dataset, stage, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageOutcomes.WithLabelValues(stage, outcome).Inc()
	if outcome != OutcomeSkipped {
		m.stageDuration.WithLabelValues(dataset, stage).Observe(elapsed.Seconds())
	}
}

// ObserveUnit records a finished unit.
func (m *Metrics) ObserveUnit(dataset string, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failed"
	}
	m.unitOutcomes.WithLabelValues(dataset, outcome).Inc()
}

// ObserveFetch records a label fetch reaching a terminal state.
func (m *Metrics) ObserveFetch(state string) {
	if m == nil {
		return
	}
	m.fetchOutcomes.WithLabelValues(state).Inc()
}

// IncRetry records a retried fetch attempt.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.fetchRetries.Inc()
}

// IncRateLimitWait records a wait on an upstream rate limit signal.
func (m *Metrics) IncRateLimitWait() {
	if m == nil {
		return
	}
	m.rateLimitWaits.Inc()
}

// FetchStarted marks a fetch as in flight.
func (m *Metrics) FetchStarted() {
	if m == nil {
		return
	}
	m.fetchesActive.Inc()
}

// FetchDone marks an in-flight fetch as finished.
func (m *Metrics) FetchDone() {
	if m == nil {
		return
	}
	m.fetchesActive.Dec()
}
