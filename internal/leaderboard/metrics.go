package leaderboard

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricComputeRunsTotal      = "trust_compute_runs_total"
	MetricComputeErrors         = "trust_compute_errors_total"
	MetricComputeDuration       = "trust_compute_duration_seconds"
	MetricLastComputeTimestamp  = "trust_last_compute_timestamp"
	MetricLastComputeModelCount = "trust_last_compute_model_count"
	MetricPredictionAnomalies   = "trust_prediction_anomalies_total"
)

// Metrics contains Prometheus metrics for trust score computation runs.
// All operations are thread-safe.
type Metrics struct {
	computeRunsTotal      prometheus.Counter
	computeErrors         prometheus.Counter
	computeDuration       prometheus.Histogram
	lastComputeTimestamp  prometheus.Gauge
	lastComputeModelCount prometheus.Gauge
	predictionAnomalies   *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		computeRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricComputeRunsTotal,
			Help: "Total number of trust score computation runs",
		}),
		computeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricComputeErrors,
			Help: "Total number of trust score computation errors",
		}),
		computeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricComputeDuration,
			Help:    "Histogram of trust score computation run duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		}),
		lastComputeTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricLastComputeTimestamp,
			Help: "Unix timestamp of the last trust score computation run",
		}),
		lastComputeModelCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricLastComputeModelCount,
			Help: "Number of models scored in the last computation run",
		}),
		predictionAnomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPredictionAnomalies,
			Help: "Total number of data-quality anomalies observed during scoring",
		}, []string{"kind"}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncComputeRunsTotal increments the computation run counter.
func (m *Metrics) IncComputeRunsTotal() {
	m.computeRunsTotal.Inc()
}

// IncComputeErrors increments the computation error counter.
func (m *Metrics) IncComputeErrors() {
	m.computeErrors.Inc()
}

// ObserveComputeDuration records a computation run duration sample.
func (m *Metrics) ObserveComputeDuration(seconds float64) {
	m.computeDuration.Observe(seconds)
}

// SetLastComputeTimestamp sets the last computation timestamp gauge.
func (m *Metrics) SetLastComputeTimestamp(timestamp float64) {
	m.lastComputeTimestamp.Set(timestamp)
}

// SetLastComputeModelCount sets the last computation model count gauge.
func (m *Metrics) SetLastComputeModelCount(count float64) {
	m.lastComputeModelCount.Set(count)
}

// RecordAnomaly increments the anomaly counter for a kind. Satisfies the
// scoring calculator's anomaly recorder.
func (m *Metrics) RecordAnomaly(kind string) {
	m.predictionAnomalies.WithLabelValues(kind).Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.computeRunsTotal,
		m.computeErrors,
		m.computeDuration,
		m.lastComputeTimestamp,
		m.lastComputeModelCount,
		m.predictionAnomalies,
	}
}
