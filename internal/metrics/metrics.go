// Package metrics exposes the framework's own operation counters as
// Prometheus metrics: secret lookups by store and outcome, keystore
// read/write operations, and worker job lifecycle. An embedding
// application opts in by calling InitMetrics once at startup and, if it
// wants an HTTP scrape endpoint, starting a Server.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	secretLookupsTotal     *prometheus.CounterVec
	secretLookupDuration   *prometheus.HistogramVec
	keystoreOperationsTotal *prometheus.CounterVec
	workerJobsStartedTotal prometheus.Counter
	workerActiveGauge      prometheus.Gauge

	metricsOnce       sync.Once
	metricsRegistered bool
)

// InitMetrics registers every collector with the default Prometheus
// registry. Safe to call more than once; only the first call has effect.
func InitMetrics() {
	metricsOnce.Do(func() {
		secretLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aegis_secret_lookups_total",
				Help: "Total number of secret lookups by requested store and outcome.",
			},
			[]string{"store", "outcome"},
		)

		secretLookupDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aegis_secret_lookup_duration_seconds",
				Help:    "Duration of a secret lookup across local and cloud stores.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"outcome"},
		)

		keystoreOperationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aegis_keystore_operations_total",
				Help: "Total number of keystore file operations by operation and result.",
			},
			[]string{"operation", "result"},
		)

		workerJobsStartedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "aegis_worker_jobs_started_total",
				Help: "Total number of worker jobs started.",
			},
		)

		workerActiveGauge = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "aegis_worker_processes_active",
				Help: "Number of worker processes currently running.",
			},
		)

		metricsRegistered = true
	})
}

// Recorder is the narrow interface application code instruments against;
// its methods are no-ops until InitMetrics has run, so instrumented code
// never needs its own enabled/disabled branch.
type Recorder struct{}

// NewRecorder returns a Recorder. Its methods only take effect after
// InitMetrics has registered the underlying collectors.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordSecretLookup records one resolution attempt: store is the store
// name the caller passes, recorded as "none" when empty; outcome is "hit",
// "miss", or "default". The secret manager passes the store name the lookup
// was narrowed to, so a lookup that was not narrowed to one store is
// recorded under "none" whichever store answered it.
func (r *Recorder) RecordSecretLookup(store, outcome string, durationSeconds float64) {
	if !metricsRegistered {
		return
	}
	if store == "" {
		store = "none"
	}
	secretLookupsTotal.WithLabelValues(store, outcome).Inc()
	secretLookupDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

// RecordKeystoreOperation records one load/save against the encrypted
// keystore file. result is "ok" or "error".
func (r *Recorder) RecordKeystoreOperation(operation, result string) {
	if !metricsRegistered {
		return
	}
	keystoreOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordWorkerJobStarted increments the started-jobs counter.
func (r *Recorder) RecordWorkerJobStarted() {
	if !metricsRegistered {
		return
	}
	workerJobsStartedTotal.Inc()
}

// SetActiveWorkers sets the current count of running worker processes.
func (r *Recorder) SetActiveWorkers(n int) {
	if !metricsRegistered {
		return
	}
	workerActiveGauge.Set(float64(n))
}

// IsRegistered reports whether InitMetrics has run, for tests that need
// to assert on collector state without sharing package-level globals.
func IsRegistered() bool {
	return metricsRegistered
}
