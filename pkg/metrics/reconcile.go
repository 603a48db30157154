package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileJobMetrics records metadata for reconciliation jobs.
type ReconcileJobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	repaired *prometheus.CounterVec
	flagged  *prometheus.CounterVec
}

// NewReconcileJobMetrics registers the reconciliation metrics on the provided registerer.
func NewReconcileJobMetrics(reg prometheus.Registerer) *ReconcileJobMetrics {
	if reg == nil {
		return &ReconcileJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reconcile_job_duration_seconds",
		Help:    "Duration of reconciliation jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_job_success",
		Help: "Successful reconciliation job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_job_failure",
		Help: "Failed reconciliation job executions.",
	}, []string{"job"})
	repaired := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_records_repaired",
		Help: "Inconsistent records repaired by reconciliation jobs.",
	}, []string{"job"})
	flagged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_records_flagged",
		Help: "Inconsistent records flagged for operator attention.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure, repaired, flagged)
	return &ReconcileJobMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		repaired: repaired,
		flagged:  flagged,
	}
}

// ObserveDuration records the duration for the named job.
func (m *ReconcileJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (m *ReconcileJobMetrics) IncSuccess(job string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (m *ReconcileJobMetrics) IncFailure(job string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// AddRepaired counts records a job brought back into a consistent state.
func (m *ReconcileJobMetrics) AddRepaired(job string, count int) {
	if m == nil || m.repaired == nil || count <= 0 {
		return
	}
	m.repaired.WithLabelValues(normalizeLabel(job)).Add(float64(count))
}

// AddFlagged counts records a job could not repair automatically.
func (m *ReconcileJobMetrics) AddFlagged(job string, count int) {
	if m == nil || m.flagged == nil || count <= 0 {
		return
	}
	m.flagged.WithLabelValues(normalizeLabel(job)).Add(float64(count))
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
