package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/segmentflow/rebalancer/types"
)

// PrometheusCollector implements types.MetricsCollector backed by
// Prometheus. Registration is lazy: the first recorded metric triggers
// MustRegister for the whole set, so constructing a collector that is
// never used never touches the registry.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	runsTotal              *prometheus.CounterVec
	runDuration            *prometheus.HistogramVec
	rollbacksTotal         *prometheus.CounterVec
	forceCommitTotal       *prometheus.CounterVec
	forceCommitDuration    *prometheus.HistogramVec
	convergenceTimeouts    *prometheus.CounterVec
	inProgress             prometheus.Gauge
	stepSegmentsMoved      *prometheus.HistogramVec
	stepGroupsAdmitted     *prometheus.HistogramVec
	batchOverridesTotal    *prometheus.CounterVec
	remainingReplicas      *prometheus.GaugeVec
	storeOperationDuration *prometheus.HistogramVec
	storeOperationErrors   *prometheus.CounterVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector. reg
// defaults to prometheus.DefaultRegisterer and namespace defaults to
// "rebalancer" when left empty.
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "rebalancer"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "runs_total",
			Help:      "Total rebalance runs by terminal status.",
		}, []string{"table", "status"})

		p.runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a rebalance run by terminal status.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s .. ~34min
		}, []string{"table", "status"})

		p.rollbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "rollbacks_total",
			Help:      "Total IdealState CAS version collisions.",
		}, []string{"table"})

		p.forceCommitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "force_commit_rounds_total",
			Help:      "Total force-commit rounds by outcome.",
		}, []string{"table", "result"})

		p.forceCommitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      "force_commit_duration_seconds",
			Help:      "Duration of a force-commit round.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table"})

		p.convergenceTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "convergence_timeouts_total",
			Help:      "Total external-view stabilization timeouts, by whether bestEffort downgraded them.",
		}, []string{"table", "downgraded"})

		p.inProgress = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      "jobs_in_progress",
			Help:      "Number of rebalance jobs currently running in this process.",
		})

		p.stepSegmentsMoved = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      "planner_step_segments_moved",
			Help:      "Segments moved per planner step.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"table"})

		p.stepGroupsAdmitted = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      "planner_step_groups_admitted",
			Help:      "Strict-replica-group admissions per planner step.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"table"})

		p.batchOverridesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "planner_batch_overrides_total",
			Help:      "Strict-mode admissions that exceeded batchSizePerServer as a server's first partition of the step.",
		}, []string{"table", "server"})

		p.remainingReplicas = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      "predicate_remaining_replicas",
			Help:      "Convergence predicate's remaining-replica count for the current monitored set.",
		}, []string{"table"})

		p.storeOperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Placement store gateway call latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"})

		p.storeOperationErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "store_operation_errors_total",
			Help:      "Placement store gateway call failures by operation.",
		}, []string{"op"})

		p.reg.MustRegister(
			p.runsTotal, p.runDuration, p.rollbacksTotal, p.forceCommitTotal,
			p.forceCommitDuration, p.convergenceTimeouts, p.inProgress,
			p.stepSegmentsMoved, p.stepGroupsAdmitted, p.batchOverridesTotal,
			p.remainingReplicas, p.storeOperationDuration, p.storeOperationErrors,
		)
	})
}

// RecordRun records a terminal classification for a completed run.
func (p *PrometheusCollector) RecordRun(table string, status types.TerminalStatus, duration float64) {
	p.ensureRegistered()
	p.runsTotal.WithLabelValues(table, status.String()).Inc()
	p.runDuration.WithLabelValues(table, status.String()).Observe(duration)
}

// RecordRollback records a CAS version collision.
func (p *PrometheusCollector) RecordRollback(table string) {
	p.ensureRegistered()
	p.rollbacksTotal.WithLabelValues(table).Inc()
}

// RecordForceCommit records a force-commit round, successful or not.
func (p *PrometheusCollector) RecordForceCommit(table string, _ int, success bool, duration float64) {
	p.ensureRegistered()
	result := "success"
	if !success {
		result = "failure"
	}
	p.forceCommitTotal.WithLabelValues(table, result).Inc()
	p.forceCommitDuration.WithLabelValues(table).Observe(duration)
}

// RecordConvergenceTimeout records an EV stabilization timeout.
func (p *PrometheusCollector) RecordConvergenceTimeout(table string, downgraded bool) {
	p.ensureRegistered()
	p.convergenceTimeouts.WithLabelValues(table, boolLabel(downgraded)).Inc()
}

// SetInProgress sets the count of concurrently running jobs.
func (p *PrometheusCollector) SetInProgress(count int) {
	p.ensureRegistered()
	p.inProgress.Set(float64(count))
}

// RecordStep records one planner invocation.
func (p *PrometheusCollector) RecordStep(table string, segmentsMoved int, groupsAdmitted int) {
	p.ensureRegistered()
	p.stepSegmentsMoved.WithLabelValues(table).Observe(float64(segmentsMoved))
	p.stepGroupsAdmitted.WithLabelValues(table).Observe(float64(groupsAdmitted))
}

// RecordBatchOverride records a strict-mode batch-size override.
func (p *PrometheusCollector) RecordBatchOverride(table string, server string) {
	p.ensureRegistered()
	p.batchOverridesTotal.WithLabelValues(table, server).Inc()
}

// RecordRemainingReplicas records the convergence predicate's result.
func (p *PrometheusCollector) RecordRemainingReplicas(table string, remaining int) {
	p.ensureRegistered()
	p.remainingReplicas.WithLabelValues(table).Set(float64(remaining))
}

// RecordStoreOperation records one gateway call's latency and outcome.
func (p *PrometheusCollector) RecordStoreOperation(op string, duration float64, err error) {
	p.ensureRegistered()
	p.storeOperationDuration.WithLabelValues(op).Observe(duration)
	if err != nil {
		p.storeOperationErrors.WithLabelValues(op).Inc()
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}

	return "false"
}
