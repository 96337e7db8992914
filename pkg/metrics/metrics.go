// Package metrics registers and exposes the scheduling core's Prometheus
// metrics: instance counts by status, lock-hold duration, reconciliation
// cycle duration, deployment duration, and health-check dispatch counts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster/leadership metrics
	ClusterIsLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbit_cluster_is_leader",
			Help: "Whether this node is the elected scheduling leader (1 = leader, 0 = standby)",
		},
	)

	ClusterRaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbit_cluster_raft_applied_index",
			Help: "Last applied Raft log index backing the persistent store",
		},
	)

	// Instance metrics
	InstancesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orbit_instances_total",
			Help: "Total number of tracked instances by aggregate status",
		},
		[]string{"status"},
	)

	InstanceUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbit_instance_updates_total",
			Help: "Total number of instance-tracker update operations by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Scheduler actor / lock metrics
	LockHoldDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbit_lock_hold_duration_seconds",
			Help:    "Time an app id remains held in the scheduler actor's lock table",
			Buckets: prometheus.DefBuckets,
		},
	)

	LockConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbit_lock_conflicts_total",
			Help: "Total number of withLockFor calls that refused due to an intersecting lock",
		},
	)

	// Scheduler actions metrics
	ScaleDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbit_scale_decisions_total",
			Help: "Total number of scale decisions by direction (up/down/noop)",
		},
		[]string{"direction"},
	)

	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbit_reconciliation_duration_seconds",
			Help:    "Time taken for a reconcileTasks cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbit_reconciliation_cycles_total",
			Help: "Total number of reconcileTasks cycles completed",
		},
	)

	OrphanedInstancesKilledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbit_orphaned_instances_killed_total",
			Help: "Total number of instances killed because their run spec no longer exists",
		},
	)

	// Deployment metrics
	DeploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbit_deployments_total",
			Help: "Total number of deployments by outcome (finished/failed/canceled)",
		},
		[]string{"outcome"},
	)

	DeploymentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbit_deployment_duration_seconds",
			Help:    "Deployment duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	// Health check manager metrics
	HealthChecksRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbit_health_checks_registered",
			Help: "Total number of live health checks registered",
		},
	)

	HealthCheckDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbit_health_check_dispatch_total",
			Help: "Total number of health check dispatch attempts by outcome",
		},
		[]string{"outcome"},
	)

	HealthCheckKillsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbit_health_check_kills_total",
			Help: "Total number of tasks killed for exceeding maxConsecutiveFailures",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ClusterIsLeader,
		ClusterRaftAppliedIndex,
		InstancesTotal,
		InstanceUpdatesTotal,
		LockHoldDuration,
		LockConflictsTotal,
		ScaleDecisionsTotal,
		ReconciliationDuration,
		ReconciliationCyclesTotal,
		OrphanedInstancesKilledTotal,
		DeploymentsTotal,
		DeploymentDuration,
		HealthChecksRegistered,
		HealthCheckDispatchTotal,
		HealthCheckKillsTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
