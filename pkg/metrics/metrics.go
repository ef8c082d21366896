package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Repository metrics
	ProjectsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ridgeline_projects_total",
			Help: "Total number of active projects",
		},
	)

	RepositoriesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ridgeline_repositories_total",
			Help: "Total number of repositories by status",
		},
		[]string{"status"},
	)

	CommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridgeline_commits_total",
			Help: "Total number of commits applied, by project and repo",
		},
		[]string{"project", "repo"},
	)

	AppIdentitiesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ridgeline_app_identities_total",
			Help: "Total number of registered application identities",
		},
	)

	// Raft metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ridgeline_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ridgeline_raft_peers_total",
			Help: "Total number of Raft peers in the cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ridgeline_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ridgeline_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ridgeline_raft_apply_duration_seconds",
			Help:    "Time taken to apply a command through Raft, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Commit engine metrics
	PushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ridgeline_push_duration_seconds",
			Help:    "Time taken to push a commit, by project and repo",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"project", "repo"},
	)

	PushConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridgeline_push_conflicts_total",
			Help: "Total number of pushes rejected with CHANGE_CONFLICT",
		},
		[]string{"project", "repo"},
	)

	RedundantChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridgeline_redundant_changes_total",
			Help: "Total number of pushes rejected as no-op redundant changes",
		},
		[]string{"project", "repo"},
	)

	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ridgeline_query_duration_seconds",
			Help:    "Time taken to evaluate a query expression, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Watch metrics
	ActiveWatchesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ridgeline_active_watches_total",
			Help: "Number of in-flight long-poll watch requests",
		},
	)

	WatchTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ridgeline_watch_timeouts_total",
			Help: "Total number of watch requests that returned with no change before the timeout",
		},
	)

	// Quota metrics
	QuotaRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridgeline_quota_rejections_total",
			Help: "Total number of writes rejected by the per-repository write quota",
		},
		[]string{"project", "repo"},
	)

	// Mirror metrics
	MirrorRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridgeline_mirror_runs_total",
			Help: "Total number of mirror task runs by task ID and status",
		},
		[]string{"task_id", "status"},
	)

	MirrorRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ridgeline_mirror_run_duration_seconds",
			Help:    "Time taken to run a mirror task, in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task_id"},
	)

	// Reconciler / scheduler loop metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ridgeline_reconciliation_duration_seconds",
			Help:    "Time taken for a mirror scheduler tick, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ridgeline_reconciliation_cycles_total",
			Help: "Total number of mirror scheduler ticks completed",
		},
	)
)

func init() {
	prometheus.MustRegister(ProjectsTotal)
	prometheus.MustRegister(RepositoriesTotal)
	prometheus.MustRegister(CommitsTotal)
	prometheus.MustRegister(AppIdentitiesTotal)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftPeers)
	prometheus.MustRegister(RaftLogIndex)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(RaftApplyDuration)
	prometheus.MustRegister(PushDuration)
	prometheus.MustRegister(PushConflictsTotal)
	prometheus.MustRegister(RedundantChangesTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(ActiveWatchesTotal)
	prometheus.MustRegister(WatchTimeoutsTotal)
	prometheus.MustRegister(QuotaRejectionsTotal)
	prometheus.MustRegister(MirrorRunsTotal)
	prometheus.MustRegister(MirrorRunDuration)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
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
