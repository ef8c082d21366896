/*
Package metrics provides Prometheus metrics collection and exposition for
Ridgeline.

The metrics package defines and registers all Ridgeline metrics using the
Prometheus client library, providing observability into commit throughput,
watch load, quota rejections, mirror task outcomes, and Raft replication
health. Metrics are exposed via an HTTP endpoint for scraping.

# Metrics Catalog

Repository metrics:
  - ridgeline_projects_total (gauge)
  - ridgeline_repositories_total{status} (gauge)
  - ridgeline_commits_total{project,repo} (counter)
  - ridgeline_app_identities_total (gauge)

Raft metrics:
  - ridgeline_raft_is_leader (gauge, 1 = leader)
  - ridgeline_raft_peers_total (gauge)
  - ridgeline_raft_log_index / ridgeline_raft_applied_index (gauge)
  - ridgeline_raft_apply_duration_seconds (histogram)

Commit engine metrics:
  - ridgeline_push_duration_seconds{project,repo} (histogram)
  - ridgeline_push_conflicts_total{project,repo} (counter)
  - ridgeline_redundant_changes_total{project,repo} (counter)
  - ridgeline_query_duration_seconds (histogram)

Watch metrics:
  - ridgeline_active_watches_total (gauge)
  - ridgeline_watch_timeouts_total (counter)

Quota metrics:
  - ridgeline_quota_rejections_total{project,repo} (counter)

Mirror metrics:
  - ridgeline_mirror_runs_total{task_id,status} (counter)
  - ridgeline_mirror_run_duration_seconds{task_id} (histogram)
  - ridgeline_reconciliation_duration_seconds / _cycles_total (scheduler tick)

# Usage

	timer := metrics.NewTimer()
	result, err := engine.Push(project, repo, types.HeadRevision, author, summary, changes, false)
	timer.ObserveDurationVec(metrics.PushDuration, project, repo)
	if rerr.Is(err, rerr.ChangeConflict) {
		metrics.PushConflictsTotal.WithLabelValues(project, repo).Inc()
	}

	http.Handle("/metrics", metrics.Handler())

# Health

This package also exposes /health, /ready, and /live handlers via
HealthHandler, ReadyHandler, and LivenessHandler, backed by a process-wide
HealthChecker that components register themselves with at startup
(RegisterComponent) and update as their status changes (UpdateComponent).
Readiness additionally gates on a fixed set of components the executor
cannot serve traffic without.

# Integration Points

The Collector samples project, repository and app-identity counts and Raft
state from the executor every 15 seconds, and the mirror scheduler records
per-task run outcomes, run durations and tick metrics. The commit-engine,
watch and quota metrics, ridgeline_commits_total and
ridgeline_raft_apply_duration_seconds are registered and exported, but no
package in this repository updates them.
*/
package metrics
