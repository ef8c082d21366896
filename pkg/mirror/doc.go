// Package mirror runs cron-scheduled, zone-pinned tasks that copy content
// between the local commit engine and an external Git repository.
//
// Scheduler is pkg/reconciler.Reconciler's run loop regrounded on
// robfig/cron/v3: instead of one ticker driving a single reconcile pass,
// each enabled MirrorTaskConfig gets its own cron.Cron entry, and
// shouldRunHere decides whether this node's scheduler actually executes a
// given tick (a task pinned to zone Z only ever runs on the node in zone
// Z; a task with no zone only runs in the cluster's default zone).
//
// MirrorAccessController gates every run's remote URI against ordered
// allow/deny glob patterns before any credential is resolved or any I/O
// is attempted. listenerBroker fans onStart/onComplete/onError out to
// registered Listeners the same way pkg/watch's Watcher and
// pkg/events.Broker do: snapshot the registry under a mutex, invoke
// outside it, recover listener panics.
//
// The concrete Task implementation lives in pkg/mirror/gitadapter so this
// package stays free of any direct go-git dependency; Task and LocalStore
// are the two seams that keep pkg/mirror decoupled from both the git
// library and the Raft-backed command executor.
package mirror
