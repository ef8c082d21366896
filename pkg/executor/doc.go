/*
Package executor is Ridgeline's control plane: the single point every
mutating operation passes through before it reaches a repository's
commit.Engine, whether that point is a local mutex (standalone mode) or a
Raft quorum (replicated mode).

# Architecture

	┌────────────────────────── EXECUTOR NODE ─────────────────────────┐
	│                                                                    │
	│  Executor.CreateProject / Push / MetadataMutation / ...           │
	│         │                                                         │
	│         ▼                                                         │
	│  Command{Type, Data}  ── encodeCommand ──► JSON envelope          │
	│         │                                                         │
	│         ▼                                                         │
	│  standalone: local mutex, Apply() inline                          │
	│  replicated: raft.Raft.Apply() ──► log replication ──► quorum     │
	│         │                                                         │
	│         ▼                                                         │
	│  CommandFSM.Apply(log)                                            │
	│    - StatusGate.CheckWrite()   (skipped for ForcePush/Status cmds)│
	│    - quota.Registry.Check()    (Push/ForcePush/Transform only)    │
	│    - dispatch into commit.Engine or metadata.ApplyTo{...}         │
	│         │                                                         │
	│         ▼                                                         │
	│  commit.Engine  (per-repository objectstore + revlog)             │
	└────────────────────────────────────────────────────────────────────┘

# Command catalogue

Project lifecycle: CreateProject, RemoveProject, UnremoveProject,
PurgeProject.

Repository lifecycle: CreateRepository, RemoveRepository,
UnremoveRepository, PurgeRepository.

Content: Push, ForcePush, Transform.

Administrative: UpdateServerStatus, MetadataMutation.

# Replicated mode

In replicated mode the Executor stands up a *raft.Raft instance the same
way a cluster manager bootstraps or joins one: a TCP transport, a file
snapshot store, and a pair of raft-boltdb log/stable stores, with
HeartbeatTimeout/ElectionTimeout/CommitTimeout/LeaderLeaseTimeout tuned
below the library defaults for faster failover. CommandFSM.Snapshot and
Restore are intentionally thin: repository content already survives
independently in each repository's own objectstore/revlog, so a joining
replica catches up by replaying the command log rather than by installing
an FSM-level content snapshot.

# Gates

Every Push, ForcePush, and Transform checks quota.Registry before being
applied; every command except ForcePush and UpdateServerStatus checks
quota.StatusGate.CheckWrite() first, so a node that has announced
REPLICATION_ONLY rejects ordinary writes while still accepting the
administrative commands needed to clear that state. Once shutdown has
begun, every command, administrative or not, fails with ShuttingDown.

# Join tokens

TokenManager issues short-lived, random join tokens a new node presents
when asking an existing leader to add it as a Raft voter, the same
generate/validate/revoke/cleanup shape as a cluster's own token manager.
*/
package executor
