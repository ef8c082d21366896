package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/ridgeline/pkg/commit"
	"github.com/cuemby/ridgeline/pkg/config"
	"github.com/cuemby/ridgeline/pkg/executor"
	"github.com/cuemby/ridgeline/pkg/metrics"
	"github.com/cuemby/ridgeline/pkg/mirror"
	"github.com/cuemby/ridgeline/pkg/mirror/gitadapter"
	"github.com/cuemby/ridgeline/pkg/types"
)

// resolveConfig loads --config (if any) and applies the persistent
// --data-dir/--node-id flag overrides, matching the teacher's flag > file
// > default precedence.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if nodeID, _ := cmd.Flags().GetString("node-id"); nodeID != "" {
		cfg.NodeID = nodeID
	}
	if bindAddr, _ := cmd.Flags().GetString("bind-addr"); bindAddr != "" {
		cfg.BindAddr = bindAddr
	}
	return cfg, nil
}

// openExecutor opens the commit engine at cfg.DataDir and wraps it in an
// Executor. Administrative commands (project/repo/mirror management) run
// as one-shot invocations of this helper: they construct their own
// Executor, perform one operation, and Shutdown — exactly the access
// pattern documented in SPEC_FULL.md's CLI section, where a command
// "talks to a local or in-process executor.Executor" rather than a remote
// one over the wire. Co-locating a one-shot CLI invocation with a running
// `cluster init`/`cluster join` process against the same data directory is
// an operator responsibility: the underlying bbolt files serialize that
// contention with a lock-acquisition error rather than silent corruption.
func openExecutor(cfg config.Config, replicated bool) (*executor.Executor, error) {
	engine := commit.New(cfg.DataDir)
	metrics.RegisterComponent("objectstore", true, "")
	metrics.RegisterComponent("revlog", true, "")

	exec, err := executor.NewExecutor(executor.Config{
		NodeID:     cfg.NodeID,
		BindAddr:   cfg.BindAddr,
		DataDir:    cfg.DataDir,
		Replicated: replicated,
	}, engine)
	if err != nil {
		metrics.RegisterComponent("executor", false, err.Error())
		return nil, fmt.Errorf("open executor: %w", err)
	}
	metrics.RegisterComponent("executor", true, "")
	return exec, nil
}

// withExecutor opens a standalone (non-replicated) executor for the
// duration of fn, the shape every project/repo/mirror administrative
// command uses.
func withExecutor(cmd *cobra.Command, fn func(*executor.Executor) error) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	exec, err := openExecutor(cfg, false)
	if err != nil {
		return err
	}
	defer exec.Shutdown()
	return fn(exec)
}

// withReplicatedExecutor opens a replicated executor against the
// already-bootstrapped raft log at cfg.DataDir and recovers its state via
// Join (never Bootstrap, which would only be correct for a brand-new
// cluster). It is used by the one-shot raft-membership commands
// (add-voter, remove-server, info, join-token): an operator runs them
// against the same data directory a "cluster init"/"cluster join" process
// uses, with that process stopped for the duration, so the two don't
// contend over the same BoltDB files or TCP bind address.
func withReplicatedExecutor(cmd *cobra.Command, fn func(*executor.Executor) error) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	exec, err := openExecutor(cfg, true)
	if err != nil {
		return err
	}
	if err := exec.Join(); err != nil {
		return fmt.Errorf("recover raft state: %w", err)
	}
	defer exec.Shutdown()
	return fn(exec)
}

// mirrorAccessController builds a MirrorAccessController from the config
// file's mirror.accessRules section.
func mirrorAccessController(cfg config.Config) *mirror.MirrorAccessController {
	rules := make([]mirror.AccessRule, 0, len(cfg.Mirror.AccessRules))
	for _, r := range cfg.Mirror.AccessRules {
		rules = append(rules, mirror.AccessRule{Order: r.Order, Pattern: r.Pattern, Allow: r.Allow})
	}
	return mirror.NewMirrorAccessController(rules...)
}

// mirrorScheduler builds a Scheduler wired against exec's command path and
// the gitadapter's TaskFactory, loading every configured task. Callers are
// responsible for calling Start/Stop around its lifetime.
func mirrorScheduler(cfg config.Config, exec *executor.Executor) (*mirror.Scheduler, error) {
	creds := mirror.StaticCredentialResolver(cfg.Mirror.Credentials)
	sched := mirror.NewScheduler(
		cfg.Zone, cfg.DefaultZone, cfg.ClusterZones,
		mirrorAccessController(cfg),
		gitadapter.Factory(cfg.DataDir+"/mirror-work"),
		exec,
		creds,
	)
	for _, task := range cfg.Mirror.Tasks {
		if err := sched.AddTask(task); err != nil {
			return nil, fmt.Errorf("load mirror task %s: %w", task.ID, err)
		}
	}
	return sched, nil
}

// printMirrorResult renders a single mirror run outcome.
func printMirrorResult(result types.MirrorResult) {
	fmt.Printf("  Task: %s\n", result.TaskID)
	fmt.Printf("  Status: %s\n", result.Status)
	if result.Description != "" {
		fmt.Printf("  Description: %s\n", result.Description)
	}
	if result.Revision > 0 {
		fmt.Printf("  Revision: %d\n", result.Revision)
	}
}
