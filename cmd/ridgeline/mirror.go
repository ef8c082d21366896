package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/ridgeline/pkg/config"
	"github.com/cuemby/ridgeline/pkg/executor"
	"github.com/cuemby/ridgeline/pkg/types"
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Manage git mirror tasks",
}

var mirrorAddCmd = &cobra.Command{
	Use:   "add TASK_ID",
	Short: "Add (or replace) a mirror task in the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		direction, _ := cmd.Flags().GetString("direction")
		localRepo, _ := cmd.Flags().GetString("local-repo")
		localPath, _ := cmd.Flags().GetString("local-path")
		remoteURI, _ := cmd.Flags().GetString("remote-uri")
		remoteBranch, _ := cmd.Flags().GetString("remote-branch")
		credentialRef, _ := cmd.Flags().GetString("credential-ref")
		schedule, _ := cmd.Flags().GetString("schedule")
		zone, _ := cmd.Flags().GetString("zone")
		gitignore, _ := cmd.Flags().GetString("gitignore")

		task := types.MirrorTaskConfig{
			ID:            args[0],
			Enabled:       true,
			Schedule:      schedule,
			Direction:     types.MirrorDirection(direction),
			LocalRepo:     localRepo,
			LocalPath:     localPath,
			RemoteURI:     remoteURI,
			RemoteBranch:  remoteBranch,
			CredentialRef: credentialRef,
			Gitignore:     gitignore,
			Zone:          zone,
		}

		replaced := false
		for i, existing := range cfg.Mirror.Tasks {
			if existing.ID == task.ID {
				cfg.Mirror.Tasks[i] = task
				replaced = true
				break
			}
		}
		if !replaced {
			cfg.Mirror.Tasks = append(cfg.Mirror.Tasks, task)
		}

		if err := config.Save(path, cfg); err != nil {
			return err
		}
		fmt.Printf("✓ Mirror task saved: %s\n", task.ID)
		return nil
	},
}

var mirrorRemoveCmd = &cobra.Command{
	Use:   "remove TASK_ID",
	Short: "Remove a mirror task from the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		tasks := cfg.Mirror.Tasks[:0]
		found := false
		for _, t := range cfg.Mirror.Tasks {
			if t.ID == args[0] {
				found = true
				continue
			}
			tasks = append(tasks, t)
		}
		if !found {
			return fmt.Errorf("mirror task %s not found", args[0])
		}
		cfg.Mirror.Tasks = tasks
		if err := config.Save(path, cfg); err != nil {
			return err
		}
		fmt.Printf("✓ Mirror task removed: %s\n", args[0])
		return nil
	},
}

var mirrorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured mirror tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		if len(cfg.Mirror.Tasks) == 0 {
			fmt.Println("No mirror tasks configured")
			return nil
		}
		fmt.Printf("%-20s %-9s %-16s %-30s %s\n", "ID", "ENABLED", "DIRECTION", "REMOTE", "SCHEDULE")
		for _, t := range cfg.Mirror.Tasks {
			fmt.Printf("%-20s %-9v %-16s %-30s %s\n", t.ID, t.Enabled, t.Direction, t.RemoteURI, t.Schedule)
		}
		return nil
	},
}

var mirrorRunNowCmd = &cobra.Command{
	Use:   "run-now TASK_ID",
	Short: "Run a configured mirror task immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		return withExecutor(cmd, func(exec *executor.Executor) error {
			sched, err := mirrorScheduler(cfg, exec)
			if err != nil {
				return err
			}
			result, err := sched.RunNow(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("run mirror task: %w", err)
			}
			printMirrorResult(result)
			return nil
		})
	},
}

func init() {
	mirrorCmd.AddCommand(mirrorAddCmd)
	mirrorCmd.AddCommand(mirrorRemoveCmd)
	mirrorCmd.AddCommand(mirrorListCmd)
	mirrorCmd.AddCommand(mirrorRunNowCmd)

	mirrorAddCmd.Flags().String("direction", string(types.RemoteToLocal), "REMOTE_TO_LOCAL or LOCAL_TO_REMOTE")
	mirrorAddCmd.Flags().String("local-repo", "", "Local repository as project/repo (required)")
	mirrorAddCmd.Flags().String("local-path", "", "Subtree prefix within the local repository")
	mirrorAddCmd.Flags().String("remote-uri", "", "Remote git URI (required)")
	mirrorAddCmd.Flags().String("remote-branch", "main", "Remote branch")
	mirrorAddCmd.Flags().String("credential-ref", "", "Credential reference into mirror.credentials")
	mirrorAddCmd.Flags().String("schedule", "", "Cron schedule expression (required)")
	mirrorAddCmd.Flags().String("zone", "", "Zone this task is pinned to (empty = default zone)")
	mirrorAddCmd.Flags().String("gitignore", "", "Newline-separated exclude patterns")
	_ = mirrorAddCmd.MarkFlagRequired("local-repo")
	_ = mirrorAddCmd.MarkFlagRequired("remote-uri")
	_ = mirrorAddCmd.MarkFlagRequired("schedule")
}
