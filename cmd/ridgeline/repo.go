package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cuemby/ridgeline/pkg/executor"
	"github.com/cuemby/ridgeline/pkg/types"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage repositories within a project",
}

var repoCreateCmd = &cobra.Command{
	Use:   "create PROJECT NAME",
	Short: "Create a repository within a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		memberRole, _ := cmd.Flags().GetString("member-role")
		guestRole, _ := cmd.Flags().GetString("guest-role")

		return withExecutor(cmd, func(exec *executor.Executor) error {
			roles := &types.RepositoryProjectRoles{
				Member: types.RepositoryRole(memberRole),
				Guest:  types.RepositoryRole(guestRole),
			}
			if err := exec.CreateRepository(author(cmd), args[0], args[1], roles); err != nil {
				return fmt.Errorf("create repository: %w", err)
			}
			fmt.Printf("✓ Repository created: %s/%s\n", args[0], args[1])
			return nil
		})
	},
}

var repoRemoveCmd = &cobra.Command{
	Use:   "remove PROJECT NAME",
	Short: "Mark a repository removed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(exec *executor.Executor) error {
			if err := exec.RemoveRepository(author(cmd), args[0], args[1]); err != nil {
				return fmt.Errorf("remove repository: %w", err)
			}
			fmt.Printf("✓ Repository removed: %s/%s\n", args[0], args[1])
			return nil
		})
	},
}

var repoRestoreCmd = &cobra.Command{
	Use:   "restore PROJECT NAME",
	Short: "Clear a repository's removal marker",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(exec *executor.Executor) error {
			if err := exec.UnremoveRepository(author(cmd), args[0], args[1]); err != nil {
				return fmt.Errorf("restore repository: %w", err)
			}
			fmt.Printf("✓ Repository restored: %s/%s\n", args[0], args[1])
			return nil
		})
	},
}

var repoPurgeCmd = &cobra.Command{
	Use:   "purge PROJECT NAME",
	Short: "Permanently delete a removed repository's metadata entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(exec *executor.Executor) error {
			if err := exec.PurgeRepository(author(cmd), args[0], args[1]); err != nil {
				return fmt.Errorf("purge repository: %w", err)
			}
			fmt.Printf("✓ Repository purged: %s/%s\n", args[0], args[1])
			return nil
		})
	},
}

var repoListCmd = &cobra.Command{
	Use:   "list PROJECT",
	Short: "List repositories within a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(exec *executor.Executor) error {
			meta, err := exec.ProjectMetadata(args[0])
			if err != nil {
				return fmt.Errorf("list repositories: %w", err)
			}
			names := make([]string, 0, len(meta.Repositories))
			for name := range meta.Repositories {
				names = append(names, name)
			}
			sort.Strings(names)
			if len(names) == 0 {
				fmt.Println("No repositories found")
				return nil
			}
			fmt.Printf("%-30s %-12s %s\n", "NAME", "STATUS", "REMOVED")
			for _, name := range names {
				r := meta.Repositories[name]
				removed := "no"
				if r.Removal != nil {
					removed = "yes"
				}
				fmt.Printf("%-30s %-12s %s\n", r.Name, r.Status, removed)
			}
			return nil
		})
	},
}

var repoPushCmd = &cobra.Command{
	Use:   "push PROJECT NAME --file CHANGES.json",
	Short: "Push a batch of changes read from a JSON array of changes",
	Long: `Push applies a JSON array of changes to a repository's head tree.
Each array element follows the Change shape used throughout Ridgeline,
e.g.:

  [{"op": "UPSERT_JSON", "path": "/config.json", "content": {"a": 1}}]`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		summary, _ := cmd.Flags().GetString("summary")
		base, _ := cmd.Flags().GetInt64("base")

		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read changes file: %w", err)
		}
		var changes []types.Change
		if err := json.Unmarshal(data, &changes); err != nil {
			return fmt.Errorf("parse changes file: %w", err)
		}

		return withExecutor(cmd, func(exec *executor.Executor) error {
			result, err := exec.Push(args[0], args[1], types.Revision(base), author(cmd), summary, changes)
			if err != nil {
				return fmt.Errorf("push: %w", err)
			}
			fmt.Printf("✓ Pushed revision %d to %s/%s (%d change(s) applied)\n",
				result.Revision, args[0], args[1], len(result.ActualChanges))
			return nil
		})
	},
}

var repoFindCmd = &cobra.Command{
	Use:   "find PROJECT NAME PATTERN",
	Short: "Find entries matching a glob pattern at a revision",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		rev, _ := cmd.Flags().GetInt64("rev")

		return withExecutor(cmd, func(exec *executor.Executor) error {
			entries, head, err := exec.Find(args[0], args[1], types.Revision(rev), args[2])
			if err != nil {
				return fmt.Errorf("find: %w", err)
			}
			fmt.Printf("Revision: %d\n", head)
			for _, e := range entries {
				fmt.Printf("  %s (%s)\n", e.Path, e.Type)
			}
			return nil
		})
	},
}

func init() {
	repoCmd.AddCommand(repoCreateCmd)
	repoCmd.AddCommand(repoRemoveCmd)
	repoCmd.AddCommand(repoRestoreCmd)
	repoCmd.AddCommand(repoPurgeCmd)
	repoCmd.AddCommand(repoListCmd)
	repoCmd.AddCommand(repoPushCmd)
	repoCmd.AddCommand(repoFindCmd)

	repoCreateCmd.Flags().String("member-role", "", "Repository role inherited by project members (READ, WRITE, ADMIN)")
	repoCreateCmd.Flags().String("guest-role", "", "Repository role inherited by project guests (READ, WRITE, ADMIN)")

	repoPushCmd.Flags().StringP("file", "f", "", "JSON file containing an array of changes (required)")
	repoPushCmd.Flags().String("summary", "", "Commit summary")
	repoPushCmd.Flags().Int64("base", int64(types.HeadRevision), "Base revision to push against (defaults to HEAD)")
	_ = repoPushCmd.MarkFlagRequired("file")

	repoFindCmd.Flags().Int64("rev", int64(types.HeadRevision), "Revision to read at (defaults to HEAD)")
}
