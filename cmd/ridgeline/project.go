package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cuemby/ridgeline/pkg/executor"
	"github.com/cuemby/ridgeline/pkg/metadata"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(exec *executor.Executor) error {
			if err := exec.CreateProject(author(cmd), args[0]); err != nil {
				return fmt.Errorf("create project: %w", err)
			}
			fmt.Printf("✓ Project created: %s\n", args[0])
			return nil
		})
	},
}

var projectRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Mark a project removed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(exec *executor.Executor) error {
			if err := exec.RemoveProject(author(cmd), args[0]); err != nil {
				return fmt.Errorf("remove project: %w", err)
			}
			fmt.Printf("✓ Project removed: %s\n", args[0])
			return nil
		})
	},
}

var projectRestoreCmd = &cobra.Command{
	Use:   "restore NAME",
	Short: "Clear a project's removal marker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(exec *executor.Executor) error {
			if err := exec.UnremoveProject(author(cmd), args[0]); err != nil {
				return fmt.Errorf("restore project: %w", err)
			}
			fmt.Printf("✓ Project restored: %s\n", args[0])
			return nil
		})
	},
}

var projectPurgeCmd = &cobra.Command{
	Use:   "purge NAME",
	Short: "Permanently delete a removed project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(exec *executor.Executor) error {
			if err := exec.PurgeProject(author(cmd), args[0]); err != nil {
				return fmt.Errorf("purge project: %w", err)
			}
			fmt.Printf("✓ Project purged: %s\n", args[0])
			return nil
		})
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(exec *executor.Executor) error {
			reg, err := exec.CurrentRegistry()
			if err != nil {
				return fmt.Errorf("list projects: %w", err)
			}
			names := make([]string, 0, len(reg.Projects))
			for name := range reg.Projects {
				names = append(names, name)
			}
			sort.Strings(names)
			if len(names) == 0 {
				fmt.Println("No projects found")
				return nil
			}
			fmt.Printf("%-30s %-10s %s\n", "NAME", "REMOVED", "CREATED BY")
			for _, name := range names {
				p := reg.Projects[name]
				removed := "no"
				if p.Removal != nil {
					removed = "yes"
				}
				fmt.Printf("%-30s %-10s %s\n", p.Name, removed, p.CreatedAuthor)
			}
			return nil
		})
	},
}

var projectMemberAddCmd = &cobra.Command{
	Use:   "member-add PROJECT USER_ID ROLE",
	Short: "Add a member to a project (ROLE: OWNER, MEMBER, GUEST)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(exec *executor.Executor) error {
			op := metadata.Operation{
				Type:    metadata.OpAddMember,
				Author:  author(cmd),
				Project: args[0],
				UserID:  args[1],
				Role:    args[2],
			}
			if err := exec.MetadataMutation(op); err != nil {
				return fmt.Errorf("add member: %w", err)
			}
			fmt.Printf("✓ %s added to %s as %s\n", args[1], args[0], args[2])
			return nil
		})
	},
}

var projectMemberUpdateRoleCmd = &cobra.Command{
	Use:   "member-update-role PROJECT USER_ID ROLE",
	Short: "Update a project member's role",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(exec *executor.Executor) error {
			op := metadata.Operation{
				Type:    metadata.OpUpdateMemberRole,
				Author:  author(cmd),
				Project: args[0],
				UserID:  args[1],
				Role:    args[2],
			}
			if err := exec.MetadataMutation(op); err != nil {
				return fmt.Errorf("update member role: %w", err)
			}
			fmt.Printf("✓ %s's role in %s updated to %s\n", args[1], args[0], args[2])
			return nil
		})
	},
}

var projectMemberRemoveCmd = &cobra.Command{
	Use:   "member-remove PROJECT USER_ID",
	Short: "Remove a member from a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(exec *executor.Executor) error {
			op := metadata.Operation{
				Type:    metadata.OpRemoveMember,
				Author:  author(cmd),
				Project: args[0],
				UserID:  args[1],
			}
			if err := exec.MetadataMutation(op); err != nil {
				return fmt.Errorf("remove member: %w", err)
			}
			fmt.Printf("✓ %s removed from %s\n", args[1], args[0])
			return nil
		})
	},
}

func init() {
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectRemoveCmd)
	projectCmd.AddCommand(projectRestoreCmd)
	projectCmd.AddCommand(projectPurgeCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectMemberAddCmd)
	projectCmd.AddCommand(projectMemberUpdateRoleCmd)
	projectCmd.AddCommand(projectMemberRemoveCmd)
}
