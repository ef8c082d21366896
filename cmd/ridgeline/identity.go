package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cuemby/ridgeline/pkg/executor"
	"github.com/cuemby/ridgeline/pkg/metadata"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage app identities (token-bearing service principals)",
}

var identityCreateTokenCmd = &cobra.Command{
	Use:   "create-token APP_ID SECRET",
	Short: "Create a new token-backed app identity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		isSystemAdmin, _ := cmd.Flags().GetBool("system-admin")
		allowGuestAccess, _ := cmd.Flags().GetBool("allow-guest-access")
		return withExecutor(cmd, func(exec *executor.Executor) error {
			op := metadata.Operation{
				Type:             metadata.OpCreateToken,
				Author:           author(cmd),
				AppID:            args[0],
				Secret:           []byte(args[1]),
				IsSystemAdmin:    isSystemAdmin,
				AllowGuestAccess: allowGuestAccess,
			}
			if err := exec.MetadataMutation(op); err != nil {
				return fmt.Errorf("create app identity: %w", err)
			}
			fmt.Printf("✓ App identity created: %s\n", args[0])
			return nil
		})
	},
}

var identityActivateCmd = &cobra.Command{
	Use:   "activate APP_ID",
	Short: "Activate an app identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(exec *executor.Executor) error {
			op := metadata.Operation{Type: metadata.OpActivateIdentity, Author: author(cmd), AppID: args[0]}
			if err := exec.MetadataMutation(op); err != nil {
				return fmt.Errorf("activate app identity: %w", err)
			}
			fmt.Printf("✓ App identity activated: %s\n", args[0])
			return nil
		})
	},
}

var identityDeactivateCmd = &cobra.Command{
	Use:   "deactivate APP_ID",
	Short: "Deactivate an app identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(exec *executor.Executor) error {
			op := metadata.Operation{Type: metadata.OpDeactivateIdentity, Author: author(cmd), AppID: args[0]}
			if err := exec.MetadataMutation(op); err != nil {
				return fmt.Errorf("deactivate app identity: %w", err)
			}
			fmt.Printf("✓ App identity deactivated: %s\n", args[0])
			return nil
		})
	},
}

var identityDestroyCmd = &cobra.Command{
	Use:   "destroy APP_ID",
	Short: "Mark an app identity for deletion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(exec *executor.Executor) error {
			op := metadata.Operation{Type: metadata.OpDestroyIdentity, Author: author(cmd), AppID: args[0]}
			if err := exec.MetadataMutation(op); err != nil {
				return fmt.Errorf("destroy app identity: %w", err)
			}
			fmt.Printf("✓ App identity marked for deletion: %s\n", args[0])
			return nil
		})
	},
}

var identityPurgeCmd = &cobra.Command{
	Use:   "purge APP_ID",
	Short: "Permanently delete an app identity's directory entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(exec *executor.Executor) error {
			op := metadata.Operation{Type: metadata.OpPurgeAppIdentity, Author: author(cmd), AppID: args[0]}
			if err := exec.MetadataMutation(op); err != nil {
				return fmt.Errorf("purge app identity: %w", err)
			}
			fmt.Printf("✓ App identity purged: %s\n", args[0])
			return nil
		})
	},
}

var identityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List app identities",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExecutor(cmd, func(exec *executor.Executor) error {
			reg, err := exec.CurrentRegistry()
			if err != nil {
				return fmt.Errorf("list app identities: %w", err)
			}
			ids := make([]string, 0, len(reg.AppIdentities))
			for id := range reg.AppIdentities {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			if len(ids) == 0 {
				fmt.Println("No app identities found")
				return nil
			}
			fmt.Printf("%-24s %-10s %-9s %-11s %s\n", "APP ID", "KIND", "STATE", "SYS ADMIN", "GUEST ACCESS")
			for _, id := range ids {
				a := reg.AppIdentities[id]
				fmt.Printf("%-24s %-10s %-9s %-11v %v\n", a.AppID, a.Kind, a.State, a.IsSystemAdmin, a.AllowGuestAccess)
			}
			return nil
		})
	},
}

func init() {
	identityCmd.AddCommand(identityCreateTokenCmd)
	identityCmd.AddCommand(identityActivateCmd)
	identityCmd.AddCommand(identityDeactivateCmd)
	identityCmd.AddCommand(identityDestroyCmd)
	identityCmd.AddCommand(identityPurgeCmd)
	identityCmd.AddCommand(identityListCmd)

	identityCreateTokenCmd.Flags().Bool("system-admin", false, "Grant this identity system-administrator privileges")
	identityCreateTokenCmd.Flags().Bool("allow-guest-access", false, "Allow this identity to inherit guest-level repository roles")
}
