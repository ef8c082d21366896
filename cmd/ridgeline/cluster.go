package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/ridgeline/pkg/executor"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage the Ridgeline raft cluster",
}

var clusterInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap a new single-node Ridgeline cluster",
	Long: `Bootstrap a new Ridgeline raft cluster with this node as the sole
voter. Additional managers are added afterwards with "cluster add-voter",
run against this node once it has become leader (always true immediately
after a fresh bootstrap).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		fmt.Println("Bootstrapping Ridgeline cluster...")
		fmt.Printf("  Node ID: %s\n", cfg.NodeID)
		fmt.Printf("  Raft Address: %s\n", cfg.BindAddr)
		fmt.Printf("  Data Directory: %s\n", cfg.DataDir)
		fmt.Println()

		exec, err := openExecutor(cfg, true)
		if err != nil {
			return err
		}
		if err := exec.Bootstrap(); err != nil {
			return fmt.Errorf("bootstrap cluster: %w", err)
		}
		fmt.Println("✓ Raft cluster bootstrapped")

		sched, err := mirrorScheduler(cfg, exec)
		if err != nil {
			return err
		}
		sched.Start()
		fmt.Println("✓ Mirror scheduler started")

		serveMetrics(metricsAddr)

		token, err := exec.GenerateJoinToken()
		if err == nil {
			fmt.Println()
			fmt.Println("Join token (valid 24h) for adding managers with cluster add-voter:")
			fmt.Printf("  %s\n", token.Token)
		}

		fmt.Println()
		fmt.Println("Ridgeline node is running. Press Ctrl+C to stop.")
		waitForShutdown()

		sched.Stop()
		if err := exec.Shutdown(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

var clusterJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Start this node's raft instance and wait to be added as a voter",
	Long: `Start this node's own raft instance without bootstrapping a new
cluster. The node waits here; an operator must separately run
"cluster add-voter <node-id> <bind-addr>" against the current leader to
actually admit it to the cluster's voter configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		fmt.Println("Starting Ridgeline raft instance...")
		fmt.Printf("  Node ID: %s\n", cfg.NodeID)
		fmt.Printf("  Raft Address: %s\n", cfg.BindAddr)
		fmt.Println()

		exec, err := openExecutor(cfg, true)
		if err != nil {
			return err
		}
		if err := exec.Join(); err != nil {
			return fmt.Errorf("start raft instance: %w", err)
		}
		fmt.Println("✓ Raft instance started")
		fmt.Printf("Ask the cluster leader to run: ridgeline cluster add-voter %s %s\n", cfg.NodeID, cfg.BindAddr)

		sched, err := mirrorScheduler(cfg, exec)
		if err != nil {
			return err
		}
		sched.Start()

		serveMetrics(metricsAddr)

		fmt.Println()
		fmt.Println("Ridgeline node is running. Press Ctrl+C to stop.")
		waitForShutdown()

		sched.Stop()
		if err := exec.Shutdown(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

var clusterAddVoterCmd = &cobra.Command{
	Use:   "add-voter NODE_ID BIND_ADDR",
	Short: "Add a node as a raft voter (run against the leader)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReplicatedExecutor(cmd, func(exec *executor.Executor) error {
			if err := exec.AddVoter(args[0], args[1]); err != nil {
				return fmt.Errorf("add voter: %w", err)
			}
			fmt.Printf("✓ %s (%s) added as a voter\n", args[0], args[1])
			return nil
		})
	},
}

var clusterRemoveServerCmd = &cobra.Command{
	Use:   "remove-server NODE_ID",
	Short: "Remove a node from the cluster (run against the leader)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReplicatedExecutor(cmd, func(exec *executor.Executor) error {
			if err := exec.RemoveServer(args[0]); err != nil {
				return fmt.Errorf("remove server: %w", err)
			}
			fmt.Printf("✓ %s removed from the cluster\n", args[0])
			return nil
		})
	},
}

var clusterInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display this node's view of the raft cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReplicatedExecutor(cmd, func(exec *executor.Executor) error {
			fmt.Printf("Leader: %v (addr: %s)\n", exec.IsLeader(), exec.LeaderAddr())
			stats := exec.RaftStats()
			if stats == nil {
				fmt.Println("Running in standalone mode (no raft log).")
				return nil
			}
			fmt.Println("Raft state:")
			for _, k := range []string{"state", "last_log_index", "applied_index", "leader", "num_peers"} {
				fmt.Printf("  %s: %v\n", k, stats[k])
			}
			return nil
		})
	},
}

var clusterJoinTokenCmd = &cobra.Command{
	Use:   "join-token",
	Short: "Generate a 24h join token for cluster add-voter",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReplicatedExecutor(cmd, func(exec *executor.Executor) error {
			token, err := exec.GenerateJoinToken()
			if err != nil {
				return fmt.Errorf("generate join token: %w", err)
			}
			fmt.Println("Join token (valid 24h):")
			fmt.Printf("  %s\n", token.Token)
			return nil
		})
	},
}

func init() {
	clusterCmd.AddCommand(clusterInitCmd)
	clusterCmd.AddCommand(clusterJoinCmd)
	clusterCmd.AddCommand(clusterAddVoterCmd)
	clusterCmd.AddCommand(clusterRemoveServerCmd)
	clusterCmd.AddCommand(clusterInfoCmd)
	clusterCmd.AddCommand(clusterJoinTokenCmd)

	clusterInitCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Prometheus metrics listen address")
	clusterJoinCmd.Flags().String("metrics-addr", "127.0.0.1:9091", "Prometheus metrics listen address")
}
