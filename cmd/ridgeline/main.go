package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/ridgeline/pkg/log"
	"github.com/cuemby/ridgeline/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ridgeline",
	Short: "Ridgeline - a highly-available, version-controlled configuration store",
	Long: `Ridgeline stores configuration as projects of named repositories,
each an ordered sequence of commits over a tree of text and JSON entries.
Writes are totally ordered through a replicated command executor; reads are
served locally and can long-poll a path or glob for the next change.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Ridgeline version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to ridgeline.yaml (optional)")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory for cluster state (overrides config file)")
	rootCmd.PersistentFlags().String("node-id", "", "Unique node ID (overrides config file)")
	rootCmd.PersistentFlags().String("bind-addr", "", "Raft bind address (overrides config file)")
	rootCmd.PersistentFlags().String("author", "", "Author attributed to mutating commands (defaults to $USER)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(repoCmd)
	rootCmd.AddCommand(mirrorCmd)
	rootCmd.AddCommand(identityCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func serveMetrics(addr string) {
	metrics.SetVersion(Version)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			fmt.Printf("Metrics server error: %v\n", err)
		}
	}()
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics (health: /health, /ready, /live)\n", addr)
}

func waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	fmt.Println("\nShutting down...")
}

// author resolves the --author flag, falling back to $USER the way the
// teacher's CLI falls back to a default node ID when one isn't given.
func author(cmd *cobra.Command) string {
	a, _ := cmd.Flags().GetString("author")
	if a != "" {
		return a
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}
