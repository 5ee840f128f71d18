package main

import (
	"fmt"
	"os"

	"github.com/biodoia/gocareerflow/cmd/careerflow/commands"
	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "careerflow",
		Short: "CareerFlow - Adaptive multi-provider task orchestration",
		Long: `CareerFlow - Adaptive Multi-Provider Task Orchestration

An orchestration core that routes generation tasks across multiple
AI providers with failover, retry, rate limiting and response caching,
and runs multi-stage career analysis workflows with adaptive routing.

Features:
  • Multi-provider gateway with failover, aggregate, compare and structured modes
  • Sliding window rate limiting and response caching
  • Multi-stage workflow with adaptive parallel routing
  • Per-agent performance tracking and quality gating
  • Comprehensive statistics and monitoring`,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "Log level (debug, info, warn, error)")

	// Add all commands
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ProvidersCmd)
	rootCmd.AddCommand(commands.StatsCmd)
	rootCmd.AddCommand(commands.MigrateCmd)

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("CareerFlow version %s\n", version)
			fmt.Printf("Commit: %s\n", commit)
		},
	})

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
