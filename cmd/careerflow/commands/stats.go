package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/biodoia/gocareerflow/pkg/models"
	"github.com/spf13/cobra"
)

// StatsCmd rappresenta il comando stats
var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show request and workflow statistics",
	Long: `Display statistics collected by the gateway and the workflow engine.

This command reads the persisted request logs and workflow runs and
prints aggregated statistics.`,
	Example: `  # Show recent request logs
  careerflow stats requests

  # Show recent workflow runs
  careerflow stats runs

  # Show a summary of everything
  careerflow stats summary`,
}

var statsRequestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "Show recent request logs",
	Long:  `Display the most recent gateway request logs.`,
	Example: `  # Show the last 20 requests
  careerflow stats requests

  # Show the last 100 requests as JSON
  careerflow stats requests --limit 100 --json`,
	RunE: runStatsRequests,
}

var statsRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent workflow runs",
	Long:  `Display the most recent workflow runs with status and quality.`,
	Example: `  # Show the last 20 runs
  careerflow stats runs`,
	RunE: runStatsRuns,
}

var statsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show an aggregated summary",
	Long:  `Display aggregated counters for workflow runs and request outcomes.`,
	Example: `  # Show the summary
  careerflow stats summary`,
	RunE: runStatsSummary,
}

var (
	statsLimit int
	statsJSON  bool
)

func init() {
	statsRequestsCmd.Flags().IntVar(&statsLimit, "limit", 20, "Number of entries to show")
	statsRequestsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
	statsRunsCmd.Flags().IntVar(&statsLimit, "limit", 20, "Number of entries to show")
	statsRunsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")

	StatsCmd.AddCommand(statsRequestsCmd)
	StatsCmd.AddCommand(statsRunsCmd)
	StatsCmd.AddCommand(statsSummaryCmd)
}

func runStatsRequests(cmd *cobra.Command, args []string) error {
	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	logs, err := db.GetRecentLogs(statsLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch request logs: %w", err)
	}

	if statsJSON {
		return printJSON(logs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tPROVIDER\tAGENT\tMODE\tOK\tCACHE\tLIMITED\tATTEMPTS\tLATENCY")
	fmt.Fprintln(w, "----\t--------\t-----\t----\t--\t-----\t-------\t--------\t-------")

	for _, l := range logs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%dms\n",
			formatTimeSince(l.Timestamp),
			l.Provider,
			l.Agent,
			l.Mode,
			yesNo(l.Success),
			yesNo(l.CacheHit),
			yesNo(l.RateLimited),
			l.Attempts,
			l.LatencyMs,
		)
	}

	return w.Flush()
}

func runStatsRuns(cmd *cobra.Command, args []string) error {
	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.GetRecentRuns(statsLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch workflow runs: %w", err)
	}

	if statsJSON {
		return printJSON(runs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSTATUS\tQUALITY\tSTAGES\tPARALLEL\tDURATION")
	fmt.Fprintln(w, "----\t------\t-------\t------\t--------\t--------")

	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%d\t%s\t%dms\n",
			formatTimeSince(r.CreatedAt),
			r.Status,
			r.QualityScore,
			r.StagesCompleted,
			yesNo(r.ParallelExecution),
			r.ExecutionTimeMs,
		)
	}

	return w.Flush()
}

func runStatsSummary(cmd *cobra.Command, args []string) error {
	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	completed, err := db.CountRunsByStatus(models.WorkflowStatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to count workflow runs: %w", err)
	}
	degraded, err := db.CountRunsByStatus(models.WorkflowStatusDegraded)
	if err != nil {
		return fmt.Errorf("failed to count workflow runs: %w", err)
	}

	total := completed + degraded
	rate := 0.0
	if total > 0 {
		rate = float64(completed) / float64(total) * 100
	}

	fmt.Println("Workflow runs")
	fmt.Printf("  Total:     %d\n", total)
	fmt.Printf("  Completed: %d\n", completed)
	fmt.Printf("  Degraded:  %d\n", degraded)
	fmt.Printf("  Success:   %.1f%%\n", rate)

	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func formatTimeSince(t time.Time) string {
	duration := time.Since(t)
	if duration < time.Minute {
		return fmt.Sprintf("%ds ago", int(duration.Seconds()))
	}
	if duration < time.Hour {
		return fmt.Sprintf("%dm ago", int(duration.Minutes()))
	}
	if duration < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(duration.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(duration.Hours()/24))
}
