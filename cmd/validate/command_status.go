package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/store"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/utils"
)

var statusAll bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest validation run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func registerStatusCommand(root *cobra.Command) {
	root.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&statusAll, "all", "a", false, "List every job, not just unsuccessful ones")
}

func showStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	summary, err := st.LatestRunSummary()
	if err != nil {
		return err
	}
	if summary == nil {
		fmt.Println("No validation runs recorded yet")
		return nil
	}

	fmt.Printf("Run %d (%s)\n", summary.RunID, summary.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Commit: %.8s\n", summary.GitCommit)
	fmt.Printf("  Status: %s\n", summary.Status)
	fmt.Printf("  Jobs:   %d ok / %d failed / %d total\n",
		summary.SuccessfulJobs, summary.FailedJobs, summary.TotalJobs)

	var jobs []store.Job
	if statusAll {
		jobs, err = st.RunJobs(summary.RunID)
	} else {
		jobs, err = st.FailedJobs(summary.RunID)
	}
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		if !statusAll {
			fmt.Println("\n✓ All jobs succeeded")
		}
		return nil
	}

	fmt.Printf("\n  %-6s %-24s %-18s %s\n", "ISO3", "Scenario", "Status", "Submitted")
	for _, job := range jobs {
		fmt.Printf("  %-6s %-24s %-18s %s\n",
			job.Country, job.Scenario, job.JobStatus,
			utils.TimeOrZero(job.SubmittedAt).Format("15:04:05"))
	}

	return nil
}
