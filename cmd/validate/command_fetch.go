package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/api"
)

var (
	fetchJobName string
	fetchULID    string
	fetchElement string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch analytics for one simulation",
	Long:  "Query the analytics API for a simulation identified by ULID or by the job name that embeds it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchAnalytics()
	},
}

func registerFetchCommand(root *cobra.Command) {
	root.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&fetchJobName, "job-name", "", "Job name carrying the ULID")
	fetchCmd.Flags().StringVar(&fetchULID, "ulid", "", "Simulation ULID")
	fetchCmd.Flags().StringVar(&fetchElement, "element", api.HealthyYearsLived, "Element label to filter on")
	fetchCmd.MarkFlagsMutuallyExclusive("job-name", "ulid")
	fetchCmd.MarkFlagsOneRequired("job-name", "ulid")
}

func fetchAnalytics() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	id := fetchULID
	if id == "" {
		id, err = api.ExtractULID(fetchJobName, cfg.Environment)
		if err != nil {
			return err
		}
	}
	if !api.ValidULID(id) {
		return fmt.Errorf("malformed ULID %q", id)
	}

	query := api.DefaultQuery()
	query.Filters["element_label"] = fetchElement

	client := api.NewAnalyticsClient(cfg.AnalyticsBaseURL)
	records, err := client.Fetch(context.Background(), cfg.Environment, id, query)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No records found")
		return nil
	}

	fmt.Printf("  %-40s %6s %14s\n", "Element", "Year", "Value")
	for _, rec := range records {
		fmt.Printf("  %-40s %6d %14.2f\n", rec.ElementLabel, rec.TimestampYear, rec.Value)
	}

	return nil
}
