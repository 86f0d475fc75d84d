package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/analytics"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/api"
)

var (
	compareElement string
	compareOutput  string
)

var compareCmd = &cobra.Command{
	Use:   "compare <baseline> <comparison>",
	Short: "Compare two scenarios' stored totals per country",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return compareScenarios(args[0], args[1])
	},
}

func registerCompareCommand(root *cobra.Command) {
	root.AddCommand(compareCmd)

	compareCmd.Flags().StringVar(&compareElement, "element", api.HealthyYearsLived, "Element label to compare")
	compareCmd.Flags().StringVarP(&compareOutput, "output", "o", "", "Comparison CSV file (default derived from the scenario names)")
}

func compareScenarios(baseline, comparison string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := analytics.CompareScenarios(st, baseline, comparison, compareElement)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("No overlapping countries between the two scenarios")
		return nil
	}

	fmt.Printf("%s: %s vs %s\n\n", compareElement, baseline, comparison)
	fmt.Printf("  %-6s %14s %14s %14s %8s\n", "ISO3", "Baseline", "Comparison", "Difference", "Ratio")
	for _, row := range rows {
		fmt.Printf("  %-6s %14.2f %14.2f %14.2f %8.4f\n",
			row.Country, row.Baseline, row.Comparison, row.Difference, row.Ratio)
	}

	output := compareOutput
	if output == "" {
		output = analytics.ComparisonFileName(baseline, comparison, compareElement)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", output, err)
	}
	defer f.Close()

	if err := analytics.WriteComparisonCSV(rows, f); err != nil {
		return err
	}
	fmt.Printf("\n✓ Saved to: %s\n", output)

	return nil
}
