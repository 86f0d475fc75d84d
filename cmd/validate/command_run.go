package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/analytics"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/api"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/country"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/runner"
)

var (
	runModelFile     string
	runCountriesFile string
	runScenariosDir  string
	runCountries     []string
	runScenarios     []string
	runForce         bool
	runEnvironment   string
	runMaxInstances  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the validation matrix",
	Long:  "Submit every selected (country, scenario) combination, poll jobs to completion and record results. Combinations whose stored result is still fresh are skipped unless --force is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidation()
	},
}

func registerRunCommand(root *cobra.Command) {
	root.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runModelFile, "model", "m", "model.json", "Base model file")
	runCmd.Flags().StringVar(&runCountriesFile, "countries", "countries.json", "Countries file")
	runCmd.Flags().StringVar(&runScenariosDir, "scenarios", "scenarios", "Directory of scenario JSON files")
	runCmd.Flags().StringSliceVar(&runCountries, "country", nil, "Restrict to ISO3 codes (repeatable)")
	runCmd.Flags().StringSliceVar(&runScenarios, "scenario", nil, "Restrict to scenario names (repeatable)")
	runCmd.Flags().BoolVarP(&runForce, "force", "f", false, "Rerun combinations with fresh stored results")
	runCmd.Flags().StringVarP(&runEnvironment, "env", "e", "", "Override the configured environment")
	runCmd.Flags().IntVar(&runMaxInstances, "max-instances", 0, "Override the concurrent job ceiling")
}

func runValidation() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runEnvironment != "" {
		cfg.Environment = runEnvironment
	}
	if runMaxInstances > 0 {
		cfg.MaxInstances = runMaxInstances
	}

	countries, err := country.LoadList(runCountriesFile)
	if err != nil {
		return err
	}
	countries = country.Filter(countries, runCountries)
	fmt.Printf("Validating %d countries:\n%s\n\n", len(countries), country.DisplayList(countries))

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	client := api.NewClient(cfg.APIBaseURL)
	processor := analytics.NewProcessor(st, api.NewAnalyticsClient(cfg.AnalyticsBaseURL), cfg.Environment)
	r := runner.NewRunner(cfg, st, client, processor)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, err := r.Run(ctx, runner.Options{
		ModelPath:     runModelFile,
		CountriesFile: runCountriesFile,
		ScenariosDir:  runScenariosDir,
		Countries:     runCountries,
		Scenarios:     runScenarios,
		Force:         runForce,
	})
	if err != nil {
		return err
	}

	fmt.Printf("✓ Run %d finished: %d succeeded, %d failed, %d skipped (%d total)\n",
		summary.RunID, summary.Succeeded, summary.Failed, summary.Skipped, summary.Total)
	if summary.Failed > 0 {
		return fmt.Errorf("%d job(s) did not succeed", summary.Failed)
	}

	return nil
}
