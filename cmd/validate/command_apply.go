package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/scenario"
)

var (
	applyModelFile    string
	applyScenarioFile string
	applyOutputFile   string
	applyCountry      string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a scenario to a model file",
	Long:  "Load a model, substitute every scenario parameter via its JSONPath expressions and write the result. With --country the scenario's Country parameter is rebound first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return applyScenario()
	},
}

func registerApplyCommand(root *cobra.Command) {
	root.AddCommand(applyCmd)

	applyCmd.Flags().StringVarP(&applyModelFile, "model", "m", "model.json", "Base model file")
	applyCmd.Flags().StringVarP(&applyScenarioFile, "scenario", "s", "", "Scenario file")
	applyCmd.Flags().StringVarP(&applyOutputFile, "output", "o", "output.json", "Output model file")
	applyCmd.Flags().StringVar(&applyCountry, "country", "", "Rebind the Country parameter to this ISO3 code")
	applyCmd.MarkFlagRequired("scenario")
}

func applyScenario() error {
	model, err := scenario.LoadModel(applyModelFile)
	if err != nil {
		return err
	}

	sc, err := scenario.Load(applyScenarioFile)
	if err != nil {
		return err
	}

	if applyCountry != "" {
		sc, err = sc.ForCountry(applyCountry)
		if err != nil {
			return err
		}
	}

	result, err := scenario.Apply(model, sc)
	if err != nil {
		return err
	}

	if err := scenario.SaveModel(model, applyOutputFile); err != nil {
		return err
	}

	fmt.Printf("✓ Applied %d parameter(s) to %s\n", result.Applied, applyOutputFile)
	for _, w := range result.Warnings {
		fmt.Printf("  ! %s: %s (%s)\n", w.Parameter, w.Reason, w.Path)
	}

	return nil
}
