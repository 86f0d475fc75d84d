package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/scenario"
)

var (
	buildConfigsDir   string
	buildComponents   string
	buildOutputDir    string
	buildSingleConfig string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build scenario files from YAML configs",
	Long:  "Compose scenarios by merging component JSON fragments per a YAML build config. Without --config, every *.yml under the configs directory is built.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return buildScenarios()
	},
}

func registerBuildCommand(root *cobra.Command) {
	root.AddCommand(buildCmd)

	buildCmd.Flags().StringVar(&buildSingleConfig, "config", "", "Build a single YAML config")
	buildCmd.Flags().StringVar(&buildConfigsDir, "configs", "scenario_configs", "Directory of YAML build configs")
	buildCmd.Flags().StringVar(&buildComponents, "components", "components", "Directory of component JSON fragments")
	buildCmd.Flags().StringVar(&buildOutputDir, "output-dir", "scenarios", "Directory scenario files are written to")
}

func buildScenarios() error {
	configs := []string{buildSingleConfig}
	if buildSingleConfig == "" {
		var err error
		configs, err = scenario.BuildAll(buildConfigsDir)
		if err != nil {
			return err
		}
		if len(configs) == 0 {
			return fmt.Errorf("no build configs found in %q", buildConfigsDir)
		}
	}

	for _, configPath := range configs {
		sc, output, err := scenario.BuildFromConfig(configPath, buildComponents)
		if err != nil {
			return err
		}

		outputPath := filepath.Join(buildOutputDir, output)
		if err := sc.Save(outputPath); err != nil {
			return err
		}

		fmt.Printf("✓ Built %s (%d parameters)\n", outputPath, len(sc.Parameters))
	}

	return nil
}
