package main

import (
	"github.com/spf13/cobra"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/config"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/store"
	storesql "github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/store/sql"
	"github.com/sirupsen/logrus"
)

var (
	configFile    string
	storeOverride string
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "validate",
	Short: "Multi-country simulation validation pipeline",
	Long:  "validate builds scenarios, submits simulation jobs across countries, polls them to completion and records results in a local database",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "validation.json", "Config file path (missing file uses defaults)")
	rootCmd.PersistentFlags().StringVar(&storeOverride, "database", "", "Override the configured results database URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	registerRunCommand(rootCmd)
	registerStatusCommand(rootCmd)
	registerExportCommand(rootCmd)
	registerCleanupCommand(rootCmd)
	registerCompareCommand(rootCmd)
	registerQueryCommand(rootCmd)
	registerBuildCommand(rootCmd)
	registerApplyCommand(rootCmd)
	registerFetchCommand(rootCmd)
	registerTuiCommand(rootCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if storeOverride != "" {
		cfg.StoreURL = storeOverride
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	cfg.ApplyLogLevel()
	return cfg, nil
}

func openStore(cfg *config.Config) (store.ResultStore, error) {
	return storesql.NewStore(cfg.StoreURL, logrus.StandardLogger())
}
