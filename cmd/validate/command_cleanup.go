package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanupKeep int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old validation runs",
	Long:  "Delete every run beyond the most recent ones, removing its metrics and job results as well.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cleanupRuns()
	},
}

func registerCleanupCommand(root *cobra.Command) {
	root.AddCommand(cleanupCmd)

	cleanupCmd.Flags().IntVarP(&cleanupKeep, "keep", "k", 0, "Number of runs to keep (default: configured keep_runs)")
}

func cleanupRuns() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	keep := cleanupKeep
	if keep <= 0 {
		keep = cfg.KeepRuns
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	removed, err := st.CleanupOldRuns(keep)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Removed %d old run(s), keeping the %d most recent\n", removed, keep)
	return nil
}
