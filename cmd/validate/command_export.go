package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	exportRunID  int64
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a run's metrics as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun()
	},
}

func registerExportCommand(root *cobra.Command) {
	root.AddCommand(exportCmd)

	exportCmd.Flags().Int64VarP(&exportRunID, "run", "r", 0, "Run ID to export (default: latest)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: run_<id>.csv)")
}

func exportRun() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	runID := exportRunID
	if runID == 0 {
		summary, err := st.LatestRunSummary()
		if err != nil {
			return err
		}
		if summary == nil {
			return fmt.Errorf("no validation runs recorded yet")
		}
		runID = summary.RunID
	}

	output := exportOutput
	if output == "" {
		output = fmt.Sprintf("run_%d.csv", runID)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", output, err)
	}
	defer f.Close()

	n, err := st.ExportRunCSV(runID, f)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Exported %d metric(s) from run %d to %s\n", n, runID, output)
	return nil
}
