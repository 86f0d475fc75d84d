package main

import (
	"github.com/spf13/cobra"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive dashboard over the result store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDashboard()
	},
}

func registerTuiCommand(root *cobra.Command) {
	root.AddCommand(tuiCmd)
}

func runDashboard() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	return tui.Run(st)
}
