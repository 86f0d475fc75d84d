package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var queryExamples bool

var queryCmd = &cobra.Command{
	Use:   "query <SQL>",
	Short: "Run a SQL query against the results database",
	Long:  "Run an ad-hoc SQL query against the validation results database and print the rows. Use --examples to list common queries over the schema.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if queryExamples {
			showQueryExamples()
			return nil
		}
		if len(args) == 0 {
			return fmt.Errorf("provide a SQL statement or --examples")
		}
		return runQuery(args[0])
	},
}

func registerQueryCommand(root *cobra.Command) {
	root.AddCommand(queryCmd)

	queryCmd.Flags().BoolVar(&queryExamples, "examples", false, "Show common query examples")
}

func runQuery(sqlText string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	columns, rows, err := st.Query(sqlText)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("No results returned")
		return nil
	}

	header := strings.Join(columns, "\t")
	fmt.Println(header)
	fmt.Println(strings.Repeat("-", len(header)))
	for _, row := range rows {
		fmt.Println(strings.Join(row, "\t"))
	}
	fmt.Printf("\n%d rows returned\n", len(rows))

	return nil
}

func showQueryExamples() {
	examples := []struct {
		description string
		sql         string
	}{
		{"Show all validation runs",
			"SELECT * FROM validation_runs ORDER BY timestamp DESC"},
		{"Show unsuccessful jobs from the latest run",
			"SELECT jr.country, jr.scenario, jr.job_status FROM job_results jr WHERE jr.run_id = (SELECT MAX(run_id) FROM validation_runs) AND jr.job_status != 'success'"},
		{"Show metrics for one country",
			"SELECT * FROM metrics WHERE country = 'UGA' ORDER BY timestamp_year"},
		{"Show average metric value by country",
			"SELECT country, AVG(value) AS avg_value FROM metrics WHERE element_label = 'Healthy Years Lived' GROUP BY country"},
		{"Show recent commits",
			"SELECT DISTINCT git_commit, timestamp FROM validation_runs ORDER BY timestamp DESC LIMIT 5"},
		{"Show success rate by scenario",
			"SELECT scenario, COUNT(*) AS total, SUM(CASE WHEN job_status = 'success' THEN 1 ELSE 0 END) AS successful FROM job_results GROUP BY scenario"},
	}

	fmt.Println("Common query examples:")
	fmt.Println()
	for i, e := range examples {
		fmt.Printf("%d. %s\n   %s\n\n", i+1, e.description, e.sql)
	}
}
