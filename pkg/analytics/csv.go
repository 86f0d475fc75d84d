package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/iancoleman/strcase"
)

// ComparisonFileName builds a snake_case CSV file name for a scenario
// comparison, e.g. "baseline_vs_cr1_healthy_years_lived.csv".
func ComparisonFileName(baseline, comparison, elementLabel string) string {
	return fmt.Sprintf("%s_vs_%s_%s.csv",
		strcase.ToSnake(baseline), strcase.ToSnake(comparison), strcase.ToSnake(elementLabel))
}

// WriteComparisonCSV writes comparison rows with a fixed header.
func WriteComparisonCSV(rows []CountryComparison, w io.Writer) error {
	writer := csv.NewWriter(w)

	header := []string{"country", "baseline", "comparison", "difference", "ratio"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.Country,
			strconv.FormatFloat(row.Baseline, 'f', 4, 64),
			strconv.FormatFloat(row.Comparison, 'f', 4, 64),
			strconv.FormatFloat(row.Difference, 'f', 4, 64),
			strconv.FormatFloat(row.Ratio, 'f', 4, 64),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}

	return nil
}
