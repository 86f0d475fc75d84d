package analytics

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/contract"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/store"
)

// CountryComparison is one country's totals under two scenarios.
type CountryComparison struct {
	Country    string
	Baseline   float64
	Comparison float64
	Difference float64
	Ratio      float64
}

// CompareScenarios diffs each country's latest totals between two
// scenarios. Countries present under only one scenario are skipped with a
// warning; the ratio is 0 when the baseline total is 0.
func CompareScenarios(st store.ResultStore, baseline, comparison, elementLabel string) ([]CountryComparison, error) {
	baseTotals, err := st.ScenarioTotals(baseline, elementLabel)
	if err != nil {
		return nil, err
	}
	compTotals, err := st.ScenarioTotals(comparison, elementLabel)
	if err != nil {
		return nil, err
	}
	if len(baseTotals) == 0 {
		return nil, contract.NewError(contract.CodeNotFound,
			"no stored results for baseline scenario "+baseline)
	}

	countries := make([]string, 0, len(baseTotals))
	for c := range baseTotals {
		countries = append(countries, c)
	}
	sort.Strings(countries)

	rows := make([]CountryComparison, 0, len(countries))
	for _, c := range countries {
		comp, ok := compTotals[c]
		if !ok {
			logrus.Warnf("country %s has no results under scenario %q", c, comparison)
			continue
		}
		base := baseTotals[c]

		row := CountryComparison{
			Country:    c,
			Baseline:   base,
			Comparison: comp,
			Difference: comp - base,
		}
		if base != 0 {
			row.Ratio = comp / base
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// RatioAgainstReference divides each country's value by its reference
// value. Countries with a zero or missing reference are dropped.
func RatioAgainstReference(values, reference map[string]float64) map[string]float64 {
	ratios := make(map[string]float64, len(values))
	for c, v := range values {
		ref, ok := reference[c]
		if !ok || ref == 0 {
			continue
		}
		ratios[c] = v / ref
	}

	return ratios
}

// DiscountedValue discounts a reading back to the base year at the given
// annual rate. Years before the base year are not inflated.
func DiscountedValue(value, rate float64, year, baseYear int) float64 {
	if year <= baseYear || rate == 0 {
		return value
	}
	return value / math.Pow(1+rate, float64(year-baseYear))
}

// DiscountedTotal sums readings discounted to the base year.
func DiscountedTotal(points []store.MetricPoint, rate float64, baseYear int) float64 {
	total := 0.0
	for _, p := range points {
		total += DiscountedValue(p.Value, rate, p.TimestampYear, baseYear)
	}
	return total
}
