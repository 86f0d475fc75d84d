package analytics_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/analytics"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/contract"
	"github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/store"
	storesql "github.com/ForecastHealth/ncd-chronic-respiratory-disease-asthma/pkg/store/sql"
)

func newTestStore(t *testing.T) store.ResultStore {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	st, err := storesql.NewStore(filepath.Join(t.TempDir(), "results.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return st
}

func seedScenario(t *testing.T, st store.ResultStore, runID int64, scenario string, totals map[string]float64) {
	t.Helper()

	for country, value := range totals {
		require.NoError(t, st.StoreMetrics(runID, country, scenario, "u1", []store.MetricPoint{
			{ElementLabel: "Healthy Years Lived", TimestampYear: 2030, Value: value},
		}))
	}
}

func TestCompareScenarios(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	runID, err := st.StartRun("abc123", 4)
	require.NoError(t, err)

	seedScenario(t, st, runID, "baseline", map[string]float64{"UGA": 1000, "KEN": 400})
	seedScenario(t, st, runID, "cr1", map[string]float64{"UGA": 950, "KEN": 500, "GHA": 10})

	rows, err := analytics.CompareScenarios(st, "baseline", "cr1", "Healthy Years Lived")
	require.NoError(t, err)

	// GHA has no baseline rows, so it is skipped; output is country-sorted.
	require.Len(t, rows, 2)

	assert.Equal(t, "KEN", rows[0].Country)
	assert.InDelta(t, 100, rows[0].Difference, 1e-9)
	assert.InDelta(t, 1.25, rows[0].Ratio, 1e-9)

	assert.Equal(t, "UGA", rows[1].Country)
	assert.InDelta(t, -50, rows[1].Difference, 1e-9)
	assert.InDelta(t, 0.95, rows[1].Ratio, 1e-9)
}

func TestCompareScenariosNoBaseline(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)

	_, err := analytics.CompareScenarios(st, "baseline", "cr1", "Healthy Years Lived")
	require.Error(t, err)
	assert.Equal(t, contract.CodeNotFound, contract.CodeOf(err))
}

func TestRatioAgainstReference(t *testing.T) {
	t.Parallel()

	ratios := analytics.RatioAgainstReference(
		map[string]float64{"UGA": 950, "KEN": 300, "GHA": 5},
		map[string]float64{"UGA": 1000, "KEN": 0},
	)

	// Zero or missing references drop out instead of dividing.
	assert.Equal(t, map[string]float64{"UGA": 0.95}, ratios)
}

func TestDiscountedValue(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 100, analytics.DiscountedValue(100, 0.03, 2030, 2030), 1e-9)
	assert.InDelta(t, 100/1.03, analytics.DiscountedValue(100, 0.03, 2031, 2030), 1e-9)
	assert.InDelta(t, 100/(1.03*1.03), analytics.DiscountedValue(100, 0.03, 2032, 2030), 1e-9)
	// No inflation before the base year, no discounting at rate zero.
	assert.InDelta(t, 100, analytics.DiscountedValue(100, 0.03, 2029, 2030), 1e-9)
	assert.InDelta(t, 100, analytics.DiscountedValue(100, 0, 2035, 2030), 1e-9)
}

func TestDiscountedTotal(t *testing.T) {
	t.Parallel()

	points := []store.MetricPoint{
		{TimestampYear: 2030, Value: 100},
		{TimestampYear: 2031, Value: 100},
	}

	expected := 100 + 100/1.03
	assert.InDelta(t, expected, analytics.DiscountedTotal(points, 0.03, 2030), 1e-9)
}

func TestComparisonCSV(t *testing.T) {
	t.Parallel()

	rows := []analytics.CountryComparison{
		{Country: "UGA", Baseline: 1000, Comparison: 950, Difference: -50, Ratio: 0.95},
	}

	var buf bytes.Buffer
	require.NoError(t, analytics.WriteComparisonCSV(rows, &buf))

	out := buf.String()
	assert.Contains(t, out, "country,baseline,comparison,difference,ratio")
	assert.Contains(t, out, "UGA,1000.0000,950.0000,-50.0000,0.9500")
}

func TestComparisonFileName(t *testing.T) {
	t.Parallel()

	name := analytics.ComparisonFileName("Baseline", "FullPackage", "Healthy Years Lived")
	assert.Equal(t, "baseline_vs_full_package_healthy_years_lived.csv", name)
}
